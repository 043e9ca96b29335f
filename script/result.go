package script

// Result is the tri-state outcome of one script execution.
type Result int

const (
	// Success: the script ran to its End instruction
	Success Result = iota

	// HardwareFailure: the target was absent, answered with the wrong
	// signature, a driver primitive exhausted its retry budget, or the
	// script itself was corrupt
	HardwareFailure

	// NoProgramAvailable: no script is configured at all
	NoProgramAvailable
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case HardwareFailure:
		return "hardware failure"
	case NoProgramAvailable:
		return "no program available"
	}
	return "unknown"
}
