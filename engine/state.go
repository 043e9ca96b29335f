package engine

// State is the device's operational state. Exactly one State is active
// at any time; the engine owns all transitions.
type State int

const (
	// StateInit is the reset state, left on the first poll
	StateInit State = iota

	// StateWakeup follows a wake from sleep, falls through to idle
	StateWakeup

	// StateIdle is the ready state, waiting for a programming trigger
	StateIdle

	// StateProgramming runs one script session
	StateProgramming

	// StateNoMore: the cycle budget is exhausted
	StateNoMore

	// StateNoProgram: no script is configured
	StateNoProgram

	// StateSleep: powered down until a wake line fires
	StateSleep
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateWakeup:
		return "wakeup"
	case StateIdle:
		return "idle"
	case StateProgramming:
		return "programming"
	case StateNoMore:
		return "no-more-cycles"
	case StateNoProgram:
		return "no-program"
	case StateSleep:
		return "sleep"
	}
	return "unknown"
}
