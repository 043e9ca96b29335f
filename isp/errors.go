package isp

import "fmt"

// SyncError indicates that the target never echoed the programming
// enable synchronization byte. This is how an absent or unpowered
// target shows up.
type SyncError struct {
	// Attempts is the number of enable attempts made before giving up
	Attempts int
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("target not in sync after %d programming enable attempts", e.Attempts)
}

// SignatureMismatchError indicates the chip on the programming header
// is not the device the script was authored for.
type SignatureMismatchError struct {
	Want [3]byte
	Got  [3]byte
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("signature mismatch: want %02X %02X %02X, got %02X %02X %02X",
		e.Want[0], e.Want[1], e.Want[2], e.Got[0], e.Got[1], e.Got[2])
}

// BusyTimeoutError indicates the target still reported RDY/BSY busy
// after the operation's poll budget.
type BusyTimeoutError struct {
	// Op names the operation that timed out
	Op string
}

func (e *BusyTimeoutError) Error() string {
	return fmt.Sprintf("%s: target busy beyond poll budget", e.Op)
}

// NotEnabledError indicates a primitive was issued before a successful
// ProgramEnable.
type NotEnabledError struct {
	Op string
}

func (e *NotEnabledError) Error() string {
	return fmt.Sprintf("%s: programming mode not enabled", e.Op)
}
