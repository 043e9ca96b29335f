// Package hal defines the hardware capability set consumed by the
// programming engine.
//
// The engine never touches pins or registers directly: it drives three
// indicator LEDs, one buzzer and two one-shot wake lines through the
// Hardware interface, which lets the whole control loop run against the
// halsim simulator in tests and against the serial bridge on real
// hardware.
package hal

// LED identifies one indicator channel.
type LED int

const (
	Green LED = iota
	Yellow
	Red
)

func (l LED) String() string {
	switch l {
	case Green:
		return "green"
	case Yellow:
		return "yellow"
	case Red:
		return "red"
	}
	return "unknown"
}

// WakeLine identifies one of the two wake sources. Both are
// level-triggered switch inputs: an armed line fires as soon as its
// switch is held, and firing consumes the arm. The engine re-arms both
// lines on every sleep entry.
type WakeLine int

const (
	WakeOnboard WakeLine = iota
	WakeExt
)

// Hardware is the capability set the engine needs from the board.
//
// Halt blocks until an armed wake line fires and consumes that line's
// arm state. A wake event occurring after ArmWake but before Halt must
// be latched, not lost: the engine relies on this to close the
// check-then-sleep race.
type Hardware interface {
	// Init prepares the board. Called once before the first Step.
	Init() error

	// SetLED drives one indicator channel.
	SetLED(led LED, on bool)

	// SetBuzzer drives the buzzer output.
	SetBuzzer(on bool)

	// ReadSwitches samples the raw, unfiltered switch levels.
	// Bit assignments follow package debounce.
	ReadSwitches() uint8

	// ArmWake arms one wake line.
	ArmWake(line WakeLine)

	// DisarmWake disarms one wake line and clears any latched event.
	DisarmWake(line WakeLine)

	// Halt blocks until any armed wake line fires.
	Halt()
}
