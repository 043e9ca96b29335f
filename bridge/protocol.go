package bridge

// Adapter wire contract. Every request is one command byte, optionally
// followed by a fixed payload. Every reply starts with the ack byte,
// followed by a fixed command-specific payload.
const (
	Ping byte = 0xA0
	Ack  byte = 0x5A
)

const (
	LedGreenOff byte = 0x10 | iota
	LedGreenOn
	LedYellowOff
	LedYellowOn
	LedRedOff
	LedRedOn
)

const (
	BuzzerOff byte = 0x20 | iota
	BuzzerOn
)

const (
	ResetRelease byte = 0x30 | iota
	ResetAssert
)

// ReadSwitches replies with one extra byte of raw switch levels,
// bit assignments per package debounce.
const ReadSwitches byte = 0x40

// SpiExchange carries four payload bytes out and replies with the four
// bytes clocked back in.
const SpiExchange byte = 0x50

const (
	WakeArmOnboard byte = 0x60 | iota
	WakeArmExt
	WakeDisarmOnboard
	WakeDisarmExt

	// WakeWait is only acknowledged once an armed wake line fires
	WakeWait
)
