package script

import (
	"time"

	"github.com/avrnub/go-avrnub/isp"
)

// Op identifies one instruction category. The categories are fixed by
// the AVR ISP programming flow; their byte encoding belongs to the
// stream codec, not to this package.
type Op int

const (
	// OpEnterProg pulls the target into programming mode
	OpEnterProg Op = iota

	// OpExpectSignature aborts unless the target signature matches
	OpExpectSignature

	// OpChipErase erases the target
	OpChipErase

	// OpWriteFlashPage programs one flash page
	OpWriteFlashPage

	// OpWriteEepromByte writes one EEPROM byte
	OpWriteEepromByte

	// OpWriteEepromPage programs one EEPROM page
	OpWriteEepromPage

	// OpWriteFuse writes one fuse byte
	OpWriteFuse

	// OpWriteLockBits writes the lock byte
	OpWriteLockBits

	// OpDelay pauses for author-specified slack
	OpDelay

	// OpEnd terminates the script successfully
	OpEnd
)

func (o Op) String() string {
	switch o {
	case OpEnterProg:
		return "enter-prog"
	case OpExpectSignature:
		return "expect-signature"
	case OpChipErase:
		return "chip-erase"
	case OpWriteFlashPage:
		return "write-flash-page"
	case OpWriteEepromByte:
		return "write-eeprom-byte"
	case OpWriteEepromPage:
		return "write-eeprom-page"
	case OpWriteFuse:
		return "write-fuse"
	case OpWriteLockBits:
		return "write-lock-bits"
	case OpDelay:
		return "delay"
	case OpEnd:
		return "end"
	}
	return "unknown"
}

// Instruction is one decoded script step. Only the operands belonging
// to Op are meaningful.
type Instruction struct {
	Op Op

	// Signature for OpExpectSignature
	Signature [3]byte

	// Addr for flash/EEPROM writes (byte address)
	Addr uint32

	// Data for page writes
	Data []byte

	// Value for OpWriteEepromByte, OpWriteFuse, OpWriteLockBits
	Value byte

	// Fuse selects the fuse byte for OpWriteFuse
	Fuse isp.Fuse

	// Duration for OpDelay
	Duration time.Duration
}
