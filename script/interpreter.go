// Package script executes pre-authored programming scripts against an
// AVR target and folds every outcome into a tri-state Result.
//
// The package is encoding-independent: instructions arrive through the
// Decoder interface, so the interpreter depends only on the instruction
// categories, never on a specific byte layout. The scriptbin subpackage
// provides the stream codec actually bundled with devices.
package script

import (
	"errors"
	"time"

	"github.com/avrnub/go-avrnub/isp"
)

// ErrNoProgram is returned by a Decoder whose backing region holds no
// script at all. It is distinct from a corrupt stream: a corrupt stream
// is a decode error, which aborts execution as a hardware failure.
var ErrNoProgram = errors.New("no program configured")

// Decoder yields the instruction stream. Next returns the instruction
// at the current pointer and advances past it; decode errors
// (out-of-bounds pointer, truncated operands, unknown opcodes) poison
// the stream.
type Decoder interface {
	Next() (Instruction, error)
}

// Executor is the set of driver primitives the interpreter dispatches
// to. *isp.Driver satisfies it; tests substitute a recorder.
type Executor interface {
	ProgramEnable() error
	VerifySignature(want [3]byte) error
	ChipErase() error
	WriteFlashPage(addr uint32, data []byte) error
	WriteEepromByte(addr uint16, value byte) error
	WriteEepromPage(addr uint16, data []byte) error
	WriteFuse(f isp.Fuse, value byte) error
	WriteLockBits(value byte) error
	Sleep(d time.Duration)
	Close() error
}

// Interpreter runs one script against one target. A single Run call is
// one programming session; the interpreter never retries across
// invocations — re-offering programming is the caller's decision.
type Interpreter struct {
	exec Executor
}

// NewInterpreter creates an Interpreter dispatching to exec.
func NewInterpreter(exec Executor) *Interpreter {
	if exec == nil {
		panic("executor cannot be nil")
	}
	return &Interpreter{exec: exec}
}

// Run executes the stream produced by dec until End, a primitive
// failure, or a decode error. The target reset line is released on
// every path out of a started session.
func (in *Interpreter) Run(dec Decoder) Result {
	started := false
	defer func() {
		if started {
			_ = in.exec.Close()
		}
	}()

	for {
		instr, err := dec.Next()
		if err != nil {
			if errors.Is(err, ErrNoProgram) && !started {
				return NoProgramAvailable
			}
			// corrupt or out-of-bounds stream
			return HardwareFailure
		}

		switch instr.Op {
		case OpEnterProg:
			started = true
			err = in.exec.ProgramEnable()
		case OpExpectSignature:
			err = in.exec.VerifySignature(instr.Signature)
		case OpChipErase:
			err = in.exec.ChipErase()
		case OpWriteFlashPage:
			err = in.exec.WriteFlashPage(instr.Addr, instr.Data)
		case OpWriteEepromByte:
			err = in.exec.WriteEepromByte(uint16(instr.Addr), instr.Value)
		case OpWriteEepromPage:
			err = in.exec.WriteEepromPage(uint16(instr.Addr), instr.Data)
		case OpWriteFuse:
			err = in.exec.WriteFuse(instr.Fuse, instr.Value)
		case OpWriteLockBits:
			err = in.exec.WriteLockBits(instr.Value)
		case OpDelay:
			in.exec.Sleep(instr.Duration)
		case OpEnd:
			return Success
		default:
			return HardwareFailure
		}

		if err != nil {
			return HardwareFailure
		}
	}
}
