// Package scriptbin implements version 1 of the binary programming
// script stream.
//
// The stream is an external interface contract: the packaging side
// embeds it in the device image and this package is the only code that
// knows the byte layout. The interpreter consumes it through the
// script.Decoder interface.
//
// # Stream layout
//
//	[0x41 0x56]     magic "AV"
//	[0x01]          stream version
//	instructions    one opcode byte plus big-endian operands each
//	[0xFF]          end marker
//
// A region that is empty or starts with 0xFF (erased flash) holds no
// program. A region with a wrong magic or version is corrupt.
package scriptbin

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/avrnub/go-avrnub/isp"
	"github.com/avrnub/go-avrnub/script"
)

// Stream framing constants.
const (
	// Magic0, Magic1 open every valid stream ("AV")
	Magic0 = 0x41
	Magic1 = 0x56

	// Version is the stream version this codec implements
	Version = 0x01

	// HeaderSize is magic plus version
	HeaderSize = 3
)

// Opcodes. 0xFF doubles as the erased-flash fill value so a blank
// region can never alias a valid instruction.
const (
	opEnterProg       = 0x01
	opExpectSignature = 0x02
	opChipErase       = 0x03
	opWriteFlashPage  = 0x04
	opWriteEepromByte = 0x05
	opWriteEepromPage = 0x06
	opWriteFuse       = 0x07
	opWriteLockBits   = 0x08
	opDelay           = 0x09
	opEnd             = 0xFF
)

// MaxPageBytes bounds a single page payload, guarding length fields in
// corrupt streams.
const MaxPageBytes = 1024

// Decoder walks a version-1 stream. It satisfies script.Decoder.
type Decoder struct {
	region []byte
	pc     int
	sticky error
}

// NewDecoder validates the region header and positions the instruction
// pointer at the first instruction.
//
// script.ErrNoProgram is reported through Next, not here, so the
// interpreter keeps its single error path.
func NewDecoder(region []byte) *Decoder {
	d := &Decoder{region: region}
	switch {
	case len(region) == 0 || region[0] == 0xFF:
		d.sticky = script.ErrNoProgram
	case len(region) < HeaderSize || region[0] != Magic0 || region[1] != Magic1:
		d.sticky = fmt.Errorf("bad script magic")
	case region[2] != Version:
		d.sticky = fmt.Errorf("unsupported script version 0x%02X", region[2])
	default:
		d.pc = HeaderSize
	}
	return d
}

// Next decodes the instruction at the current pointer and advances.
// Any error is sticky: once the stream is poisoned every further call
// fails the same way.
func (d *Decoder) Next() (script.Instruction, error) {
	var instr script.Instruction
	if d.sticky != nil {
		return instr, d.sticky
	}

	op, err := d.byte()
	if err != nil {
		return instr, d.poison(err)
	}

	switch op {
	case opEnterProg:
		instr.Op = script.OpEnterProg

	case opExpectSignature:
		instr.Op = script.OpExpectSignature
		sig, err := d.bytes(3)
		if err != nil {
			return instr, d.poison(err)
		}
		copy(instr.Signature[:], sig)

	case opChipErase:
		instr.Op = script.OpChipErase

	case opWriteFlashPage:
		instr.Op = script.OpWriteFlashPage
		addr, err := d.uint32()
		if err != nil {
			return instr, d.poison(err)
		}
		data, err := d.lengthPrefixed()
		if err != nil {
			return instr, d.poison(err)
		}
		instr.Addr = addr
		instr.Data = data

	case opWriteEepromByte:
		instr.Op = script.OpWriteEepromByte
		addr, err := d.uint16()
		if err != nil {
			return instr, d.poison(err)
		}
		value, err := d.byte()
		if err != nil {
			return instr, d.poison(err)
		}
		instr.Addr = uint32(addr)
		instr.Value = value

	case opWriteEepromPage:
		instr.Op = script.OpWriteEepromPage
		addr, err := d.uint16()
		if err != nil {
			return instr, d.poison(err)
		}
		data, err := d.lengthPrefixed()
		if err != nil {
			return instr, d.poison(err)
		}
		instr.Addr = uint32(addr)
		instr.Data = data

	case opWriteFuse:
		instr.Op = script.OpWriteFuse
		sel, err := d.byte()
		if err != nil {
			return instr, d.poison(err)
		}
		if sel > byte(isp.FuseExtended) {
			return instr, d.poison(fmt.Errorf("invalid fuse selector 0x%02X", sel))
		}
		value, err := d.byte()
		if err != nil {
			return instr, d.poison(err)
		}
		instr.Fuse = isp.Fuse(sel)
		instr.Value = value

	case opWriteLockBits:
		instr.Op = script.OpWriteLockBits
		value, err := d.byte()
		if err != nil {
			return instr, d.poison(err)
		}
		instr.Value = value

	case opDelay:
		instr.Op = script.OpDelay
		ms, err := d.uint16()
		if err != nil {
			return instr, d.poison(err)
		}
		instr.Duration = time.Duration(ms) * time.Millisecond

	case opEnd:
		instr.Op = script.OpEnd

	default:
		return instr, d.poison(fmt.Errorf("unknown opcode 0x%02X at offset %d", op, d.pc-1))
	}

	return instr, nil
}

func (d *Decoder) poison(err error) error {
	d.sticky = err
	return err
}

func (d *Decoder) byte() (byte, error) {
	if d.pc >= len(d.region) {
		return 0, fmt.Errorf("instruction pointer 0x%04X past end of script region", d.pc)
	}
	b := d.region[d.pc]
	d.pc++
	return b, nil
}

func (d *Decoder) bytes(n int) ([]byte, error) {
	if d.pc+n > len(d.region) {
		return nil, fmt.Errorf("truncated operand at offset %d", d.pc)
	}
	b := d.region[d.pc : d.pc+n]
	d.pc += n
	return b, nil
}

func (d *Decoder) uint16() (uint16, error) {
	b, err := d.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *Decoder) uint32() (uint32, error) {
	b, err := d.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *Decoder) lengthPrefixed() ([]byte, error) {
	n, err := d.uint16()
	if err != nil {
		return nil, err
	}
	if n == 0 || int(n) > MaxPageBytes {
		return nil, fmt.Errorf("page payload length %d out of range", n)
	}
	return d.bytes(int(n))
}
