package scriptbin

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/avrnub/go-avrnub/isp"
)

// Builder produces a version-1 stream. It mirrors what the offline
// authoring side bundles into devices and is what the codec tests and
// the engine tests feed the interpreter.
type Builder struct {
	buf []byte
	err error
}

// NewBuilder starts a stream with the version-1 header.
func NewBuilder() *Builder {
	return &Builder{buf: []byte{Magic0, Magic1, Version}}
}

// EnterProg appends the programming mode entry instruction.
func (b *Builder) EnterProg() *Builder {
	return b.raw(opEnterProg)
}

// ExpectSignature appends a signature check.
func (b *Builder) ExpectSignature(sig [3]byte) *Builder {
	return b.raw(opExpectSignature, sig[0], sig[1], sig[2])
}

// ChipErase appends a chip erase.
func (b *Builder) ChipErase() *Builder {
	return b.raw(opChipErase)
}

// WriteFlashPage appends a flash page write.
func (b *Builder) WriteFlashPage(addr uint32, data []byte) *Builder {
	if len(data) == 0 || len(data) > MaxPageBytes {
		return b.fail(fmt.Errorf("flash page payload length %d out of range", len(data)))
	}
	b.raw(opWriteFlashPage)
	b.u32(addr)
	b.u16(uint16(len(data)))
	return b.raw(data...)
}

// WriteEepromByte appends a single EEPROM byte write.
func (b *Builder) WriteEepromByte(addr uint16, value byte) *Builder {
	b.raw(opWriteEepromByte)
	b.u16(addr)
	return b.raw(value)
}

// WriteEepromPage appends an EEPROM page write.
func (b *Builder) WriteEepromPage(addr uint16, data []byte) *Builder {
	if len(data) == 0 || len(data) > MaxPageBytes {
		return b.fail(fmt.Errorf("eeprom page payload length %d out of range", len(data)))
	}
	b.raw(opWriteEepromPage)
	b.u16(addr)
	b.u16(uint16(len(data)))
	return b.raw(data...)
}

// WriteFuse appends a fuse write.
func (b *Builder) WriteFuse(f isp.Fuse, value byte) *Builder {
	return b.raw(opWriteFuse, byte(f), value)
}

// WriteLockBits appends a lock-bits write.
func (b *Builder) WriteLockBits(value byte) *Builder {
	return b.raw(opWriteLockBits, value)
}

// Delay appends an explicit pause, rounded down to milliseconds and
// capped at the field width.
func (b *Builder) Delay(d time.Duration) *Builder {
	ms := d / time.Millisecond
	if ms < 0 {
		ms = 0
	}
	if ms > 0xFFFF {
		ms = 0xFFFF
	}
	b.raw(opDelay)
	return b.u16(uint16(ms))
}

// End appends the end marker.
func (b *Builder) End() *Builder {
	return b.raw(opEnd)
}

// Bytes returns the finished stream.
func (b *Builder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.buf, nil
}

func (b *Builder) raw(bytes ...byte) *Builder {
	if b.err == nil {
		b.buf = append(b.buf, bytes...)
	}
	return b
}

func (b *Builder) u16(v uint16) *Builder {
	if b.err == nil {
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], v)
		b.buf = append(b.buf, tmp[:]...)
	}
	return b
}

func (b *Builder) u32(v uint32) *Builder {
	if b.err == nil {
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], v)
		b.buf = append(b.buf, tmp[:]...)
	}
	return b
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}
