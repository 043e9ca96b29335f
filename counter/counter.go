// Package counter implements the persistent remaining-cycles counter.
//
// The count bounds how many programming sessions the device may still
// run. It is stored in two redundant records so that a write torn by
// power loss leaves at least one valid copy; each record holds the
// 16-bit count followed by its bitwise complement.
package counter

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Unlimited disables cycle accounting: the count never decrements and
// Remaining always reports a positive value.
const Unlimited = 0xFFFF

const (
	recordSize = 4
	fileSize   = 2 * recordSize
)

// Counter is a file-backed cycle counter.
type Counter struct {
	path  string
	count uint16
}

// Create initializes the counter file with the given cycle budget,
// overwriting any previous state.
func Create(path string, cycles uint16) (*Counter, error) {
	c := &Counter{path: path, count: cycles}
	if err := c.store(); err != nil {
		return nil, err
	}
	return c, nil
}

// Open reads the counter file. If both records are corrupt the count is
// zero: a device with an unreadable budget must not program.
func Open(path string) (*Counter, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read counter file: %w", err)
	}
	if len(buf) < fileSize {
		return nil, fmt.Errorf("counter file truncated: %d bytes", len(buf))
	}

	c := &Counter{path: path}
	for i := 0; i < 2; i++ {
		rec := buf[i*recordSize : (i+1)*recordSize]
		count := binary.BigEndian.Uint16(rec[0:2])
		check := binary.BigEndian.Uint16(rec[2:4])
		if count == ^check {
			c.count = count
			return c, nil
		}
	}
	c.count = 0
	return c, nil
}

// Remaining returns the current cycle count.
func (c *Counter) Remaining() uint16 {
	return c.count
}

// Decrement consumes one cycle and persists the new count. It is a
// no-op at zero and for an Unlimited counter.
func (c *Counter) Decrement() error {
	if c.count == 0 || c.count == Unlimited {
		return nil
	}
	c.count--
	return c.store()
}

func (c *Counter) store() error {
	var buf [fileSize]byte
	for i := 0; i < 2; i++ {
		rec := buf[i*recordSize : (i+1)*recordSize]
		binary.BigEndian.PutUint16(rec[0:2], c.count)
		binary.BigEndian.PutUint16(rec[2:4], ^c.count)
	}
	if err := os.WriteFile(c.path, buf[:], 0644); err != nil {
		return fmt.Errorf("write counter file: %w", err)
	}
	return nil
}
