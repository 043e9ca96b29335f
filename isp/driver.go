package isp

import (
	"fmt"
	"time"

	"github.com/avrnub/go-avrnub/target"
)

// Port is the physical programming header: a reset line plus the SPI
// pins, exchanged four bytes at a time.
type Port interface {
	// SetReset drives the target reset line. true holds the target in
	// reset (programming mode), false releases it.
	SetReset(asserted bool) error

	// Exchange clocks out four bytes and returns the four bytes read
	// back on the same clock edges.
	Exchange(out [4]byte) ([4]byte, error)
}

// Logger is an optional logging interface, compatible with any
// structured logging framework.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Config holds the driver configuration.
type Config struct {
	// SyncAttempts is the programming enable retry budget
	SyncAttempts int

	// PollInterval is the RDY/BSY poll spacing
	PollInterval time.Duration

	// ResetPulse is the width of the reset re-pulse between enable
	// attempts
	ResetPulse time.Duration

	// PostResetDelay is the settle time after asserting reset before
	// the first transaction (datasheet: minimum 20 ms)
	PostResetDelay time.Duration

	// Sleep performs fine-grained waits. Injected so tests run without
	// real delays
	Sleep func(time.Duration)

	// Logger is used for debug logging (optional)
	Logger Logger
}

func defaultConfig() Config {
	return Config{
		SyncAttempts:   32,
		PollInterval:   500 * time.Microsecond,
		ResetPulse:     time.Millisecond,
		PostResetDelay: 25 * time.Millisecond,
		Sleep:          time.Sleep,
	}
}

// Option is a functional option for configuring the Driver.
type Option func(*Config)

// WithSyncAttempts sets the programming enable retry budget.
func WithSyncAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SyncAttempts = n
		}
	}
}

// WithSleep replaces the wait function used for protocol timing.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Config) {
		if sleep != nil {
			c.Sleep = sleep
		}
	}
}

// WithPollInterval sets the RDY/BSY poll spacing.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PollInterval = d
		}
	}
}

// WithLogger sets a logger for driver operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// Driver drives one AVR target over a Port. It is single-owner and
// strictly synchronous: no primitive may be issued concurrently.
type Driver struct {
	port    Port
	dev     *target.Device
	config  Config
	enabled bool
}

// New creates a Driver for the given port and target device.
func New(port Port, dev *target.Device, opts ...Option) *Driver {
	if port == nil {
		panic("port cannot be nil")
	}
	if dev == nil {
		panic("target device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Driver{
		port:   port,
		dev:    dev,
		config: cfg,
	}
}

// ProgramEnable pulls the target into serial programming mode.
//
// The target is held in reset, given its post-reset settle time, then
// sent the Programming Enable transaction. The target acknowledges by
// echoing 0x53 in the third reply byte; on a miss the reset line is
// re-pulsed and the attempt repeated up to the configured budget.
// This is the only primitive allowed to fail because no target is
// connected.
func (d *Driver) ProgramEnable() error {
	if err := d.port.SetReset(true); err != nil {
		return fmt.Errorf("assert reset: %w", err)
	}
	d.config.Sleep(d.config.PostResetDelay)

	for attempt := 1; attempt <= d.config.SyncAttempts; attempt++ {
		reply, err := d.port.Exchange(progEnable())
		if err != nil {
			return fmt.Errorf("programming enable exchange: %w", err)
		}
		if reply[2] == SyncEcho {
			d.enabled = true
			d.logDebug("target in sync", "attempt", attempt)
			return nil
		}

		// lost sync: give reset a positive pulse and try again
		if err := d.port.SetReset(false); err != nil {
			return fmt.Errorf("release reset: %w", err)
		}
		d.config.Sleep(d.config.ResetPulse)
		if err := d.port.SetReset(true); err != nil {
			return fmt.Errorf("assert reset: %w", err)
		}
		d.config.Sleep(d.config.PostResetDelay)
	}

	return &SyncError{Attempts: d.config.SyncAttempts}
}

// Close releases the target reset line, letting the target run.
// The driver must be re-enabled before further primitives.
func (d *Driver) Close() error {
	d.enabled = false
	return d.port.SetReset(false)
}

// ReadSignature reads the three device signature bytes.
func (d *Driver) ReadSignature() ([3]byte, error) {
	var sig [3]byte
	if !d.enabled {
		return sig, &NotEnabledError{Op: "read signature"}
	}
	for i := uint8(0); i < 3; i++ {
		reply, err := d.port.Exchange(readSignature(i))
		if err != nil {
			return sig, fmt.Errorf("read signature byte %d: %w", i, err)
		}
		sig[i] = reply[3]
	}
	return sig, nil
}

// VerifySignature reads the target signature and compares it against
// want. A mismatch means a wrong or missing chip and aborts the script.
func (d *Driver) VerifySignature(want [3]byte) error {
	got, err := d.ReadSignature()
	if err != nil {
		return err
	}
	if got != want {
		return &SignatureMismatchError{Want: want, Got: got}
	}
	d.logDebug("signature verified",
		"signature", fmt.Sprintf("%02X %02X %02X", got[0], got[1], got[2]))
	return nil
}

// ChipErase erases flash, EEPROM and lock bits, then waits the
// datasheet erase settle time.
func (d *Driver) ChipErase() error {
	if !d.enabled {
		return &NotEnabledError{Op: "chip erase"}
	}
	if _, err := d.port.Exchange(chipErase()); err != nil {
		return fmt.Errorf("chip erase: %w", err)
	}
	d.config.Sleep(d.dev.Wait.Erase)
	return d.waitReady("chip erase", d.dev.Wait.Erase)
}

// WriteFlashPage programs one flash page. addr is the byte address of
// the page start; data must not exceed the device page size and must
// hold an even number of bytes.
func (d *Driver) WriteFlashPage(addr uint32, data []byte) error {
	if !d.enabled {
		return &NotEnabledError{Op: "write flash page"}
	}
	if len(data) == 0 || len(data) > d.dev.FlashPageBytes {
		return fmt.Errorf("flash page data length %d out of range (page size %d)",
			len(data), d.dev.FlashPageBytes)
	}
	if len(data)%2 != 0 {
		return fmt.Errorf("flash page data length %d is odd", len(data))
	}
	if int(addr)+len(data) > d.dev.FlashBytes() {
		return fmt.Errorf("flash page at 0x%06X exceeds device flash (%d bytes)",
			addr, d.dev.FlashBytes())
	}

	pageWord := uint16(addr / 2)
	for i := 0; i < len(data); i += 2 {
		word := pageWord + uint16(i/2)
		if _, err := d.port.Exchange(loadFlash(false, word, data[i])); err != nil {
			return fmt.Errorf("load flash low 0x%04X: %w", word, err)
		}
		if _, err := d.port.Exchange(loadFlash(true, word, data[i+1])); err != nil {
			return fmt.Errorf("load flash high 0x%04X: %w", word, err)
		}
	}

	if _, err := d.port.Exchange(writeFlashPage(pageWord)); err != nil {
		return fmt.Errorf("write flash page 0x%06X: %w", addr, err)
	}
	d.config.Sleep(d.dev.Wait.Flash)
	if err := d.waitReady("write flash page", d.dev.Wait.Flash); err != nil {
		return err
	}

	d.logDebug("flash page written", "addr", fmt.Sprintf("0x%06X", addr), "bytes", len(data))
	return nil
}

// WriteEepromByte writes one EEPROM byte and waits for completion.
func (d *Driver) WriteEepromByte(addr uint16, value byte) error {
	if !d.enabled {
		return &NotEnabledError{Op: "write eeprom byte"}
	}
	if int(addr) >= d.dev.EepromBytes {
		return fmt.Errorf("eeprom address 0x%04X exceeds device eeprom (%d bytes)",
			addr, d.dev.EepromBytes)
	}
	if _, err := d.port.Exchange(writeEeprom(addr, value)); err != nil {
		return fmt.Errorf("write eeprom 0x%04X: %w", addr, err)
	}
	d.config.Sleep(d.dev.Wait.Eeprom)
	return d.waitReady("write eeprom byte", d.dev.Wait.Eeprom)
}

// WriteEepromPage programs one EEPROM page through the page buffer.
// Falls back to byte writes on devices without EEPROM page access.
func (d *Driver) WriteEepromPage(addr uint16, data []byte) error {
	if !d.enabled {
		return &NotEnabledError{Op: "write eeprom page"}
	}
	if d.dev.EepromPageBytes == 0 {
		for i, b := range data {
			if err := d.WriteEepromByte(addr+uint16(i), b); err != nil {
				return err
			}
		}
		return nil
	}
	if len(data) == 0 || len(data) > d.dev.EepromPageBytes {
		return fmt.Errorf("eeprom page data length %d out of range (page size %d)",
			len(data), d.dev.EepromPageBytes)
	}
	if int(addr)+len(data) > d.dev.EepromBytes {
		return fmt.Errorf("eeprom page at 0x%04X exceeds device eeprom (%d bytes)",
			addr, d.dev.EepromBytes)
	}

	for i, b := range data {
		if _, err := d.port.Exchange(loadEepromPage(uint8(i), b)); err != nil {
			return fmt.Errorf("load eeprom page offset %d: %w", i, err)
		}
	}
	if _, err := d.port.Exchange(writeEepromPage(addr)); err != nil {
		return fmt.Errorf("write eeprom page 0x%04X: %w", addr, err)
	}
	d.config.Sleep(d.dev.Wait.Eeprom)
	return d.waitReady("write eeprom page", d.dev.Wait.Eeprom)
}

// WriteFuse writes one fuse byte and waits the fuse settle time.
func (d *Driver) WriteFuse(f Fuse, value byte) error {
	if !d.enabled {
		return &NotEnabledError{Op: "write fuse"}
	}
	if _, err := d.port.Exchange(writeFuse(f, value)); err != nil {
		return fmt.Errorf("write %s fuse: %w", f, err)
	}
	d.config.Sleep(d.dev.Wait.Fuse)
	if err := d.waitReady("write fuse", d.dev.Wait.Fuse); err != nil {
		return err
	}
	d.logDebug("fuse written", "fuse", f.String(), "value", fmt.Sprintf("0x%02X", value))
	return nil
}

// ReadFuse reads back one fuse byte.
func (d *Driver) ReadFuse(f Fuse) (byte, error) {
	if !d.enabled {
		return 0, &NotEnabledError{Op: "read fuse"}
	}
	reply, err := d.port.Exchange(readFuse(f))
	if err != nil {
		return 0, fmt.Errorf("read %s fuse: %w", f, err)
	}
	return reply[3], nil
}

// ReadLockBits reads back the lock byte.
func (d *Driver) ReadLockBits() (byte, error) {
	if !d.enabled {
		return 0, &NotEnabledError{Op: "read lock bits"}
	}
	reply, err := d.port.Exchange(readLockBits())
	if err != nil {
		return 0, fmt.Errorf("read lock bits: %w", err)
	}
	return reply[3], nil
}

// WriteLockBits writes the lock byte and waits the fuse settle time.
func (d *Driver) WriteLockBits(value byte) error {
	if !d.enabled {
		return &NotEnabledError{Op: "write lock bits"}
	}
	if _, err := d.port.Exchange(writeLockBits(value)); err != nil {
		return fmt.Errorf("write lock bits: %w", err)
	}
	d.config.Sleep(d.dev.Wait.Fuse)
	return d.waitReady("write lock bits", d.dev.Wait.Fuse)
}

// waitReady polls RDY/BSY until the target reports ready. The poll
// budget is four times the operation's datasheet wait, so a healthy
// target always fits and a wedged one fails deterministically.
func (d *Driver) waitReady(op string, wait time.Duration) error {
	budget := int(4*wait/d.config.PollInterval) + 1
	for i := 0; i < budget; i++ {
		reply, err := d.port.Exchange(pollBusy())
		if err != nil {
			return fmt.Errorf("%s: poll busy: %w", op, err)
		}
		if reply[3]&0x01 == 0 {
			return nil
		}
		d.config.Sleep(d.config.PollInterval)
	}
	return &BusyTimeoutError{Op: op}
}

// Sleep pauses for d using the driver's injected wait function. The
// interpreter uses it for explicit script delays.
func (d *Driver) Sleep(dur time.Duration) {
	d.config.Sleep(dur)
}

// Device returns the target descriptor the driver was built for.
func (d *Driver) Device() *target.Device {
	return d.dev
}

func (d *Driver) logDebug(msg string, keysAndValues ...interface{}) {
	if d.config.Logger != nil {
		d.config.Logger.Debug(msg, keysAndValues...)
	}
}
