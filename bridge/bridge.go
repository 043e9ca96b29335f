// Package bridge drives a serial-attached programmer adapter board.
//
// The adapter carries the indicator LEDs, the buzzer, the trigger
// switches and the target's ISP header; this package speaks its
// one-byte command protocol and exposes the board as a hal.Hardware
// and the header as an isp.Port, so the engine and the driver stay
// transport-agnostic.
package bridge

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/avrnub/go-avrnub/hal"
	"github.com/avrnub/go-avrnub/isp"
)

// DefaultMode is the adapter's serial line configuration.
var DefaultMode = &serial.Mode{
	BaudRate: 57600,
	Parity:   serial.NoParity,
	DataBits: 8,
	StopBits: serial.OneStopBit,
}

// DefaultTimeout bounds one command round trip.
const DefaultTimeout = time.Second

const pingRetries = 16

// AckError reports a reply that did not start with the ack byte.
type AckError struct {
	Cmd byte
	Got byte
}

func (e *AckError) Error() string {
	return fmt.Sprintf("command 0x%02X: bad ack byte 0x%02X", e.Cmd, e.Got)
}

// TimeoutError reports a command whose reply never arrived.
type TimeoutError struct {
	Cmd byte
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command 0x%02X: reply timeout", e.Cmd)
}

// Config holds the bridge configuration.
type Config struct {
	// Logger is used for debug logging (optional)
	Logger isp.Logger
}

// Option is a functional option for configuring the Bridge.
type Option func(*Config)

// WithLogger sets a logger for bridge traffic.
func WithLogger(logger isp.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// Bridge talks the adapter protocol over a byte stream. It implements
// hal.Hardware and isp.Port. Commands are serialized internally, so one
// Bridge may back both interfaces at once.
type Bridge struct {
	mu     sync.Mutex
	conn   io.ReadWriteCloser
	config Config
}

// New wraps an open connection to the adapter.
func New(conn io.ReadWriteCloser, opts ...Option) *Bridge {
	if conn == nil {
		panic("conn cannot be nil")
	}
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Bridge{conn: conn, config: cfg}
}

// Open opens the adapter on a serial device and verifies it answers.
func Open(name string, opts ...Option) (*Bridge, error) {
	port, err := serial.Open(name, DefaultMode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := port.SetReadTimeout(DefaultTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	b := New(port, opts...)
	if err := b.Init(); err != nil {
		port.Close()
		return nil, err
	}
	return b, nil
}

// Init pings the adapter until it answers or the retry budget runs out.
func (b *Bridge) Init() error {
	var err error
	for i := 0; i < pingRetries; i++ {
		if _, err = b.command(Ping, nil, 0); err == nil {
			b.logDebug("adapter answered ping", "attempt", i+1)
			return nil
		}
	}
	return fmt.Errorf("adapter not answering: %w", err)
}

// Close closes the underlying connection.
func (b *Bridge) Close() error {
	return b.conn.Close()
}

// SetLED drives one indicator channel on the adapter.
func (b *Bridge) SetLED(led hal.LED, on bool) {
	cmd := LedGreenOff + 2*byte(led)
	if on {
		cmd++
	}
	if _, err := b.command(cmd, nil, 0); err != nil {
		b.logError("set led", "led", led.String(), "error", err)
	}
}

// SetBuzzer drives the buzzer output on the adapter.
func (b *Bridge) SetBuzzer(on bool) {
	cmd := BuzzerOff
	if on {
		cmd = BuzzerOn
	}
	if _, err := b.command(cmd, nil, 0); err != nil {
		b.logError("set buzzer", "error", err)
	}
}

// ReadSwitches samples the raw switch levels. A transport error reads
// as all lines released.
func (b *Bridge) ReadSwitches() uint8 {
	reply, err := b.command(ReadSwitches, nil, 1)
	if err != nil {
		b.logError("read switches", "error", err)
		return 0
	}
	return reply[0]
}

// ArmWake arms one wake line on the adapter.
func (b *Bridge) ArmWake(line hal.WakeLine) {
	cmd := WakeArmOnboard
	if line == hal.WakeExt {
		cmd = WakeArmExt
	}
	if _, err := b.command(cmd, nil, 0); err != nil {
		b.logError("arm wake", "line", int(line), "error", err)
	}
}

// DisarmWake disarms one wake line and clears its latched event.
func (b *Bridge) DisarmWake(line hal.WakeLine) {
	cmd := WakeDisarmOnboard
	if line == hal.WakeExt {
		cmd = WakeDisarmExt
	}
	if _, err := b.command(cmd, nil, 0); err != nil {
		b.logError("disarm wake", "line", int(line), "error", err)
	}
}

// Halt blocks until the adapter reports a wake event. The adapter holds
// the reply until an armed line fires, so the read is retried through
// any number of transport timeouts.
func (b *Bridge) Halt() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.conn.Write([]byte{WakeWait}); err != nil {
		b.logError("wake wait", "error", err)
		return
	}
	buf := make([]byte, 1)
	for {
		n, err := b.conn.Read(buf)
		if err != nil {
			b.logError("wake wait", "error", err)
			return
		}
		if n > 0 {
			if buf[0] != Ack {
				b.logError("wake wait", "error", &AckError{Cmd: WakeWait, Got: buf[0]})
			}
			return
		}
	}
}

// SetReset drives the target reset line through the adapter.
func (b *Bridge) SetReset(asserted bool) error {
	cmd := ResetRelease
	if asserted {
		cmd = ResetAssert
	}
	_, err := b.command(cmd, nil, 0)
	return err
}

// Exchange clocks four bytes through the target's SPI pins and returns
// the four bytes read back.
func (b *Bridge) Exchange(out [4]byte) ([4]byte, error) {
	var in [4]byte
	reply, err := b.command(SpiExchange, out[:], 4)
	if err != nil {
		return in, err
	}
	copy(in[:], reply)
	return in, nil
}

// command sends one framed request and reads the ack plus replyLen
// payload bytes.
func (b *Bridge) command(cmd byte, payload []byte, replyLen int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	frame := append([]byte{cmd}, payload...)
	if _, err := b.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("command 0x%02X: write: %w", cmd, err)
	}

	buf := make([]byte, 1+replyLen)
	if err := b.readFull(cmd, buf); err != nil {
		return nil, err
	}
	if buf[0] != Ack {
		return nil, &AckError{Cmd: cmd, Got: buf[0]}
	}
	return buf[1:], nil
}

// readFull fills buf. A zero-length read means the port's read timeout
// expired with no data.
func (b *Bridge) readFull(cmd byte, buf []byte) error {
	for n := 0; n < len(buf); {
		m, err := b.conn.Read(buf[n:])
		if err != nil {
			return fmt.Errorf("command 0x%02X: read: %w", cmd, err)
		}
		if m == 0 {
			return &TimeoutError{Cmd: cmd}
		}
		n += m
	}
	return nil
}

func (b *Bridge) logDebug(msg string, keysAndValues ...interface{}) {
	if b.config.Logger != nil {
		b.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, keysAndValues ...interface{}) {
	if b.config.Logger != nil {
		b.config.Logger.Error(msg, keysAndValues...)
	}
}
