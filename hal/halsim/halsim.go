// Package halsim provides an in-memory hal.Hardware used by the engine
// tests and by the runner's -sim mode.
package halsim

import (
	"sync"

	"github.com/avrnub/go-avrnub/hal"
)

// Board simulates the programmer board: LED and buzzer levels are
// recorded, switch levels are injected by the test, and wake lines latch
// events while armed exactly like the level-triggered interrupts on real
// hardware.
type Board struct {
	mu       sync.Mutex
	leds     [3]bool
	buzzer   bool
	switches uint8
	armed    [2]bool
	latched  [2]bool
	wake     chan struct{}
}

// New returns a Board with all outputs off and both wake lines disarmed.
func New() *Board {
	return &Board{wake: make(chan struct{}, 1)}
}

func (b *Board) Init() error { return nil }

func (b *Board) SetLED(led hal.LED, on bool) {
	b.mu.Lock()
	b.leds[led] = on
	b.mu.Unlock()
}

func (b *Board) SetBuzzer(on bool) {
	b.mu.Lock()
	b.buzzer = on
	b.mu.Unlock()
}

func (b *Board) ReadSwitches() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.switches
}

// SetSwitches injects the raw switch levels. While any armed wake line's
// switch is held the line fires, matching the level-triggered behavior
// of the real wake inputs.
func (b *Board) SetSwitches(raw uint8) {
	b.mu.Lock()
	b.switches = raw
	if raw != 0 {
		b.fireLocked()
	}
	b.mu.Unlock()
}

// fireLocked latches every armed line and signals Halt.
func (b *Board) fireLocked() {
	fired := false
	for i := range b.armed {
		if b.armed[i] {
			b.armed[i] = false
			b.latched[i] = true
			fired = true
		}
	}
	if fired {
		select {
		case b.wake <- struct{}{}:
		default:
		}
	}
}

func (b *Board) ArmWake(line hal.WakeLine) {
	b.mu.Lock()
	b.armed[line] = true
	// level-triggered: arming while the switch is already held fires
	// immediately
	if b.switches != 0 {
		b.fireLocked()
	}
	b.mu.Unlock()
}

func (b *Board) DisarmWake(line hal.WakeLine) {
	b.mu.Lock()
	b.armed[line] = false
	b.latched[line] = false
	b.mu.Unlock()
}

func (b *Board) Halt() {
	b.mu.Lock()
	for i := range b.latched {
		if b.latched[i] {
			b.latched[i] = false
			b.mu.Unlock()
			// drain a stale signal so the next Halt blocks
			select {
			case <-b.wake:
			default:
			}
			return
		}
	}
	b.mu.Unlock()
	<-b.wake
	b.mu.Lock()
	for i := range b.latched {
		b.latched[i] = false
	}
	b.mu.Unlock()
}

// LED reports the current level of one indicator channel.
func (b *Board) LED(led hal.LED) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.leds[led]
}

// Buzzer reports the current buzzer level.
func (b *Board) Buzzer() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buzzer
}

// Armed reports whether a wake line is currently armed.
func (b *Board) Armed(line hal.WakeLine) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.armed[line]
}
