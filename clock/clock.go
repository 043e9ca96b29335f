// Package clock provides the free-running tick counters used by the
// operational state machine.
//
// Both counters are 8-bit and wrap around. Elapsed time between two
// samples is computed with unsigned subtraction modulo 256, which stays
// correct across wraparound as long as the real interval is shorter than
// 256 ticks.
package clock

import (
	"sync/atomic"
	"time"
)

// Tick intervals and thresholds shared by all Source implementations.
const (
	// FastInterval is the real-time period of one fast tick (10 ms)
	FastInterval = 10 * time.Millisecond

	// SlowInterval is the real-time period of one slow tick (250 ms)
	SlowInterval = 250 * time.Millisecond

	// ThresholdFast is the elapsed fast-tick count for one 10 ms interval
	ThresholdFast = 1

	// ThresholdSlow is the elapsed slow-tick count for one 250 ms interval
	ThresholdSlow = 1

	// ThresholdSleep is the elapsed slow-tick count for the 8 s
	// inactivity window (8 s / 250 ms)
	ThresholdSleep = 32
)

// Source produces the two free-running tick counters.
type Source interface {
	// Fast returns the current value of the ~10 ms counter.
	Fast() uint8

	// Slow returns the current value of the ~250 ms counter.
	Slow() uint8
}

// Elapsed returns the number of ticks between start and now on a
// wrapping 8-bit counter.
func Elapsed(start, now uint8) uint8 {
	return now - start
}

// TimeSource is a Source backed by the wall clock. Counters advance on a
// shared goroutine started by Start.
type TimeSource struct {
	fast atomic.Uint32
	slow atomic.Uint32
	stop chan struct{}
}

// NewTimeSource returns a TimeSource with both counters at zero.
// Call Start before use.
func NewTimeSource() *TimeSource {
	return &TimeSource{stop: make(chan struct{})}
}

// Start begins advancing the counters. It returns immediately.
func (s *TimeSource) Start() {
	go func() {
		fast := time.NewTicker(FastInterval)
		slow := time.NewTicker(SlowInterval)
		defer fast.Stop()
		defer slow.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-fast.C:
				s.fast.Add(1)
			case <-slow.C:
				s.slow.Add(1)
			}
		}
	}()
}

// Stop halts the counters. A stopped TimeSource cannot be restarted.
func (s *TimeSource) Stop() {
	close(s.stop)
}

func (s *TimeSource) Fast() uint8 { return uint8(s.fast.Load()) }
func (s *TimeSource) Slow() uint8 { return uint8(s.slow.Load()) }

// ManualSource is a Source advanced explicitly by the caller.
// It is intended for tests and for the simulated runner mode.
type ManualSource struct {
	fast uint8
	slow uint8
}

// AdvanceFast adds n ticks to the fast counter.
func (s *ManualSource) AdvanceFast(n uint8) { s.fast += n }

// AdvanceSlow adds n ticks to the slow counter.
func (s *ManualSource) AdvanceSlow(n uint8) { s.slow += n }

func (s *ManualSource) Fast() uint8 { return s.fast }
func (s *ManualSource) Slow() uint8 { return s.slow }
