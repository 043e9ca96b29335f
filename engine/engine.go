// Package engine implements the programmer's operational state machine.
//
// The engine is a polling loop over injected capabilities: a hal.Hardware
// for the board, a clock.Source for the two tick counters, a debounce
// filter for the trigger switches, a cycle budget and a session runner.
// One call to Step is one poll iteration; Run paces Step against the
// wall clock until its context is cancelled.
package engine

import (
	"context"
	"time"

	"github.com/avrnub/go-avrnub/clock"
	"github.com/avrnub/go-avrnub/debounce"
	"github.com/avrnub/go-avrnub/hal"
	"github.com/avrnub/go-avrnub/script"
)

// Buzzer countdown values in fast ticks.
const (
	// BuzzSuccess is a short 30 ms chirp after a successful session
	BuzzSuccess = 3

	// BuzzFailure is a 300 ms tone after a hardware failure
	BuzzFailure = 30

	// BuzzRefused is a 600 ms tone when a session cannot start or no
	// program is available
	BuzzRefused = 60
)

// Runner executes one complete programming session against the target.
type Runner interface {
	Run() script.Result
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func() script.Result

func (f RunnerFunc) Run() script.Result { return f() }

// Budget reports how many programming cycles remain. The engine only
// reads the budget; decrementing is the owner's concern, typically done
// from a result hook.
type Budget interface {
	Remaining() uint16
}

// Config carries the engine's tunable behavior.
type Config struct {
	// CompatSignaling drives the red LED instead of the yellow one
	// during programming, for two-LED boards.
	CompatSignaling bool

	// TriggerMask selects which debounced switch lines start a
	// session. Defaults to both lines.
	TriggerMask uint8

	// OnResult, when set, is called after every completed session with
	// its outcome.
	OnResult func(script.Result)

	// PollInterval paces Run. Defaults to half a fast tick.
	PollInterval time.Duration
}

// Option mutates the engine configuration.
type Option func(*Config)

// WithCompatSignaling enables the two-LED signaling variant.
func WithCompatSignaling(on bool) Option {
	return func(c *Config) { c.CompatSignaling = on }
}

// WithTriggerMask restricts which switch lines start a session.
func WithTriggerMask(mask uint8) Option {
	return func(c *Config) { c.TriggerMask = mask }
}

// WithResultHook registers a callback invoked with each session result.
func WithResultHook(hook func(script.Result)) Option {
	return func(c *Config) { c.OnResult = hook }
}

// WithPollInterval overrides the Run pacing interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.PollInterval = d }
}

// Engine is the operational state machine. It is not safe for
// concurrent use; drive it from a single goroutine.
type Engine struct {
	hw     hal.Hardware
	clk    clock.Source
	keys   *debounce.Filter
	budget Budget
	runner Runner
	config Config

	state  State
	lastOK bool
	phase  bool
	buzzer uint8

	fastMark  uint8
	slowMark  uint8
	sleepMark uint8
}

// New assembles an engine in the init state.
func New(hw hal.Hardware, clk clock.Source, budget Budget, runner Runner, options ...Option) *Engine {
	config := Config{
		TriggerMask:  debounce.SwitchOnboard | debounce.SwitchExt,
		PollInterval: clock.FastInterval / 2,
	}
	for _, option := range options {
		option(&config)
	}
	return &Engine{
		hw:     hw,
		clk:    clk,
		keys:   debounce.NewFilter(),
		budget: budget,
		runner: runner,
		config: config,
		state:  StateInit,
		lastOK: true,
	}
}

// State returns the current operational state.
func (e *Engine) State() State { return e.state }

// Init prepares the hardware and anchors the tick marks. Call once
// before the first Step.
func (e *Engine) Init() error {
	if err := e.hw.Init(); err != nil {
		return err
	}
	e.fastMark = e.clk.Fast()
	e.slowMark = e.clk.Slow()
	e.sleepMark = e.clk.Slow()
	return nil
}

// Run initializes the hardware and paces Step until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Init(); err != nil {
		return err
	}
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Step()
		}
	}
}

// Step executes one poll iteration: advance the blink phase, sample the
// switches, drive the indicators, process the current state and decide
// on sleep. A Step in the sleep state blocks inside hal.Hardware.Halt
// until a wake line fires.
func (e *Engine) Step() {
	now := e.clk.Slow()
	if clock.Elapsed(e.slowMark, now) >= clock.ThresholdSlow {
		e.slowMark = now
		e.phase = !e.phase
	}

	nowFast := e.clk.Fast()
	if clock.Elapsed(e.fastMark, nowFast) >= clock.ThresholdFast {
		e.fastMark = nowFast
		e.keys.Sample(e.hw.ReadSwitches())
		if e.buzzer > 0 {
			e.buzzer--
		}
	}

	s := SignalsFor(e.state, e.phase, e.lastOK, e.config.CompatSignaling)
	e.hw.SetLED(hal.Green, s.Green)
	e.hw.SetLED(hal.Yellow, s.Yellow)
	e.hw.SetLED(hal.Red, s.Red)
	e.hw.SetBuzzer(e.buzzer > 0 && !s.MuteBuzzer)

	e.process()

	// inactivity check; never preempt a session
	if e.state != StateProgramming && e.state != StateSleep &&
		clock.Elapsed(e.sleepMark, e.clk.Slow()) > clock.ThresholdSleep {
		// arm before the state change so a press from here on is
		// latched and the coming Halt returns immediately
		e.hw.ArmWake(hal.WakeOnboard)
		e.hw.ArmWake(hal.WakeExt)
		e.state = StateSleep
	}
}

func (e *Engine) process() {
	switch e.state {
	case StateInit, StateWakeup:
		if e.budget.Remaining() == 0 {
			e.state = StateNoMore
		} else {
			e.state = StateIdle
		}

	case StateIdle:
		if e.keys.Pressed(e.config.TriggerMask) {
			e.sleepMark = e.clk.Slow()
			if e.budget.Remaining() > 0 {
				e.state = StateProgramming
			} else {
				e.buzzer = BuzzRefused
				e.state = StateNoMore
			}
		}

	case StateProgramming:
		result := e.runner.Run()
		if e.config.OnResult != nil {
			e.config.OnResult(result)
		}
		switch result {
		case script.Success:
			e.buzzer = BuzzSuccess
			e.lastOK = true
			e.state = StateIdle
		case script.NoProgramAvailable:
			e.buzzer = BuzzRefused
			e.lastOK = false
			e.state = StateNoProgram
		default:
			e.buzzer = BuzzFailure
			e.lastOK = false
			e.state = StateIdle
		}
		// a session counts as activity however it ended
		e.sleepMark = e.clk.Slow()

	case StateSleep:
		e.hw.Halt()
		e.hw.DisarmWake(hal.WakeOnboard)
		e.hw.DisarmWake(hal.WakeExt)
		e.sleepMark = e.clk.Slow()
		e.state = StateWakeup
	}
}
