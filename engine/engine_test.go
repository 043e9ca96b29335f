package engine

import (
	"testing"

	"github.com/avrnub/go-avrnub/clock"
	"github.com/avrnub/go-avrnub/debounce"
	"github.com/avrnub/go-avrnub/hal"
	"github.com/avrnub/go-avrnub/hal/halsim"
	"github.com/avrnub/go-avrnub/script"
)

type fakeBudget struct {
	remaining uint16
}

func (b *fakeBudget) Remaining() uint16 { return b.remaining }

type fakeRunner struct {
	result script.Result
	runs   int
}

func (r *fakeRunner) Run() script.Result {
	r.runs++
	return r.result
}

type rig struct {
	board  *halsim.Board
	clk    *clock.ManualSource
	budget *fakeBudget
	runner *fakeRunner
	engine *Engine
}

func newRig(t *testing.T, cycles uint16, result script.Result, options ...Option) *rig {
	t.Helper()
	r := &rig{
		board:  halsim.New(),
		clk:    &clock.ManualSource{},
		budget: &fakeBudget{remaining: cycles},
		runner: &fakeRunner{result: result},
	}
	r.engine = New(r.board, r.clk, r.budget, r.runner, options...)
	if err := r.engine.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

// stepFast advances one fast tick and runs one poll iteration.
func (r *rig) stepFast() {
	r.clk.AdvanceFast(1)
	r.engine.Step()
}

// press holds the switch down long enough for the filter to accept it.
func (r *rig) press(mask uint8) {
	r.board.SetSwitches(mask)
	for i := 0; i < 4; i++ {
		r.stepFast()
	}
}

func (r *rig) release() {
	r.board.SetSwitches(0)
	for i := 0; i < 4; i++ {
		r.stepFast()
	}
}

func TestInitTransitions(t *testing.T) {
	t.Run("cycles remaining", func(t *testing.T) {
		r := newRig(t, 5, script.Success)
		r.engine.Step()
		if got := r.engine.State(); got != StateIdle {
			t.Errorf("state = %v, want %v", got, StateIdle)
		}
	})

	t.Run("budget exhausted", func(t *testing.T) {
		r := newRig(t, 0, script.Success)
		r.engine.Step()
		if got := r.engine.State(); got != StateNoMore {
			t.Errorf("state = %v, want %v", got, StateNoMore)
		}

		// presses are dead ends from here
		r.press(debounce.SwitchOnboard)
		r.stepFast()
		if r.runner.runs != 0 {
			t.Error("session ran from the no-more-cycles state")
		}
	})
}

func TestPressRunsSession(t *testing.T) {
	r := newRig(t, 5, script.Success)
	r.engine.Step()

	r.press(debounce.SwitchOnboard)
	if got := r.engine.State(); got != StateProgramming {
		t.Fatalf("state after press = %v, want %v", got, StateProgramming)
	}
	if r.runner.runs != 0 {
		t.Fatal("session ran before the programming iteration")
	}

	r.stepFast()
	if r.runner.runs != 1 {
		t.Fatalf("runs = %d, want 1", r.runner.runs)
	}
	if got := r.engine.State(); got != StateIdle {
		t.Errorf("state after session = %v, want %v", got, StateIdle)
	}

	// short chirp: the buzzer stays on for the next few fast ticks,
	// then falls silent
	r.stepFast()
	if !r.board.Buzzer() {
		t.Error("buzzer off right after a successful session")
	}
	for i := 0; i < BuzzSuccess; i++ {
		r.stepFast()
	}
	if r.board.Buzzer() {
		t.Error("buzzer still on after the chirp expired")
	}
}

func TestHeldSwitchRunsOnce(t *testing.T) {
	r := newRig(t, 5, script.Success)
	r.engine.Step()

	r.press(debounce.SwitchExt)
	for i := 0; i < 20; i++ {
		r.stepFast()
	}
	if r.runner.runs != 1 {
		t.Errorf("runs = %d, want 1 for a held switch", r.runner.runs)
	}

	// a full release and a fresh press triggers again
	r.release()
	r.press(debounce.SwitchExt)
	r.stepFast()
	if r.runner.runs != 2 {
		t.Errorf("runs = %d, want 2 after a second press", r.runner.runs)
	}
}

func TestHardwareFailureSignals(t *testing.T) {
	r := newRig(t, 5, script.HardwareFailure)
	r.engine.Step()
	r.press(debounce.SwitchOnboard)
	r.stepFast()

	if got := r.engine.State(); got != StateIdle {
		t.Fatalf("state = %v, want %v", got, StateIdle)
	}
	r.stepFast()
	if !r.board.Buzzer() {
		t.Error("buzzer off after a failed session")
	}

	// red blinks with the slow phase instead of the steady green
	r.clk.AdvanceSlow(1)
	r.engine.Step()
	redA := r.board.LED(hal.Red)
	r.clk.AdvanceSlow(1)
	r.engine.Step()
	redB := r.board.LED(hal.Red)
	if redA == redB {
		t.Errorf("red did not blink: %v then %v", redA, redB)
	}
	if r.board.LED(hal.Green) {
		t.Error("green on after a failed session")
	}
}

func TestNoProgramSignals(t *testing.T) {
	r := newRig(t, 5, script.NoProgramAvailable)
	r.engine.Step()
	r.press(debounce.SwitchOnboard)
	r.stepFast()

	if got := r.engine.State(); got != StateNoProgram {
		t.Fatalf("state = %v, want %v", got, StateNoProgram)
	}

	// green and red alternate
	r.clk.AdvanceSlow(1)
	r.engine.Step()
	if r.board.LED(hal.Green) == r.board.LED(hal.Red) {
		t.Errorf("green %v and red %v must alternate",
			r.board.LED(hal.Green), r.board.LED(hal.Red))
	}
}

func TestPressWithExhaustedBudget(t *testing.T) {
	r := newRig(t, 1, script.Success)
	r.engine.Step()
	if got := r.engine.State(); got != StateIdle {
		t.Fatalf("state = %v, want %v", got, StateIdle)
	}

	r.budget.remaining = 0
	r.press(debounce.SwitchOnboard)

	if got := r.engine.State(); got != StateNoMore {
		t.Errorf("state = %v, want %v", got, StateNoMore)
	}
	if r.runner.runs != 0 {
		t.Error("session ran with an exhausted budget")
	}
	r.stepFast()
	if !r.board.Buzzer() {
		t.Error("refusal tone missing")
	}
}

func TestCompatSignaling(t *testing.T) {
	r := newRig(t, 5, script.Success, WithCompatSignaling(true))
	r.engine.Step()
	r.press(debounce.SwitchOnboard)

	// the programming iteration signals before it runs the session
	r.stepFast()
	if !r.board.LED(hal.Red) || r.board.LED(hal.Yellow) {
		t.Errorf("compat signaling: red %v yellow %v, want red only",
			r.board.LED(hal.Red), r.board.LED(hal.Yellow))
	}
}

func TestInactivitySleepAndWake(t *testing.T) {
	r := newRig(t, 5, script.Success)
	r.engine.Step()

	// exactly at the threshold the engine stays awake
	r.clk.AdvanceSlow(clock.ThresholdSleep)
	r.engine.Step()
	if got := r.engine.State(); got == StateSleep {
		t.Fatal("slept exactly at the threshold")
	}

	r.clk.AdvanceSlow(1)
	r.engine.Step()
	if got := r.engine.State(); got != StateSleep {
		t.Fatalf("state = %v, want %v", got, StateSleep)
	}
	if !r.board.Armed(hal.WakeOnboard) || !r.board.Armed(hal.WakeExt) {
		t.Fatal("wake lines not armed on sleep entry")
	}

	// a press fires the armed line, so the sleeping iteration returns
	// immediately instead of blocking
	r.board.SetSwitches(debounce.SwitchOnboard)
	r.engine.Step()
	if got := r.engine.State(); got != StateWakeup {
		t.Fatalf("state after wake = %v, want %v", got, StateWakeup)
	}
	if r.board.LED(hal.Green) || r.board.LED(hal.Yellow) || r.board.LED(hal.Red) {
		t.Error("an indicator stayed on through sleep")
	}
	if r.board.Buzzer() {
		t.Error("buzzer stayed on through sleep")
	}

	r.engine.Step()
	if got := r.engine.State(); got != StateIdle {
		t.Errorf("state after wakeup = %v, want %v", got, StateIdle)
	}
}

func TestWakeRestoresNoMore(t *testing.T) {
	r := newRig(t, 0, script.Success)
	r.engine.Step()
	if got := r.engine.State(); got != StateNoMore {
		t.Fatalf("state = %v, want %v", got, StateNoMore)
	}

	r.clk.AdvanceSlow(clock.ThresholdSleep + 1)
	r.engine.Step()
	if got := r.engine.State(); got != StateSleep {
		t.Fatalf("state = %v, want %v", got, StateSleep)
	}

	// waking must not forget the exhausted budget
	r.board.SetSwitches(debounce.SwitchOnboard)
	r.engine.Step()
	r.engine.Step()
	if got := r.engine.State(); got != StateNoMore {
		t.Errorf("state after wake = %v, want %v", got, StateNoMore)
	}
}

func TestSessionBlocksSleep(t *testing.T) {
	board := halsim.New()
	clk := &clock.ManualSource{}
	budget := &fakeBudget{remaining: 5}

	// a slow session: the slow counter races far past the inactivity
	// threshold while the target is being programmed
	runner := RunnerFunc(func() script.Result {
		clk.AdvanceSlow(clock.ThresholdSleep + 10)
		return script.Success
	})

	e := New(board, clk, budget, runner)
	if err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	e.Step()

	board.SetSwitches(debounce.SwitchOnboard)
	for i := 0; i < 4; i++ {
		clk.AdvanceFast(1)
		e.Step()
	}
	if got := e.State(); got != StateProgramming {
		t.Fatalf("state = %v, want %v", got, StateProgramming)
	}

	e.Step()
	if got := e.State(); got != StateIdle {
		t.Errorf("state after a long session = %v, want %v (no sleep)", got, StateIdle)
	}
}

func TestResultHook(t *testing.T) {
	var results []script.Result
	r := newRig(t, 5, script.HardwareFailure,
		WithResultHook(func(res script.Result) { results = append(results, res) }))
	r.engine.Step()
	r.press(debounce.SwitchOnboard)
	r.stepFast()

	if len(results) != 1 || results[0] != script.HardwareFailure {
		t.Errorf("hook results = %v, want [hardware failure]", results)
	}
}

func TestTriggerMask(t *testing.T) {
	r := newRig(t, 5, script.Success, WithTriggerMask(debounce.SwitchExt))
	r.engine.Step()

	r.press(debounce.SwitchOnboard)
	r.stepFast()
	if r.runner.runs != 0 {
		t.Error("masked switch line started a session")
	}

	r.release()
	r.press(debounce.SwitchExt)
	r.stepFast()
	if r.runner.runs != 1 {
		t.Errorf("runs = %d, want 1", r.runner.runs)
	}
}

func TestSignalsFor(t *testing.T) {
	tests := []struct {
		name   string
		state  State
		phase  bool
		lastOK bool
		compat bool
		want   Signals
	}{
		{name: "init", state: StateInit, want: Signals{Green: true, MuteBuzzer: true}},
		{name: "wakeup", state: StateWakeup, want: Signals{Green: true, MuteBuzzer: true}},
		{name: "idle ok", state: StateIdle, lastOK: true, want: Signals{Green: true}},
		{name: "idle failed phase on", state: StateIdle, phase: true, want: Signals{Red: true}},
		{name: "idle failed phase off", state: StateIdle, want: Signals{}},
		{name: "programming", state: StateProgramming, want: Signals{Yellow: true}},
		{name: "programming compat", state: StateProgramming, compat: true, want: Signals{Red: true}},
		{name: "no more phase on", state: StateNoMore, phase: true, want: Signals{Green: true, Red: true}},
		{name: "no more phase off", state: StateNoMore, want: Signals{}},
		{name: "no program phase on", state: StateNoProgram, phase: true, want: Signals{Red: true}},
		{name: "no program phase off", state: StateNoProgram, want: Signals{Green: true}},
		{name: "sleep", state: StateSleep, want: Signals{MuteBuzzer: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SignalsFor(tt.state, tt.phase, tt.lastOK, tt.compat)
			if got != tt.want {
				t.Errorf("SignalsFor = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateInit, "init"},
		{StateWakeup, "wakeup"},
		{StateIdle, "idle"},
		{StateProgramming, "programming"},
		{StateNoMore, "no-more-cycles"},
		{StateNoProgram, "no-program"},
		{StateSleep, "sleep"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
