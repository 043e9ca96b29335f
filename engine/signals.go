package engine

// Signals is the complete indicator output for one poll iteration.
// MuteBuzzer overrides the countdown: some states force the buzzer off
// no matter how many ticks remain.
type Signals struct {
	Green      bool
	Yellow     bool
	Red        bool
	MuteBuzzer bool
}

// SignalsFor computes the indicator output for a state.
//
// phase is the slow blink phase, toggling every 250 ms. lastOK is the
// outcome of the most recent session. compat selects the red LED
// instead of the yellow one while programming, for boards that only
// populate two indicator channels.
func SignalsFor(state State, phase, lastOK, compat bool) Signals {
	switch state {
	case StateInit, StateWakeup:
		return Signals{Green: true, MuteBuzzer: true}

	case StateIdle:
		if lastOK {
			return Signals{Green: true}
		}
		return Signals{Red: phase}

	case StateProgramming:
		if compat {
			return Signals{Red: true}
		}
		return Signals{Yellow: true}

	case StateNoMore:
		// green and red blink in phase
		return Signals{Green: phase, Red: phase}

	case StateNoProgram:
		// green and red alternate
		return Signals{Green: !phase, Red: phase}
	}

	// sleep: everything off
	return Signals{MuteBuzzer: true}
}
