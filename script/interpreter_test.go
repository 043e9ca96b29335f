package script

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/avrnub/go-avrnub/isp"
)

// sliceDecoder yields a fixed instruction list, then a trailing error.
type sliceDecoder struct {
	instrs []Instruction
	final  error
}

func (d *sliceDecoder) Next() (Instruction, error) {
	if len(d.instrs) == 0 {
		return Instruction{}, d.final
	}
	instr := d.instrs[0]
	d.instrs = d.instrs[1:]
	return instr, nil
}

// recordingExecutor records dispatched calls and fails on demand.
type recordingExecutor struct {
	calls  []string
	failOn string
	closed int
}

func (e *recordingExecutor) call(name string) error {
	e.calls = append(e.calls, name)
	if name == e.failOn {
		return fmt.Errorf("%s failed", name)
	}
	return nil
}

func (e *recordingExecutor) ProgramEnable() error { return e.call("enable") }
func (e *recordingExecutor) VerifySignature(want [3]byte) error {
	return e.call("verify-signature")
}
func (e *recordingExecutor) ChipErase() error { return e.call("erase") }
func (e *recordingExecutor) WriteFlashPage(addr uint32, data []byte) error {
	return e.call(fmt.Sprintf("flash@%04X/%d", addr, len(data)))
}
func (e *recordingExecutor) WriteEepromByte(addr uint16, value byte) error {
	return e.call(fmt.Sprintf("eeprom@%04X=%02X", addr, value))
}
func (e *recordingExecutor) WriteEepromPage(addr uint16, data []byte) error {
	return e.call(fmt.Sprintf("eeprom-page@%04X/%d", addr, len(data)))
}
func (e *recordingExecutor) WriteFuse(f isp.Fuse, value byte) error {
	return e.call(fmt.Sprintf("fuse-%s=%02X", f, value))
}
func (e *recordingExecutor) WriteLockBits(value byte) error {
	return e.call(fmt.Sprintf("lock=%02X", value))
}
func (e *recordingExecutor) Sleep(d time.Duration) {
	e.calls = append(e.calls, fmt.Sprintf("sleep %s", d))
}
func (e *recordingExecutor) Close() error {
	e.closed++
	return nil
}

func fullProgram() []Instruction {
	return []Instruction{
		{Op: OpEnterProg},
		{Op: OpExpectSignature, Signature: [3]byte{0x1E, 0x95, 0x0F}},
		{Op: OpChipErase},
		{Op: OpWriteFlashPage, Addr: 0x0000, Data: []byte{1, 2, 3, 4}},
		{Op: OpWriteEepromByte, Addr: 0x10, Value: 0xAA},
		{Op: OpWriteFuse, Fuse: isp.FuseHigh, Value: 0xD9},
		{Op: OpWriteLockBits, Value: 0x3C},
		{Op: OpDelay, Duration: 50 * time.Millisecond},
		{Op: OpEnd},
	}
}

func TestRunFullProgram(t *testing.T) {
	exec := &recordingExecutor{}
	in := NewInterpreter(exec)

	result := in.Run(&sliceDecoder{instrs: fullProgram()})
	if result != Success {
		t.Fatalf("result = %v, want Success", result)
	}

	want := []string{
		"enable",
		"verify-signature",
		"erase",
		"flash@0000/4",
		"eeprom@0010=AA",
		"fuse-high=D9",
		"lock=3C",
		"sleep 50ms",
	}
	if len(exec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", exec.calls, want)
	}
	for i := range want {
		if exec.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, exec.calls[i], want[i])
		}
	}
	if exec.closed != 1 {
		t.Errorf("Close called %d times, want 1", exec.closed)
	}
}

func TestRunPrimitiveFailure(t *testing.T) {
	tests := []struct {
		name   string
		failOn string
	}{
		{name: "target absent", failOn: "enable"},
		{name: "wrong chip", failOn: "verify-signature"},
		{name: "erase stuck", failOn: "erase"},
		{name: "flash write fails", failOn: "flash@0000/4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &recordingExecutor{failOn: tt.failOn}
			in := NewInterpreter(exec)

			result := in.Run(&sliceDecoder{instrs: fullProgram()})
			if result != HardwareFailure {
				t.Errorf("result = %v, want HardwareFailure", result)
			}
			// the session was started, so reset must be released
			if exec.closed != 1 {
				t.Errorf("Close called %d times, want 1", exec.closed)
			}
			// no instruction after the failing one may run
			last := exec.calls[len(exec.calls)-1]
			if last != tt.failOn {
				t.Errorf("last call = %q, want %q", last, tt.failOn)
			}
		})
	}
}

func TestRunNoProgram(t *testing.T) {
	exec := &recordingExecutor{}
	in := NewInterpreter(exec)

	result := in.Run(&sliceDecoder{final: ErrNoProgram})
	if result != NoProgramAvailable {
		t.Fatalf("result = %v, want NoProgramAvailable", result)
	}
	if len(exec.calls) != 0 {
		t.Errorf("no-program run dispatched calls: %v", exec.calls)
	}
	if exec.closed != 0 {
		t.Errorf("Close called on a session that never started")
	}
}

func TestRunCorruptStream(t *testing.T) {
	exec := &recordingExecutor{}
	in := NewInterpreter(exec)

	dec := &sliceDecoder{
		instrs: []Instruction{{Op: OpEnterProg}},
		final:  errors.New("truncated operand"),
	}
	result := in.Run(dec)
	if result != HardwareFailure {
		t.Fatalf("result = %v, want HardwareFailure", result)
	}
	if exec.closed != 1 {
		t.Errorf("Close called %d times, want 1", exec.closed)
	}
}

func TestResultString(t *testing.T) {
	tests := []struct {
		result Result
		want   string
	}{
		{Success, "success"},
		{HardwareFailure, "hardware failure"},
		{NoProgramAvailable, "no program available"},
		{Result(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.result.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.result, got, tt.want)
		}
	}
}
