// Package debounce filters raw switch samples into stable press events.
//
// The filter uses a two-bit vertical counter per switch line: a line must
// read the same level on four consecutive fast-tick samples before its
// debounced state changes. Press edges are latched so the caller sees
// exactly one event per physical press, no matter how often it polls and
// no matter how long the switch is held.
package debounce

// Switch line masks. The engine polls the on-board switch and the
// external programming pedal through the same filter.
const (
	SwitchOnboard uint8 = 1 << 0
	SwitchExt     uint8 = 1 << 1
)

// Filter debounces up to eight switch lines.
// Sample must be called once per fast tick; Pressed may be called any time.
// Use NewFilter: the counters must start saturated or the very first
// sample would count as stable.
type Filter struct {
	ct0     uint8 // vertical counter, bit 0
	ct1     uint8 // vertical counter, bit 1
	state   uint8 // debounced level per line
	pressed uint8 // latched press edges, consumed by Pressed
}

// NewFilter returns a Filter with all lines released.
func NewFilter() *Filter {
	return &Filter{ct0: 0xFF, ct1: 0xFF}
}

// Sample feeds one raw sample into the filter. A set bit means the
// corresponding switch currently reads as pressed.
func (f *Filter) Sample(raw uint8) {
	changed := raw ^ f.state
	f.ct0 = ^(f.ct0 & changed)
	f.ct1 = f.ct0 ^ (f.ct1 & changed)
	stable := changed & f.ct0 & f.ct1
	f.state ^= stable
	f.pressed |= f.state & stable
}

// Pressed reports whether any line in mask has completed a stable press
// edge since the last call for that line, and consumes those edges.
// A held switch produces exactly one event.
func (f *Filter) Pressed(mask uint8) bool {
	hit := f.pressed & mask
	f.pressed &^= hit
	return hit != 0
}

// State returns the current debounced level of the lines in mask.
func (f *Filter) State(mask uint8) uint8 {
	return f.state & mask
}
