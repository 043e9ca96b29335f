package main

import (
	"time"

	"github.com/rkjdid/util"

	"github.com/avrnub/go-avrnub/counter"
)

// Config is the runner's TOML configuration. Relative paths are
// resolved against the -root directory.
type Config struct {
	Device   string        // serial port of the adapter, overridden by -dev
	Target   string        // device name in the target catalog
	Script   string        // programming script image
	Counter  string        // cycle counter file
	Cycles   int           // initial budget when the counter file is created
	Compat   bool          // drive the red LED instead of the yellow one while programming
	PollRate util.Duration // engine poll interval
}

var DefaultConfig = Config{
	Target:   "atmega328p",
	Script:   "program.avs",
	Counter:  "cycles.bin",
	Cycles:   counter.Unlimited,
	PollRate: util.Duration(5 * time.Millisecond),
}
