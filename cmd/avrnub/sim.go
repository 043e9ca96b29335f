package main

import (
	"github.com/avrnub/go-avrnub/isp"
	"github.com/avrnub/go-avrnub/target"
)

// simPort emulates just enough of a connected, healthy target for
// hardware-free demo runs: it syncs on the first enable attempt,
// answers signature reads from the catalog entry and is always ready.
type simPort struct {
	dev   *target.Device
	reset bool
}

func (p *simPort) SetReset(asserted bool) error {
	p.reset = asserted
	return nil
}

func (p *simPort) Exchange(out [4]byte) ([4]byte, error) {
	var in [4]byte
	switch {
	case out[0] == isp.CmdProgEnable1 && out[1] == isp.CmdProgEnable2:
		in[2] = isp.SyncEcho
	case out[0] == isp.CmdReadSignature:
		in[3] = p.dev.Signature[out[2]%3]
	case out[0] == isp.CmdPollBusy:
		in[3] = 0x00
	}
	return in, nil
}
