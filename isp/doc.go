// Package isp implements the AVR serial programming protocol (ISP).
//
// Every ISP operation is one full-duplex four-byte SPI transaction. The
// driver owns the programming bus for the duration of a session and is
// strictly synchronous: each primitive blocks until the target has
// acknowledged the operation or a bounded retry/poll budget is
// exhausted.
//
// # Transactions
//
//	Program enable:   AC 53 00 00   (byte 2 of the reply echoes 0x53)
//	Chip erase:       AC 80 00 00
//	Read signature:   30 00 ad 00   (ad = 0..2)
//	Load flash page:  40/48 ah al dd (low/high byte of word)
//	Write flash page: 4C ah al 00
//	EEPROM byte:      C0 ah al dd
//	EEPROM page:      C1/C2
//	Write fuse:       AC A0/A8/A4 00 dd (low/high/extended)
//	Write lock bits:  AC E0 00 dd
//	Poll RDY/BSY:     F0 00 00 00   (bit 0 of byte 3 = busy)
//
// # Basic usage
//
//	dev, _ := target.Default().Lookup("atmega328p")
//	drv := isp.New(port, dev)
//	if err := drv.ProgramEnable(); err != nil {
//	    // target absent or not answering
//	}
//	defer drv.Close()
//	if err := drv.VerifySignature(dev.Signature); err != nil {
//	    // wrong chip on the header
//	}
//	err := drv.ChipErase()
//	err = drv.WriteFlashPage(0x0000, page)
//
// Timing between transactions uses the driver's injected sleep function,
// never the coarse UI tickers: programming waits need sub-millisecond
// precision.
package isp
