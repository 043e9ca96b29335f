package isp

// Transaction byte values per the AVR serial programming instruction set.
const (
	// CmdProgEnable1/2 start the Programming Enable transaction
	CmdProgEnable1 = 0xAC
	CmdProgEnable2 = 0x53

	// CmdChipErase2 is the second byte of the Chip Erase transaction
	CmdChipErase2 = 0x80

	// CmdReadSignature is the Read Signature Byte transaction lead byte
	CmdReadSignature = 0x30

	// CmdLoadFlashLow / CmdLoadFlashHigh load one byte into the flash
	// page buffer (low/high byte of the addressed word)
	CmdLoadFlashLow  = 0x40
	CmdLoadFlashHigh = 0x48

	// CmdWriteFlashPage commits the loaded page buffer
	CmdWriteFlashPage = 0x4C

	// CmdWriteEeprom writes a single EEPROM byte
	CmdWriteEeprom = 0xC0

	// CmdLoadEepromPage / CmdWriteEepromPage buffer and commit one
	// EEPROM page
	CmdLoadEepromPage  = 0xC1
	CmdWriteEepromPage = 0xC2

	// CmdWriteFuseLow2 / High2 / Ext2 select the fuse byte written by an
	// AC-prefixed transaction
	CmdWriteFuseLow2  = 0xA0
	CmdWriteFuseHigh2 = 0xA8
	CmdWriteFuseExt2  = 0xA4

	// CmdWriteLock2 selects the lock-bits write
	CmdWriteLock2 = 0xE0

	// CmdReadFuseLow1 / CmdReadFuseHigh1 lead the fuse and lock-bit
	// read transactions; byte 1 selects which byte is returned
	CmdReadFuseLow1  = 0x50
	CmdReadFuseHigh1 = 0x58

	// CmdPollBusy is the RDY/BSY poll transaction lead byte
	CmdPollBusy = 0xF0
)

// SyncEcho is the value byte 2 of the Programming Enable reply must
// carry when the target is in sync.
const SyncEcho = CmdProgEnable2

// Fuse selects one of the three AVR fuse bytes.
type Fuse int

const (
	FuseLow Fuse = iota
	FuseHigh
	FuseExtended
)

func (f Fuse) String() string {
	switch f {
	case FuseLow:
		return "low"
	case FuseHigh:
		return "high"
	case FuseExtended:
		return "extended"
	}
	return "unknown"
}

// progEnable builds the Programming Enable transaction.
func progEnable() [4]byte {
	return [4]byte{CmdProgEnable1, CmdProgEnable2, 0x00, 0x00}
}

// chipErase builds the Chip Erase transaction.
func chipErase() [4]byte {
	return [4]byte{CmdProgEnable1, CmdChipErase2, 0x00, 0x00}
}

// readSignature builds the Read Signature Byte transaction for one of
// the three signature addresses.
func readSignature(addr uint8) [4]byte {
	return [4]byte{CmdReadSignature, 0x00, addr, 0x00}
}

// loadFlash builds the Load Program Memory Page transaction for the
// low or high byte of the word at wordAddr.
func loadFlash(high bool, wordAddr uint16, value byte) [4]byte {
	lead := byte(CmdLoadFlashLow)
	if high {
		lead = CmdLoadFlashHigh
	}
	return [4]byte{lead, byte(wordAddr >> 8), byte(wordAddr), value}
}

// writeFlashPage builds the Write Program Memory Page transaction for
// the page containing wordAddr.
func writeFlashPage(wordAddr uint16) [4]byte {
	return [4]byte{CmdWriteFlashPage, byte(wordAddr >> 8), byte(wordAddr), 0x00}
}

// writeEeprom builds the Write EEPROM Memory transaction.
func writeEeprom(addr uint16, value byte) [4]byte {
	return [4]byte{CmdWriteEeprom, byte(addr >> 8), byte(addr), value}
}

// loadEepromPage builds the Load EEPROM Memory Page transaction for the
// in-page offset.
func loadEepromPage(offset uint8, value byte) [4]byte {
	return [4]byte{CmdLoadEepromPage, 0x00, offset, value}
}

// writeEepromPage builds the Write EEPROM Memory Page transaction.
func writeEepromPage(addr uint16) [4]byte {
	return [4]byte{CmdWriteEepromPage, byte(addr >> 8), byte(addr), 0x00}
}

// writeFuse builds the fuse write transaction for the selected byte.
func writeFuse(f Fuse, value byte) [4]byte {
	second := byte(CmdWriteFuseLow2)
	switch f {
	case FuseHigh:
		second = CmdWriteFuseHigh2
	case FuseExtended:
		second = CmdWriteFuseExt2
	}
	return [4]byte{CmdProgEnable1, second, 0x00, value}
}

// writeLockBits builds the lock-bits write transaction. The two unused
// high bits read back as 1, so they are forced on before writing.
func writeLockBits(value byte) [4]byte {
	return [4]byte{CmdProgEnable1, CmdWriteLock2, 0x00, value | 0xC0}
}

// readFuse builds the fuse read transaction for the selected byte.
// Low and extended share the 0x50 lead, high rides on 0x58; byte 1
// disambiguates.
func readFuse(f Fuse) [4]byte {
	switch f {
	case FuseHigh:
		return [4]byte{CmdReadFuseHigh1, 0x08, 0x00, 0x00}
	case FuseExtended:
		return [4]byte{CmdReadFuseLow1, 0x08, 0x00, 0x00}
	}
	return [4]byte{CmdReadFuseLow1, 0x00, 0x00, 0x00}
}

// readLockBits builds the lock-bits read transaction.
func readLockBits() [4]byte {
	return [4]byte{CmdReadFuseHigh1, 0x00, 0x00, 0x00}
}

// pollBusy builds the RDY/BSY poll transaction.
func pollBusy() [4]byte {
	return [4]byte{CmdPollBusy, 0x00, 0x00, 0x00}
}
