package cartridge

import (
	"encoding/binary"
	"io"
)

// mapper007 implements AxROM: a single switchable 32KiB PRG bank covering
// all of $8000-$FFFF, 8KiB of CHR-RAM, and single-screen mirroring selected
// by bit 4 of the bank-select write (instead of the header's mirroring bit).
type mapper007 struct {
	prg      []uint8
	chr      []uint8
	prgBanks uint8
	bank     uint8
	mirror   MirrorMode
}

func newMapper007(prg, chr []uint8, chrIsRAM bool) *mapper007 {
	m := &mapper007{
		prg:      prg,
		prgBanks: uint8(len(prg) / (32 * 1024)),
		mirror:   MirrorSingleLow,
	}
	if len(chr) == 0 {
		m.chr = make([]uint8, 8192)
	} else {
		m.chr = chr
	}
	return m
}

func (m *mapper007) ReadPRG(addr uint16) uint8 {
	if addr < 0x8000 {
		return 0
	}
	idx := uint32(m.bank)*32*1024 + uint32(addr-0x8000)
	if int(idx) < len(m.prg) {
		return m.prg[idx]
	}
	return 0
}

func (m *mapper007) WritePRG(addr uint16, value uint8) {
	if addr < 0x8000 {
		return
	}
	if m.prgBanks > 0 {
		m.bank = value & 0x07 % m.prgBanks
	}
	if value&0x10 != 0 {
		m.mirror = MirrorSingleHigh
	} else {
		m.mirror = MirrorSingleLow
	}
}

func (m *mapper007) ReadCHR(addr uint16) uint8 {
	if int(addr) < len(m.chr) {
		return m.chr[addr]
	}
	return 0
}

func (m *mapper007) WriteCHR(addr uint16, value uint8) {
	if int(addr) < len(m.chr) {
		m.chr[addr] = value
	}
}

func (m *mapper007) MirrorMode() MirrorMode { return m.mirror }
func (m *mapper007) Scanline()              {}
func (m *mapper007) IRQPending() bool       { return false }
func (m *mapper007) ClearIRQ()              {}

func (m *mapper007) SaveState(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, m.chr); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, m.bank); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, m.mirror)
}

func (m *mapper007) LoadState(r io.Reader) error {
	if err := binary.Read(r, binary.LittleEndian, m.chr); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &m.bank); err != nil {
		return err
	}
	return binary.Read(r, binary.LittleEndian, &m.mirror)
}
