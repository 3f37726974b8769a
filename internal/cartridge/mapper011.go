package cartridge

import (
	"encoding/binary"
	"io"
)

// mapper011 implements Color Dreams: one write register at $8000-$FFFF
// packs both a 32KiB PRG bank select in the low bits and an 8KiB CHR bank
// select in the high bits, with no finer-grained switching available.
type mapper011 struct {
	prg []uint8
	chr []uint8

	chrIsRAM bool
	prgBanks uint8 // 32KiB units
	chrBanks uint8 // 8KiB units

	prgBank uint8
	chrBank uint8

	mirror MirrorMode
}

func newMapper011(prg, chr []uint8, chrIsRAM bool, mirror MirrorMode) *mapper011 {
	m := &mapper011{
		prg:      prg,
		chrIsRAM: chrIsRAM,
		prgBanks: uint8(len(prg) / (32 * 1024)),
		mirror:   mirror,
	}
	if len(chr) == 0 {
		m.chr = make([]uint8, 8192)
	} else {
		m.chr = chr
	}
	m.chrBanks = uint8(len(m.chr) / chrBankSize)
	return m
}

func (m *mapper011) ReadPRG(addr uint16) uint8 {
	if addr < 0x8000 {
		return 0
	}
	bank := m.prgBank
	if m.prgBanks > 0 {
		bank %= m.prgBanks
	}
	idx := uint32(bank)*32*1024 + uint32(addr&0x7FFF)
	if int(idx) < len(m.prg) {
		return m.prg[idx]
	}
	return 0
}

func (m *mapper011) WritePRG(addr uint16, value uint8) {
	if addr < 0x8000 {
		return
	}
	m.prgBank = value & 0x03
	m.chrBank = (value >> 4) & 0x0F
}

func (m *mapper011) ReadCHR(addr uint16) uint8 {
	bank := m.chrBank
	if m.chrBanks > 0 {
		bank %= m.chrBanks
	}
	idx := uint32(bank)*chrBankSize + uint32(addr&0x1FFF)
	if int(idx) < len(m.chr) {
		return m.chr[idx]
	}
	return 0
}

func (m *mapper011) WriteCHR(addr uint16, value uint8) {
	if m.chrIsRAM && int(addr) < len(m.chr) {
		m.chr[addr] = value
	}
}

func (m *mapper011) MirrorMode() MirrorMode { return m.mirror }
func (m *mapper011) Scanline()              {}
func (m *mapper011) IRQPending() bool       { return false }
func (m *mapper011) ClearIRQ()              {}

func (m *mapper011) SaveState(w io.Writer) error {
	if m.chrIsRAM {
		if err := binary.Write(w, binary.LittleEndian, m.chr); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, m.prgBank); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, m.chrBank)
}

func (m *mapper011) LoadState(r io.Reader) error {
	if m.chrIsRAM {
		if err := binary.Read(r, binary.LittleEndian, m.chr); err != nil {
			return err
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &m.prgBank); err != nil {
		return err
	}
	return binary.Read(r, binary.LittleEndian, &m.chrBank)
}
