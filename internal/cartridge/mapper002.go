package cartridge

import (
	"encoding/binary"
	"io"
)

// mapper002 implements UxROM: a single switchable 16KiB PRG bank at
// $8000-$BFFF, with $C000-$FFFF fixed to the last bank. CHR is always
// 8KiB of RAM (UxROM boards carry no CHR-ROM).
type mapper002 struct {
	prg      []uint8
	chr      []uint8
	sram     [sramSize]uint8
	chrIsRAM bool
	mirror   MirrorMode
	prgBanks uint8
	bank     uint8
}

func newMapper002(prg, chr []uint8, chrIsRAM bool, mirror MirrorMode) *mapper002 {
	return &mapper002{
		prg:      prg,
		chr:      chr,
		chrIsRAM: chrIsRAM,
		mirror:   mirror,
		prgBanks: uint8(len(prg) / prgBankSize),
	}
}

func (m *mapper002) ReadPRG(addr uint16) uint8 {
	switch {
	case addr >= 0x8000 && addr < 0xC000:
		idx := uint32(m.bank)*prgBankSize + uint32(addr-0x8000)
		if int(idx) < len(m.prg) {
			return m.prg[idx]
		}
	case addr >= 0xC000:
		idx := uint32(m.prgBanks-1)*prgBankSize + uint32(addr-0xC000)
		if int(idx) < len(m.prg) {
			return m.prg[idx]
		}
	case addr >= 0x6000:
		return m.sram[addr-0x6000]
	}
	return 0
}

func (m *mapper002) WritePRG(addr uint16, value uint8) {
	switch {
	case addr >= 0x8000:
		m.bank = value & (m.prgBanks - 1)
	case addr >= 0x6000:
		m.sram[addr-0x6000] = value
	}
}

func (m *mapper002) ReadCHR(addr uint16) uint8 {
	if int(addr) < len(m.chr) {
		return m.chr[addr]
	}
	return 0
}

func (m *mapper002) WriteCHR(addr uint16, value uint8) {
	if m.chrIsRAM && int(addr) < len(m.chr) {
		m.chr[addr] = value
	}
}

func (m *mapper002) MirrorMode() MirrorMode { return m.mirror }
func (m *mapper002) Scanline()              {}
func (m *mapper002) IRQPending() bool       { return false }
func (m *mapper002) ClearIRQ()              {}

func (m *mapper002) SaveState(w io.Writer) error {
	if m.chrIsRAM {
		if err := binary.Write(w, binary.LittleEndian, m.chr); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, m.sram[:]); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, m.bank)
}

func (m *mapper002) LoadState(r io.Reader) error {
	if m.chrIsRAM {
		if err := binary.Read(r, binary.LittleEndian, m.chr); err != nil {
			return err
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &m.sram); err != nil {
		return err
	}
	return binary.Read(r, binary.LittleEndian, &m.bank)
}
