package cartridge

import (
	"encoding/binary"
	"io"
)

// mapper000 implements NROM: fixed 16KiB or 32KiB PRG-ROM, fixed 8KiB
// CHR-ROM/RAM, no bank switching beyond the 16KiB mirror.
type mapper000 struct {
	prg      []uint8
	chr      []uint8
	sram     [sramSize]uint8
	chrIsRAM bool
	mirror   MirrorMode
	prgBanks int
}

func newMapper000(prg, chr []uint8, chrIsRAM bool, mirror MirrorMode) *mapper000 {
	return &mapper000{
		prg:      prg,
		chr:      chr,
		chrIsRAM: chrIsRAM,
		mirror:   mirror,
		prgBanks: len(prg) / prgBankSize,
	}
}

func (m *mapper000) ReadPRG(addr uint16) uint8 {
	switch {
	case addr >= 0x8000:
		offset := addr - 0x8000
		if m.prgBanks == 1 {
			offset &= 0x3FFF
		}
		if int(offset) < len(m.prg) {
			return m.prg[offset]
		}
	case addr >= 0x6000:
		return m.sram[addr-0x6000]
	}
	return 0
}

func (m *mapper000) WritePRG(addr uint16, value uint8) {
	if addr >= 0x6000 && addr < 0x8000 {
		m.sram[addr-0x6000] = value
	}
}

func (m *mapper000) ReadCHR(addr uint16) uint8 {
	if int(addr) < len(m.chr) {
		return m.chr[addr]
	}
	return 0
}

func (m *mapper000) WriteCHR(addr uint16, value uint8) {
	if m.chrIsRAM && int(addr) < len(m.chr) {
		m.chr[addr] = value
	}
}

func (m *mapper000) MirrorMode() MirrorMode { return m.mirror }
func (m *mapper000) Scanline()              {}
func (m *mapper000) IRQPending() bool       { return false }
func (m *mapper000) ClearIRQ()              {}

func (m *mapper000) SaveState(w io.Writer) error {
	if m.chrIsRAM {
		if err := binary.Write(w, binary.LittleEndian, m.chr); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, m.sram[:])
}

func (m *mapper000) LoadState(r io.Reader) error {
	if m.chrIsRAM {
		if err := binary.Read(r, binary.LittleEndian, m.chr); err != nil {
			return err
		}
	}
	return binary.Read(r, binary.LittleEndian, m.sram[:])
}
