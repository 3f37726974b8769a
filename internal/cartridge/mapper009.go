package cartridge

import (
	"encoding/binary"
	"io"
)

// mapper009 implements MMC2 (used by Punch-Out!!): an 8KiB switchable PRG
// bank at $8000-$9FFF with the last three 8KiB banks fixed above it, and two
// independent CHR latches that each flip between one of two programmed 4KiB
// banks when the PPU fetches tile $FD8 or $FE8 in their half of pattern
// memory. This latch-driven CHR switch is MMC2's signature trick, used to
// swap in Punch-Out's opponent sprite sheets mid-frame.
type mapper009 struct {
	prg []uint8
	chr []uint8

	chrIsRAM bool
	prgBanks uint8 // 8KiB units
	chrBanks uint8 // 4KiB units

	prgBank uint8

	latch0 uint8 // 0xFD or 0xFE
	latch1 uint8

	chrFD0000 uint8
	chrFE0000 uint8
	chrFD1000 uint8
	chrFE1000 uint8

	mirrorVertical bool
}

func newMapper009(prg, chr []uint8, chrIsRAM bool, mirror MirrorMode) *mapper009 {
	m := &mapper009{
		prg:            prg,
		chrIsRAM:       chrIsRAM,
		prgBanks:       uint8(len(prg) / 8192),
		latch0:         0xFE,
		latch1:         0xFE,
		mirrorVertical: mirror == MirrorVertical,
	}
	if len(chr) == 0 {
		m.chr = make([]uint8, 8192)
	} else {
		m.chr = chr
	}
	m.chrBanks = uint8(len(m.chr) / 4096)
	return m
}

func (m *mapper009) ReadPRG(addr uint16) uint8 {
	if addr < 0x8000 {
		return 0
	}
	var bank uint8
	switch {
	case addr < 0xA000:
		bank = m.prgBank
	default:
		// last three 8KiB banks fixed at $A000, $C000, $E000
		slot := uint8((addr-0x8000)/0x2000) - 1
		bank = m.prgBanks - 3 + slot
	}
	if m.prgBanks > 0 {
		bank %= m.prgBanks
	}
	idx := uint32(bank)*8192 + uint32(addr&0x1FFF)
	if int(idx) < len(m.prg) {
		return m.prg[idx]
	}
	return 0
}

func (m *mapper009) WritePRG(addr uint16, value uint8) {
	switch {
	case addr >= 0xA000 && addr < 0xB000:
		m.prgBank = value & 0x0F
	case addr >= 0xB000 && addr < 0xC000:
		m.chrFD0000 = value & 0x1F
	case addr >= 0xC000 && addr < 0xD000:
		m.chrFE0000 = value & 0x1F
	case addr >= 0xD000 && addr < 0xE000:
		m.chrFD1000 = value & 0x1F
	case addr >= 0xE000 && addr < 0xF000:
		m.chrFE1000 = value & 0x1F
	case addr >= 0xF000:
		m.mirrorVertical = value&1 == 0
	}
}

func (m *mapper009) ReadCHR(addr uint16) uint8 {
	var bank uint8
	if addr&0x1000 == 0 {
		if addr == 0x0FD8 {
			m.latch0 = 0xFD
		} else if addr == 0x0FE8 {
			m.latch0 = 0xFE
		}
		if m.latch0 == 0xFD {
			bank = m.chrFD0000
		} else {
			bank = m.chrFE0000
		}
	} else {
		if addr&0x8 != 0 {
			mid := uint8((addr >> 4) & 0xFF)
			if mid == 0xFD || mid == 0xFE {
				m.latch1 = mid
			}
		}
		if m.latch1 == 0xFD {
			bank = m.chrFD1000
		} else {
			bank = m.chrFE1000
		}
	}
	if m.chrBanks > 0 {
		bank %= m.chrBanks
	}
	idx := uint32(bank)*4096 + uint32(addr&0x0FFF)
	if int(idx) < len(m.chr) {
		return m.chr[idx]
	}
	return 0
}

func (m *mapper009) WriteCHR(addr uint16, value uint8) {
	if m.chrIsRAM && int(addr) < len(m.chr) {
		m.chr[addr] = value
	}
}

func (m *mapper009) MirrorMode() MirrorMode {
	if m.mirrorVertical {
		return MirrorVertical
	}
	return MirrorHorizontal
}

func (m *mapper009) Scanline()        {}
func (m *mapper009) IRQPending() bool { return false }
func (m *mapper009) ClearIRQ()        {}

func (m *mapper009) SaveState(w io.Writer) error {
	if m.chrIsRAM {
		if err := binary.Write(w, binary.LittleEndian, m.chr); err != nil {
			return err
		}
	}
	fields := []any{
		m.prgBank, m.latch0, m.latch1, m.chrFD0000, m.chrFE0000, m.chrFD1000, m.chrFE1000, m.mirrorVertical,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

func (m *mapper009) LoadState(r io.Reader) error {
	if m.chrIsRAM {
		if err := binary.Read(r, binary.LittleEndian, m.chr); err != nil {
			return err
		}
	}
	fields := []any{
		&m.prgBank, &m.latch0, &m.latch1, &m.chrFD0000, &m.chrFE0000, &m.chrFD1000, &m.chrFE1000, &m.mirrorVertical,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}
