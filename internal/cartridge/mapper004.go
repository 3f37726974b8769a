package cartridge

import (
	"encoding/binary"
	"io"
)

// mapper004 implements MMC3: eight bank registers R0-R7 selected by an
// address/data pair at $8000/$8001, independently switchable PRG mode and
// CHR inversion bits, mirroring control, PRG-RAM write protect, and a
// scanline-counted IRQ driven by the PPU's A12 rise once per visible
// scanline (approximated here, as in the rest of this core, by an explicit
// Scanline() tick rather than A12 edge detection).
type mapper004 struct {
	prg  []uint8
	chr  []uint8
	sram [sramSize]uint8

	chrIsRAM bool
	prgBanks uint8
	chrBanks uint8

	bankSelect uint8
	bankData   [8]uint8
	prgMode    uint8 // bit6 of bankSelect
	chrMode    uint8 // bit7 of bankSelect

	mirror     MirrorMode
	fixedMirror bool

	ramEnabled bool
	ramProtect bool

	irqLatch   uint8
	irqCounter uint8
	irqReload  bool
	irqEnabled bool
	irqPending bool
}

func newMapper004(prg, chr []uint8, chrIsRAM bool, mirror MirrorMode) *mapper004 {
	m := &mapper004{
		prg:        prg,
		chrIsRAM:   chrIsRAM,
		prgBanks:   uint8(len(prg) / 8192),
		mirror:     mirror,
		ramEnabled: true,
	}
	if mirror == MirrorFourScreen {
		m.fixedMirror = true
	}
	if len(chr) == 0 {
		m.chr = make([]uint8, 8192)
	} else {
		m.chr = chr
	}
	m.chrBanks = uint8(len(m.chr) / 1024)
	return m
}

func (m *mapper004) prgBankCount8k() uint8 { return m.prgBanks }

func (m *mapper004) ReadPRG(addr uint16) uint8 {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		if m.ramEnabled {
			return m.sram[addr-0x6000]
		}
		return 0
	case addr >= 0x8000:
		bank := m.prgBankFor(addr)
		idx := uint32(bank)*8192 + uint32((addr-0x8000)%8192)
		if int(idx) < len(m.prg) {
			return m.prg[idx]
		}
	}
	return 0
}

func (m *mapper004) prgBankFor(addr uint16) uint8 {
	slot := (addr - 0x8000) / 8192 // 0..3
	last := m.prgBankCount8k() - 1
	secondLast := last - 1
	if m.prgMode == 0 {
		switch slot {
		case 0:
			return m.bankData[6] % m.prgBankCount8k()
		case 1:
			return m.bankData[7] % m.prgBankCount8k()
		case 2:
			return secondLast
		default:
			return last
		}
	}
	switch slot {
	case 0:
		return secondLast
	case 1:
		return m.bankData[7] % m.prgBankCount8k()
	case 2:
		return m.bankData[6] % m.prgBankCount8k()
	default:
		return last
	}
}

func (m *mapper004) WritePRG(addr uint16, value uint8) {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		if m.ramEnabled && !m.ramProtect {
			m.sram[addr-0x6000] = value
		}
	case addr >= 0x8000 && addr < 0xA000:
		if addr%2 == 0 {
			m.bankSelect = value
			m.prgMode = (value >> 6) & 1
			m.chrMode = (value >> 7) & 1
		} else {
			m.bankData[m.bankSelect&0x07] = value
		}
	case addr >= 0xA000 && addr < 0xC000:
		if addr%2 == 0 {
			if !m.fixedMirror {
				if value&1 != 0 {
					m.mirror = MirrorHorizontal
				} else {
					m.mirror = MirrorVertical
				}
			}
		} else {
			m.ramEnabled = value&0x80 != 0
			m.ramProtect = value&0x40 != 0
		}
	case addr >= 0xC000 && addr < 0xE000:
		if addr%2 == 0 {
			m.irqLatch = value
		} else {
			m.irqCounter = 0
			m.irqReload = true
		}
	default: // 0xE000-0xFFFF
		if addr%2 == 0 {
			m.irqEnabled = false
			m.irqPending = false
		} else {
			m.irqEnabled = true
		}
	}
}

func (m *mapper004) chrBankFor1k(slot uint16) uint32 {
	var regs [8]uint8
	if m.chrMode == 0 {
		regs = [8]uint8{m.bankData[0] &^ 1, m.bankData[0] | 1, m.bankData[1] &^ 1, m.bankData[1] | 1,
			m.bankData[2], m.bankData[3], m.bankData[4], m.bankData[5]}
	} else {
		regs = [8]uint8{m.bankData[2], m.bankData[3], m.bankData[4], m.bankData[5],
			m.bankData[0] &^ 1, m.bankData[0] | 1, m.bankData[1] &^ 1, m.bankData[1] | 1}
	}
	return uint32(regs[slot])
}

func (m *mapper004) ReadCHR(addr uint16) uint8 {
	slot := addr / 1024
	bank := m.chrBankFor1k(slot)
	idx := bank*1024 + uint32(addr%1024)
	if int(idx) < len(m.chr) {
		return m.chr[idx]
	}
	return 0
}

func (m *mapper004) WriteCHR(addr uint16, value uint8) {
	if !m.chrIsRAM {
		return
	}
	slot := addr / 1024
	bank := m.chrBankFor1k(slot)
	idx := bank*1024 + uint32(addr%1024)
	if int(idx) < len(m.chr) {
		m.chr[idx] = value
	}
}

func (m *mapper004) MirrorMode() MirrorMode { return m.mirror }

// Scanline ticks the IRQ counter once per visible scanline, reloading from
// the latch on a zero count or an explicit reload request, and raises the
// IRQ line when the counter reaches zero with IRQs enabled.
func (m *mapper004) Scanline() {
	if m.irqCounter == 0 || m.irqReload {
		m.irqCounter = m.irqLatch
		m.irqReload = false
	} else {
		m.irqCounter--
	}
	if m.irqCounter == 0 && m.irqEnabled {
		m.irqPending = true
	}
}

func (m *mapper004) IRQPending() bool { return m.irqPending }
func (m *mapper004) ClearIRQ()        { m.irqPending = false }

func (m *mapper004) SaveState(w io.Writer) error {
	if m.chrIsRAM {
		if err := binary.Write(w, binary.LittleEndian, m.chr); err != nil {
			return err
		}
	}
	fields := []any{
		m.sram[:], m.bankSelect, m.bankData[:], m.prgMode, m.chrMode, m.mirror,
		m.ramEnabled, m.ramProtect, m.irqLatch, m.irqCounter, m.irqReload, m.irqEnabled, m.irqPending,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

func (m *mapper004) LoadState(r io.Reader) error {
	if m.chrIsRAM {
		if err := binary.Read(r, binary.LittleEndian, m.chr); err != nil {
			return err
		}
	}
	fields := []any{
		&m.sram, &m.bankSelect, &m.bankData, &m.prgMode, &m.chrMode, &m.mirror,
		&m.ramEnabled, &m.ramProtect, &m.irqLatch, &m.irqCounter, &m.irqReload, &m.irqEnabled, &m.irqPending,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}
