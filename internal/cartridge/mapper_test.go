package cartridge

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMMC1(m *mapper001, addr uint16, value uint8) {
	for i := 0; i < 5; i++ {
		m.WritePRG(addr, (value>>uint(i))&1)
	}
}

func TestMapper001ShiftRegisterLoadsControl(t *testing.T) {
	prg := make([]uint8, 4*prgBankSize)
	m := newMapper001(prg, nil, true, MirrorHorizontal)

	writeMMC1(m, 0x8000, 0x0E) // PRG mode 3, CHR mode 0, mirroring bits 10 = vertical
	assert.Equal(t, uint8(3), m.prgMode())
}

func TestMapper001ResetBitForcesPRGMode3(t *testing.T) {
	prg := make([]uint8, 4*prgBankSize)
	m := newMapper001(prg, nil, true, MirrorHorizontal)
	m.WritePRG(0x8000, 0x80) // reset bit
	assert.Equal(t, uint8(3), m.prgMode())
	assert.Equal(t, uint8(0), m.shiftCount)
}

func TestMapper001PRGBankSelection(t *testing.T) {
	prg := make([]uint8, 4*prgBankSize)
	for b := 0; b < 4; b++ {
		for i := 0; i < prgBankSize; i++ {
			prg[b*prgBankSize+i] = uint8(b)
		}
	}
	m := newMapper001(prg, nil, true, MirrorHorizontal)

	writeMMC1(m, 0xE000, 2) // select PRG bank 2, mode 3 (fixed last at 0xC000)
	assert.Equal(t, uint8(2), m.ReadPRG(0x8000))
	assert.Equal(t, uint8(3), m.ReadPRG(0xC000)) // last bank fixed
}

func TestMapper002BankSwitchAndFixedLastBank(t *testing.T) {
	prg := make([]uint8, 4*prgBankSize)
	for b := 0; b < 4; b++ {
		for i := 0; i < prgBankSize; i++ {
			prg[b*prgBankSize+i] = uint8(b)
		}
	}
	m := newMapper002(prg, make([]uint8, chrBankSize), true, MirrorVertical)
	m.WritePRG(0x8000, 2)
	assert.Equal(t, uint8(2), m.ReadPRG(0x8000))
	assert.Equal(t, uint8(3), m.ReadPRG(0xC000)) // always last bank
}

func TestMapper003CHRBankSwitch(t *testing.T) {
	prg := make([]uint8, prgBankSize)
	chr := make([]uint8, 4*chrBankSize)
	for b := 0; b < 4; b++ {
		for i := 0; i < chrBankSize; i++ {
			chr[b*chrBankSize+i] = uint8(b)
		}
	}
	m := newMapper003(prg, chr, false, MirrorHorizontal)
	m.WritePRG(0x8000, 2)
	assert.Equal(t, uint8(2), m.ReadCHR(0x0000))
}

func TestMapper004IRQFiresAfterReload(t *testing.T) {
	prg := make([]uint8, 8*8192)
	m := newMapper004(prg, nil, true, MirrorHorizontal)

	m.WritePRG(0xC000, 4) // irq latch = 4
	m.WritePRG(0xC001, 0) // reload request
	m.WritePRG(0xE001, 0) // enable IRQ

	for i := 0; i < 4; i++ {
		m.Scanline()
		assert.False(t, m.IRQPending(), "should not fire before counter reaches 0, iter %d", i)
	}
	m.Scanline()
	assert.True(t, m.IRQPending())
	m.ClearIRQ()
	assert.False(t, m.IRQPending())
}

func TestMapper004IRQDisabledNeverFires(t *testing.T) {
	prg := make([]uint8, 8*8192)
	m := newMapper004(prg, nil, true, MirrorHorizontal)
	m.WritePRG(0xC000, 0)
	m.WritePRG(0xC001, 0)
	m.WritePRG(0xE000, 0) // explicitly disabled
	for i := 0; i < 8; i++ {
		m.Scanline()
	}
	assert.False(t, m.IRQPending())
}

func TestMapper007SingleScreenMirroringSelect(t *testing.T) {
	prg := make([]uint8, 2*32*1024)
	m := newMapper007(prg, nil, true)
	assert.Equal(t, MirrorSingleLow, m.MirrorMode())
	m.WritePRG(0x8000, 0x10)
	assert.Equal(t, MirrorSingleHigh, m.MirrorMode())
}

func TestMapper009LatchSwitchesCHRBank(t *testing.T) {
	prg := make([]uint8, 5*8192)
	chr := make([]uint8, 4*4096)
	for b := 0; b < 4; b++ {
		for i := 0; i < 4096; i++ {
			chr[b*4096+i] = uint8(b)
		}
	}
	m := newMapper009(prg, chr, false, MirrorVertical)
	m.WritePRG(0xB000, 1) // $FD bank for $0000 = 1
	m.WritePRG(0xC000, 2) // $FE bank for $0000 = 2

	assert.Equal(t, uint8(2), m.ReadCHR(0x0005)) // latch0 starts at 0xFE
	m.ReadCHR(0x0FD8)                            // triggers latch0 -> 0xFD
	assert.Equal(t, uint8(1), m.ReadCHR(0x0005))
}

func TestMapper011PackedBankSelect(t *testing.T) {
	prg := make([]uint8, 4*32*1024)
	chr := make([]uint8, 4*chrBankSize)
	for b := 0; b < 4; b++ {
		for i := 0; i < chrBankSize; i++ {
			chr[b*chrBankSize+i] = uint8(b)
		}
	}
	m := newMapper011(prg, chr, false, MirrorHorizontal)
	m.WritePRG(0x8000, 0x23) // prg bank = 3&3=3, chr bank = 2
	assert.Equal(t, uint8(2), m.ReadCHR(0))
}

func TestMapper066PackedBankSelect(t *testing.T) {
	prg := make([]uint8, 4*32*1024)
	chr := make([]uint8, 4*chrBankSize)
	for b := 0; b < 4; b++ {
		for i := 0; i < chrBankSize; i++ {
			chr[b*chrBankSize+i] = uint8(b)
		}
	}
	m := newMapper066(prg, chr, false, MirrorHorizontal)
	m.WritePRG(0x8000, 0x31) // chr bank = 1, prg bank = 3
	assert.Equal(t, uint8(1), m.ReadCHR(0))
}

func TestMapperSaveLoadStateRoundtrip(t *testing.T) {
	prg := make([]uint8, 4*prgBankSize)
	m := newMapper001(prg, nil, true, MirrorHorizontal)
	writeMMC1(m, 0xE000, 1)

	var buf bytes.Buffer
	require.NoError(t, m.SaveState(&buf))

	m2 := newMapper001(prg, nil, true, MirrorHorizontal)
	require.NoError(t, m2.LoadState(&buf))
	assert.Equal(t, m.prgBank, m2.prgBank)
}
