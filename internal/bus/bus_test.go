package bus

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nescore/internal/cartridge"
	"nescore/internal/cpu"
	"nescore/internal/input"
)

const (
	prgBankSize = 16 * 1024
	chrBankSize = 8 * 1024
)

// buildNROM assembles a minimal iNES v1 image for mapper 0 (NROM) with a
// single 16KiB PRG bank filled with NOPs and the reset vector pointing at
// its first byte, so the CPU spins through a harmless instruction stream.
func buildNROM() []byte {
	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(1) // 1 PRG bank (16KiB)
	buf.WriteByte(1) // 1 CHR bank (8KiB)
	buf.WriteByte(0) // mapper 0, horizontal mirroring
	buf.WriteByte(0)
	buf.Write(make([]byte, 8))

	prg := make([]byte, prgBankSize)
	for i := range prg {
		prg[i] = 0xEA // NOP
	}
	prg[0x3FFC] = 0x00 // reset vector low byte -> $8000
	prg[0x3FFD] = 0x80 // reset vector high byte
	buf.Write(prg)

	buf.Write(make([]byte, chrBankSize))

	return buf.Bytes()
}

func loadTestCartridge(t *testing.T) *cartridge.Cartridge {
	t.Helper()
	cart, err := cartridge.Load(bytes.NewReader(buildNROM()))
	require.NoError(t, err)
	return cart
}

// buildNROMWithSelfJump is like buildNROM but replaces the reset entry point
// with a JMP $8000 spin loop, so the CPU settles into an infinite loop as
// soon as it starts running.
func buildNROMWithSelfJump() []byte {
	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(1)
	buf.WriteByte(1)
	buf.WriteByte(0)
	buf.WriteByte(0)
	buf.Write(make([]byte, 8))

	prg := make([]byte, prgBankSize)
	for i := range prg {
		prg[i] = 0xEA // NOP
	}
	prg[0x0000] = 0x4C // JMP $8000
	prg[0x0001] = 0x00
	prg[0x0002] = 0x80
	prg[0x3FFC] = 0x00 // reset vector -> $8000
	prg[0x3FFD] = 0x80
	buf.Write(prg)

	buf.Write(make([]byte, chrBankSize))

	return buf.Bytes()
}

func loadSelfJumpCartridge(t *testing.T) *cartridge.Cartridge {
	t.Helper()
	cart, err := cartridge.Load(bytes.NewReader(buildNROMWithSelfJump()))
	require.NoError(t, err)
	return cart
}

func TestNewBusHasNoCartridge(t *testing.T) {
	b := New()
	assert.Nil(t, b.Cartridge)
	assert.Equal(t, uint64(0), b.GetCycleCount())
	assert.Equal(t, uint64(0), b.GetFrameCount())
}

func TestLoadCartridgeResetsToVector(t *testing.T) {
	b := New()
	b.LoadCartridge(loadTestCartridge(t))
	assert.Equal(t, uint16(0x8000), b.CPU.PC)
}

func TestStepAdvancesCycles(t *testing.T) {
	b := New()
	b.LoadCartridge(loadTestCartridge(t))

	for i := 0; i < 10; i++ {
		b.Step()
	}

	assert.Greater(t, b.GetCycleCount(), uint64(0))
}

func TestOAMDMAStallsCPU(t *testing.T) {
	b := New()
	b.LoadCartridge(loadTestCartridge(t))

	b.TriggerOAMDMA(0x02)
	assert.True(t, b.IsDMAInProgress())

	cyclesBefore := b.GetCycleCount()
	for b.IsDMAInProgress() {
		b.Step()
	}
	assert.Greater(t, b.GetCycleCount(), cyclesBefore+500)
}

func TestSaveLoadStateRoundTrip(t *testing.T) {
	b := New()
	b.LoadCartridge(loadTestCartridge(t))
	for i := 0; i < 20; i++ {
		b.Step()
	}

	var buf bytes.Buffer
	require.NoError(t, b.SaveState(&buf))
	want := b.GetCPUState()

	restored := New()
	restored.LoadCartridge(loadTestCartridge(t))
	require.NoError(t, restored.LoadState(&buf))
	got := restored.GetCPUState()

	assert.Equal(t, want.PC, got.PC)
	assert.Equal(t, want.A, got.A)
	assert.Equal(t, want.X, got.X)
	assert.Equal(t, want.Y, got.Y)
	assert.Equal(t, want.SP, got.SP)
	assert.Equal(t, want.Flags, got.Flags)
}

func TestSaveStateRejectsTrailingData(t *testing.T) {
	b := New()
	b.LoadCartridge(loadTestCartridge(t))

	var buf bytes.Buffer
	require.NoError(t, b.SaveState(&buf))
	buf.WriteByte(0xFF)

	restored := New()
	restored.LoadCartridge(loadTestCartridge(t))
	err := restored.LoadState(&buf)
	assert.Error(t, err)
}

func TestRunUntilInfiniteLoopDetectsSelfJump(t *testing.T) {
	b := New()
	b.LoadCartridge(loadSelfJumpCartridge(t))

	pc, found := b.RunUntilInfiniteLoop(1000)
	assert.True(t, found)
	assert.Equal(t, uint16(0x8000), pc)
	assert.Equal(t, cpu.InfiniteLoop, b.LastStepState())
}

func TestRunUntilInfiniteLoopExhaustsBudgetWithoutLoop(t *testing.T) {
	b := New()
	b.LoadCartridge(loadTestCartridge(t)) // straight-line NOPs, no self-loop

	_, found := b.RunUntilInfiniteLoop(50)
	assert.False(t, found)
}

func TestSetControllerButtons(t *testing.T) {
	b := New()
	b.SetControllerButton(1, input.ButtonA, true)

	state := b.GetInputState()
	require.NotNil(t, state)

	// Strobe high then low to latch the button snapshot into the shift
	// register, as the CPU would via two writes to $4016.
	state.Write(0x4016, 1)
	state.Write(0x4016, 0)
	assert.Equal(t, uint8(1), state.Read(0x4016)&0x01)
}
