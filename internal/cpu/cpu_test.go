package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// flatMemory is a 64KiB flat address space used to drive the CPU directly,
// without the bus's PPU/APU/cartridge wiring.
type flatMemory struct {
	ram [65536]uint8
}

func (m *flatMemory) Read(address uint16) uint8  { return m.ram[address] }
func (m *flatMemory) Write(address uint16, v uint8) { m.ram[address] = v }

func newTestCPU(resetVector uint16) (*CPU, *flatMemory) {
	mem := &flatMemory{}
	mem.ram[0xFFFC] = uint8(resetVector)
	mem.ram[0xFFFD] = uint8(resetVector >> 8)
	c := New(mem)
	c.Reset()
	return c, mem
}

func TestStepNormalInstruction(t *testing.T) {
	c, mem := newTestCPU(0x8000)
	mem.ram[0x8000] = 0xA9 // LDA #$42
	mem.ram[0x8001] = 0x42

	result, cycles := c.Step()
	assert.Equal(t, NormalInstruction, result.State)
	assert.Equal(t, uint64(2), cycles)
	assert.Equal(t, uint8(0x42), c.A)
}

func TestStepDetectsJmpSelfLoop(t *testing.T) {
	c, mem := newTestCPU(0x8000)
	mem.ram[0x8000] = 0x4C // JMP $8000
	mem.ram[0x8001] = 0x00
	mem.ram[0x8002] = 0x80

	result, _ := c.Step()
	assert.Equal(t, InfiniteLoop, result.State)
	assert.Equal(t, uint16(0x8000), result.PC)
}

func TestStepDetectsBranchSelfLoop(t *testing.T) {
	c, mem := newTestCPU(0x8000)
	mem.ram[0x8000] = 0xF0 // BEQ -2
	mem.ram[0x8001] = 0xFE
	c.Z = true // branch taken

	result, _ := c.Step()
	assert.Equal(t, InfiniteLoop, result.State)
	assert.Equal(t, uint16(0x8000), result.PC)
}

func TestStepIgnoresUntakenBranchSelfTarget(t *testing.T) {
	c, mem := newTestCPU(0x8000)
	mem.ram[0x8000] = 0xF0 // BEQ -2, but Z clear so not taken
	mem.ram[0x8001] = 0xFE
	c.Z = false

	result, _ := c.Step()
	assert.Equal(t, NormalInstruction, result.State)
}

func TestStepReportsStartingInterrupt(t *testing.T) {
	c, mem := newTestCPU(0x8000)
	mem.ram[0x8000] = 0xEA // NOP
	mem.ram[0xFFFA] = 0x00 // NMI vector
	mem.ram[0xFFFB] = 0x90
	c.TriggerNMI()

	result, _ := c.Step()
	assert.Equal(t, StartingInterrupt, result.State)
	assert.Equal(t, uint16(0x9000), c.PC)
}

func TestKilOpcodeHaltsCPU(t *testing.T) {
	c, mem := newTestCPU(0x8000)
	mem.ram[0x8000] = 0x02 // KIL
	mem.ram[0x8001] = 0xEA // NOP, should never execute

	result, cycles := c.Step()
	assert.Equal(t, Waiting, result.State)
	assert.Equal(t, uint64(2), cycles)
	haltedPC := c.PC

	for i := 0; i < 5; i++ {
		result, cycles := c.Step()
		assert.Equal(t, Waiting, result.State)
		assert.Equal(t, uint64(1), cycles)
	}
	assert.Equal(t, haltedPC, c.PC, "a halted CPU must not advance PC")
	assert.Equal(t, uint8(0x00), c.A, "the NOP after KIL must never execute")
}

func TestResetClearsHalt(t *testing.T) {
	c, mem := newTestCPU(0x8000)
	mem.ram[0x8000] = 0x02 // KIL
	c.Step()
	assert.True(t, c.halted)

	c.Reset()
	assert.False(t, c.halted)
}

func TestIllegalOpcodeANC(t *testing.T) {
	c, mem := newTestCPU(0x8000)
	mem.ram[0x8000] = 0x0B // ANC #$FF
	mem.ram[0x8001] = 0xFF
	c.A = 0xFF

	c.Step()
	assert.Equal(t, uint8(0xFF), c.A)
	assert.True(t, c.N)
	assert.True(t, c.C, "ANC copies N into C")
}

func TestIllegalOpcodeALR(t *testing.T) {
	c, mem := newTestCPU(0x8000)
	mem.ram[0x8000] = 0x4B // ALR #$03
	mem.ram[0x8001] = 0x03
	c.A = 0x03 // A & operand = 0x03, then shift right -> 0x01, carry = 1

	c.Step()
	assert.Equal(t, uint8(0x01), c.A)
	assert.True(t, c.C)
}

func TestIllegalOpcodeAXS(t *testing.T) {
	c, mem := newTestCPU(0x8000)
	mem.ram[0x8000] = 0xCB // AXS #$01
	mem.ram[0x8001] = 0x01
	c.A = 0x0F
	c.X = 0x0F // (A & X) = 0x0F, minus operand 0x01 = 0x0E

	c.Step()
	assert.Equal(t, uint8(0x0E), c.X)
	assert.True(t, c.C, "AXS sets carry when no borrow occurs")
}

func TestIllegalOpcodeLAS(t *testing.T) {
	c, mem := newTestCPU(0x8000)
	mem.ram[0x8000] = 0xBB // LAS $9000,Y
	mem.ram[0x8001] = 0x00
	mem.ram[0x8002] = 0x90
	mem.ram[0x9000] = 0xFF
	c.SP = 0x0F
	c.Y = 0

	c.Step()
	assert.Equal(t, uint8(0x0F), c.A)
	assert.Equal(t, uint8(0x0F), c.X)
	assert.Equal(t, uint8(0x0F), c.SP)
}

func TestIllegalOpcodeTAS(t *testing.T) {
	c, mem := newTestCPU(0x8000)
	mem.ram[0x8000] = 0x9B // TAS $9000,Y
	mem.ram[0x8001] = 0x00
	mem.ram[0x8002] = 0x90
	c.A = 0x0F
	c.X = 0xFF
	c.Y = 0

	c.Step()
	assert.Equal(t, uint8(0x0F), c.SP, "TAS sets SP to A AND X")
	assert.Equal(t, uint8(0x0F&0x90), mem.ram[0x9000])
}
