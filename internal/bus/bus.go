// Package bus implements the system bus connecting the CPU, PPU, APU,
// cartridge and controller ports, and drives their cycle-accurate timing
// relationship.
package bus

import (
	"io"

	"nescore/internal/apu"
	"nescore/internal/cartridge"
	"nescore/internal/cpu"
	"nescore/internal/input"
	"nescore/internal/memory"
	"nescore/internal/ppu"
	"nescore/internal/savestate"
)

// Bus connects all NES components together and owns the master clock: one
// CPU step per iteration, with the PPU stepped 3 times per CPU cycle and
// the APU once per CPU cycle, matching NTSC timing.
type Bus struct {
	CPU       *cpu.CPU
	PPU       *ppu.PPU
	APU       *apu.APU
	Memory    *memory.Memory
	Input     *input.InputState
	Cartridge *cartridge.Cartridge

	ppuMemory *memory.PPUMemory

	// System state
	totalCycles uint64
	cpuCycles   uint64
	ppuCycles   uint64
	frameCount  uint64

	// Timing coordination
	dmaSuspendCycles uint64
	dmaInProgress    bool
	nmiPending       bool

	// Frame timing (NTSC: 262 scanlines, 341 PPU cycles/scanline)
	cyclesPerFrame uint64
	oddFrame       bool

	// lastStep is the most recent CPU step outcome, exposed for test
	// harnesses driving the core to completion (see RunUntilInfiniteLoop).
	lastStep cpu.StepResult
}

// New creates a new system bus with all components, wired together but
// with no cartridge loaded.
func New() *Bus {
	bus := &Bus{
		PPU:   ppu.New(),
		APU:   apu.New(),
		Input: input.NewInputState(),

		cyclesPerFrame: 89342,
	}

	bus.Memory = memory.New(bus.PPU, bus.APU, nil)
	bus.Memory.SetInputSystem(bus.Input)
	bus.CPU = cpu.New(bus.Memory)

	bus.wireCallbacks()
	bus.Reset()

	return bus
}

func (b *Bus) wireCallbacks() {
	b.PPU.SetNMICallback(b.triggerNMI)
	b.PPU.SetFrameCompleteCallback(b.handleFrameComplete)
	b.PPU.SetScanlineCallback(b.handleScanline)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)
	b.APU.SetMemoryReadCallback(b.Memory.Read)
	b.APU.SetDMAStallCallback(b.stallCPU)
}

// Reset resets all components to their initial state
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()

	b.totalCycles = 0
	b.cpuCycles = 0
	b.ppuCycles = 0
	b.frameCount = 0
	b.dmaSuspendCycles = 0
	b.dmaInProgress = false
	b.nmiPending = false
	b.oddFrame = false

	b.PPU.SetFrameCount(0)
}

// triggerNMI is called by the PPU when an NMI should be triggered
func (b *Bus) triggerNMI() {
	b.nmiPending = true
}

// handleFrameComplete is called by the PPU when a frame is naturally completed
func (b *Bus) handleFrameComplete() {
	b.frameCount = b.PPU.GetFrameCount()
}

// handleScanline is called by the PPU once per visible/pre-render scanline,
// driving mapper scanline-IRQ counters (MMC3).
func (b *Bus) handleScanline() {
	if b.Cartridge != nil {
		b.Cartridge.Scanline()
	}
}

// stallCPU holds the CPU for the given number of extra cycles, the same
// mechanism OAMDMA uses, to model the DMC channel's CPU-stealing sample
// fetch.
func (b *Bus) stallCPU(cycles int) {
	b.dmaSuspendCycles += uint64(cycles)
	b.dmaInProgress = true
}

// Step executes one CPU instruction (or one stalled cycle, if DMA/DMC is
// holding the CPU) and advances the PPU and APU in lockstep.
func (b *Bus) Step() {
	var cpuCycles uint64

	if b.dmaSuspendCycles > 0 {
		cpuCycles = 1
		b.dmaSuspendCycles--
		if b.dmaSuspendCycles == 0 {
			b.dmaInProgress = false
		}
		b.lastStep = cpu.StepResult{State: cpu.DmaTransfer}
	} else {
		if b.nmiPending {
			b.CPU.TriggerNMI()
			b.nmiPending = false
		}
		b.CPU.SetIRQ(b.irqLine())

		b.lastStep, cpuCycles = b.CPU.Step()
	}

	ppuCyclesToRun := cpuCycles * 3
	for i := uint64(0); i < ppuCyclesToRun; i++ {
		b.PPU.Step()
		b.ppuCycles++
	}

	for i := uint64(0); i < cpuCycles; i++ {
		b.APU.Step()
	}

	b.cpuCycles += cpuCycles
	b.totalCycles += cpuCycles

	if b.ppuMemory != nil && b.Cartridge != nil {
		b.ppuMemory.SetMirroring(memory.MirrorMode(b.Cartridge.MirrorMode()))
	}
}

// irqLine is the level the CPU observes: the logical OR of the mapper's IRQ
// (MMC3's scanline counter) and the APU's frame/DMC IRQs.
func (b *Bus) irqLine() bool {
	if b.Cartridge != nil && b.Cartridge.IRQPending() {
		return true
	}
	return b.APU.IRQPending()
}

// TriggerOAMDMA initiates an OAM DMA transfer
func (b *Bus) TriggerOAMDMA(sourcePage uint8) {
	if b.dmaInProgress {
		return
	}

	dmaCycles := uint64(513)
	if b.cpuCycles%2 == 1 {
		dmaCycles = 514
	}

	b.dmaInProgress = true
	b.dmaSuspendCycles = dmaCycles

	sourceAddress := uint16(sourcePage) << 8
	for i := 0; i < 256; i++ {
		data := b.Memory.Read(sourceAddress + uint16(i))
		b.PPU.WriteOAM(uint8(i), data)
	}
}

// LoadCartridge loads a cartridge into the system, rebuilding the memory
// map and CPU around it and resetting the machine from the new ROM's reset
// vector.
func (b *Bus) LoadCartridge(cart *cartridge.Cartridge) {
	b.Cartridge = cart

	b.Memory = memory.New(b.PPU, b.APU, cart)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	b.ppuMemory = memory.NewPPUMemory(cart, memory.MirrorMode(cart.MirrorMode()))
	b.PPU.SetMemory(b.ppuMemory)

	b.wireCallbacks()

	b.CPU.Reset()
}

// Run runs the emulator for a specified number of frames
func (b *Bus) Run(frames int) {
	targetFrames := b.frameCount + uint64(frames)
	for b.frameCount < targetFrames {
		b.Step()
	}
}

// RunCycles runs the emulator for a specified number of CPU cycles
func (b *Bus) RunCycles(cycles uint64) {
	targetCycles := b.cpuCycles + cycles
	for b.cpuCycles < targetCycles {
		b.Step()
	}
}

// Frame executes one complete frame worth of cycles
func (b *Bus) Frame() {
	targetCycles := b.cpuCycles + 29781
	for b.cpuCycles < targetCycles {
		b.Step()
	}
}

// LastStepState reports what the most recent Step call did, letting test
// harnesses detect DMA stalls, interrupt entry, or a spun-up infinite loop
// without disassembling the instruction stream themselves.
func (b *Bus) LastStepState() cpu.StepState {
	return b.lastStep.State
}

// RunUntilInfiniteLoop steps the bus until the CPU settles into a
// self-targeting branch or JMP, or maxCycles is exhausted. It returns the
// address of the loop and whether one was found.
func (b *Bus) RunUntilInfiniteLoop(maxCycles uint64) (uint16, bool) {
	target := b.cpuCycles + maxCycles
	for b.cpuCycles < target {
		b.Step()
		if b.lastStep.State == cpu.InfiniteLoop {
			return b.lastStep.PC, true
		}
	}
	return 0, false
}

// GetFrameRate returns the current frame rate based on NTSC timing
func (b *Bus) GetFrameRate() float64 {
	cpuFrequency := 1789773.0
	cpuCyclesPerFrame := cpuFrequency / 60.098803
	return cpuFrequency / cpuCyclesPerFrame
}

// GetFrameBuffer returns the current PPU frame buffer
func (b *Bus) GetFrameBuffer() []uint32 {
	frameBuffer := b.PPU.GetFrameBuffer()
	return frameBuffer[:]
}

// GetAudioSamples returns the current audio samples from the APU
func (b *Bus) GetAudioSamples() []float32 {
	return b.APU.GetSamples()
}

// SetAudioSampleRate sets the target audio sample rate for the APU
func (b *Bus) SetAudioSampleRate(rate int) {
	b.APU.SetSampleRate(rate)
}

// GetCycleCount returns the current CPU cycle count
func (b *Bus) GetCycleCount() uint64 { return b.cpuCycles }

// GetFrameCount returns the current frame count
func (b *Bus) GetFrameCount() uint64 { return b.frameCount }

// IsDMAInProgress returns whether DMA is currently in progress
func (b *Bus) IsDMAInProgress() bool { return b.dmaInProgress }

func (b *Bus) isRenderingEnabled() bool {
	mask := b.PPU.ReadRegister(0x2001)
	return (mask & 0x18) != 0
}

// SetControllerButton sets the state of a controller button
func (b *Bus) SetControllerButton(controller int, button input.Button, pressed bool) {
	switch controller {
	case 0, 1:
		b.Input.Controller1.SetButton(button, pressed)
	case 2:
		b.Input.Controller2.SetButton(button, pressed)
	}
}

// SetControllerButtons sets all button states for a controller at once.
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 0, 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

// GetInputState returns the input state for direct access
func (b *Bus) GetInputState() *input.InputState {
	return b.Input
}

// GetCPUState returns the current CPU state for testing
func (b *Bus) GetCPUState() CPUState {
	return CPUState{
		PC:     b.CPU.PC,
		A:      b.CPU.A,
		X:      b.CPU.X,
		Y:      b.CPU.Y,
		SP:     b.CPU.SP,
		Cycles: b.cpuCycles,
		Flags: CPUFlags{
			N: b.CPU.N,
			V: b.CPU.V,
			B: b.CPU.B,
			D: b.CPU.D,
			I: b.CPU.I,
			Z: b.CPU.Z,
			C: b.CPU.C,
		},
	}
}

// CPUState represents CPU state snapshot for testing
type CPUState struct {
	PC      uint16
	A, X, Y uint8
	SP      uint8
	Cycles  uint64
	Flags   CPUFlags
}

// CPUFlags represents CPU status flags for testing
type CPUFlags struct {
	N, V, B, D, I, Z, C bool
}

// GetPPUState returns the current PPU state for testing
func (b *Bus) GetPPUState() PPUState {
	scanline := int((b.ppuCycles % b.cyclesPerFrame) / 341)
	cycle := int((b.ppuCycles % b.cyclesPerFrame) % 341)

	return PPUState{
		Scanline:    scanline,
		Cycle:       cycle,
		FrameCount:  b.frameCount,
		VBlankFlag:  (b.PPU.ReadRegister(0x2002) & 0x80) != 0,
		RenderingOn: b.isRenderingEnabled(),
	}
}

// PPUState represents PPU state snapshot for testing
type PPUState struct {
	Scanline    int
	Cycle       int
	FrameCount  uint64
	VBlankFlag  bool
	RenderingOn bool
}

// SaveState writes the full machine state: cartridge/mapper, CPU, PPU, APU
// (the order spec.md's save-state boundary names), followed by RAM and
// controller state so a restored machine is indistinguishable from the one
// that was saved.
func (b *Bus) SaveState(w io.Writer) error {
	return savestate.Save(w, b.Cartridge, b.CPU, b.PPU, b.APU, b.Memory, b.Input)
}

// LoadState restores a machine state previously written by SaveState. The
// caller must have already loaded the same cartridge ROM that produced it.
func (b *Bus) LoadState(r io.Reader) error {
	return savestate.Load(r, b.Cartridge, b.CPU, b.PPU, b.APU, b.Memory, b.Input)
}
