// Package cartridge implements iNES ROM loading, the mapper abstraction,
// and the concrete bank-switching mappers used by commercial NES cartridges.
package cartridge

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/glog"
)

// MirrorMode is the nametable mirroring mode a cartridge (or its mapper)
// selects for the PPU's VRAM.
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleLow
	MirrorSingleHigh
	MirrorFourScreen
)

const (
	prgBankSize = 16 * 1024
	chrBankSize = 8 * 1024
	sramSize    = 8 * 1024
	trainerSize = 512
)

// Cartridge owns PRG-ROM, CHR-ROM/RAM and the mapper that translates
// cartridge-space addresses into offsets within them.
type Cartridge struct {
	mapperID   uint8
	mapper     Mapper
	hasBattery bool
	hasCHRRAM  bool
	mirror     MirrorMode
}

type iNESHeader struct {
	Magic      [4]uint8
	PRGROMSize uint8
	CHRROMSize uint8
	Flags6     uint8
	Flags7     uint8
	PRGRAMSize uint8
	TVSystem1  uint8
	TVSystem2  uint8
	Padding    [5]uint8
}

// Load parses an iNES v1 file from r and constructs the matching mapper.
func Load(r io.Reader) (*Cartridge, error) {
	var header iNESHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if !bytes.Equal(header.Magic[:], []byte("NES\x1A")) {
		return nil, ErrInvalidHeader
	}
	if header.PRGROMSize == 0 {
		return nil, fmt.Errorf("%w: PRG-ROM size is zero", ErrInvalidHeader)
	}

	mapperID := (header.Flags6 >> 4) | (header.Flags7 & 0xF0)
	hasBattery := header.Flags6&0x02 != 0

	var mirror MirrorMode
	switch {
	case header.Flags6&0x08 != 0:
		mirror = MirrorFourScreen
	case header.Flags6&0x01 != 0:
		mirror = MirrorVertical
	default:
		mirror = MirrorHorizontal
	}

	if header.Flags6&0x04 != 0 {
		trainer := make([]uint8, trainerSize)
		if _, err := io.ReadFull(r, trainer); err != nil {
			return nil, fmt.Errorf("cartridge: reading trainer: %w", err)
		}
	}

	prg := make([]uint8, int(header.PRGROMSize)*prgBankSize)
	if _, err := io.ReadFull(r, prg); err != nil {
		return nil, fmt.Errorf("cartridge: reading PRG-ROM: %w", err)
	}

	var chr []uint8
	chrIsRAM := header.CHRROMSize == 0
	if chrIsRAM {
		chr = make([]uint8, chrBankSize)
	} else {
		chr = make([]uint8, int(header.CHRROMSize)*chrBankSize)
		if _, err := io.ReadFull(r, chr); err != nil {
			return nil, fmt.Errorf("cartridge: reading CHR-ROM: %w", err)
		}
	}

	if n, _ := io.Copy(io.Discard, r); n > 0 {
		return nil, &ExtraDataError{Bytes: n}
	}

	mapper, err := newMapper(mapperID, prg, chr, chrIsRAM, mirror, hasBattery)
	if err != nil {
		return nil, err
	}

	glog.V(1).Infof("cartridge: mapper %d loaded, prg=%dKiB chr=%dKiB chrRAM=%t mirror=%d",
		mapperID, len(prg)/1024, len(chr)/1024, chrIsRAM, mirror)

	return &Cartridge{
		mapperID:   mapperID,
		mapper:     mapper,
		hasBattery: hasBattery,
		hasCHRRAM:  chrIsRAM,
		mirror:     mirror,
	}, nil
}

func (c *Cartridge) ReadPRG(addr uint16) uint8         { return c.mapper.ReadPRG(addr) }
func (c *Cartridge) WritePRG(addr uint16, value uint8) { c.mapper.WritePRG(addr, value) }
func (c *Cartridge) ReadCHR(addr uint16) uint8         { return c.mapper.ReadCHR(addr) }
func (c *Cartridge) WriteCHR(addr uint16, value uint8) { c.mapper.WriteCHR(addr, value) }

// MirrorMode reports the cartridge's current nametable mirroring, which may
// change at runtime for mappers that rewire it (MMC1, MMC3, AxROM).
func (c *Cartridge) MirrorMode() MirrorMode { return c.mapper.MirrorMode() }

// Scanline is forwarded to the mapper once per visible PPU scanline, driving
// scanline-counted IRQ sources such as MMC3's.
func (c *Cartridge) Scanline() { c.mapper.Scanline() }

func (c *Cartridge) IRQPending() bool { return c.mapper.IRQPending() }
func (c *Cartridge) ClearIRQ()        { c.mapper.ClearIRQ() }

func (c *Cartridge) MapperID() uint8  { return c.mapperID }
func (c *Cartridge) HasBattery() bool { return c.hasBattery }
func (c *Cartridge) HasCHRRAM() bool  { return c.hasCHRRAM }

// SaveState writes the mapper's internal state (battery RAM, bank
// registers, shift registers) as part of the save-state boundary.
func (c *Cartridge) SaveState(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, c.mapperID); err != nil {
		return err
	}
	return c.mapper.SaveState(w)
}

// LoadState restores mapper state previously produced by SaveState. A save
// state whose mapper id differs from this Cartridge's is rejected with an
// error before any mapper state is read.
func (c *Cartridge) LoadState(r io.Reader) error {
	var id uint8
	if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
		return err
	}
	if id != c.mapperID {
		return fmt.Errorf("cartridge: save state mapper %d does not match loaded ROM mapper %d", id, c.mapperID)
	}
	return c.mapper.LoadState(r)
}
