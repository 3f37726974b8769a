package cartridge

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildINES assembles a minimal iNES v1 image in memory: header, optional
// trainer, PRG-ROM filled with a recognizable pattern, and CHR-ROM (omitted
// entirely when chrBanks is 0, signaling CHR-RAM to the loader).
func buildINES(mapperID uint8, prgBanks, chrBanks uint8, flags6Extra uint8) []byte {
	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(prgBanks)
	buf.WriteByte(chrBanks)
	buf.WriteByte((mapperID << 4) | flags6Extra)
	buf.WriteByte(mapperID & 0xF0)
	buf.Write(make([]byte, 8)) // PRGRAMSize, TVSystem1/2, padding[5]

	prg := make([]byte, int(prgBanks)*prgBankSize)
	for i := range prg {
		prg[i] = uint8(i)
	}
	buf.Write(prg)

	if chrBanks > 0 {
		chr := make([]byte, int(chrBanks)*chrBankSize)
		for i := range chr {
			chr[i] = uint8(i + 1)
		}
		buf.Write(chr)
	}

	return buf.Bytes()
}

func TestLoadNROM(t *testing.T) {
	data := buildINES(0, 2, 1, 0x01) // vertical mirroring
	c, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), c.MapperID())
	assert.Equal(t, MirrorVertical, c.MirrorMode())
	assert.Equal(t, uint8(0), c.ReadPRG(0x8000))
	assert.Equal(t, uint8(1), c.ReadCHR(0x0000))
}

func TestLoadRejectsBadMagic(t *testing.T) {
	data := buildINES(0, 1, 1, 0)
	data[0] = 'X'
	_, err := Load(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestLoadRejectsUnsupportedMapper(t *testing.T) {
	data := buildINES(200, 1, 1, 0)
	_, err := Load(bytes.NewReader(data))
	require.Error(t, err)
	var target *UnsupportedMapperError
	assert.ErrorAs(t, err, &target)
	assert.Equal(t, uint8(200), target.ID)
}

func TestLoadDetectsExtraData(t *testing.T) {
	data := append(buildINES(0, 1, 1, 0), 0xDE, 0xAD)
	_, err := Load(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrExtraFileData)
}

func TestLoadCHRRAMWhenNoCHRBanks(t *testing.T) {
	data := buildINES(0, 1, 0, 0)
	c, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, c.HasCHRRAM())
	c.WriteCHR(0x10, 0x42)
	assert.Equal(t, uint8(0x42), c.ReadCHR(0x10))
}

func TestCartridgeSaveLoadStateRoundtrip(t *testing.T) {
	data := buildINES(2, 4, 0, 0) // UxROM, 4 banks, CHR-RAM
	c, err := Load(bytes.NewReader(data))
	require.NoError(t, err)

	c.WritePRG(0x8000, 3) // select bank 3
	c.WriteCHR(0x100, 0x77)

	var buf bytes.Buffer
	require.NoError(t, c.SaveState(&buf))

	c2, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, c2.LoadState(&buf))

	assert.Equal(t, c.ReadPRG(0x8000), c2.ReadPRG(0x8000))
	assert.Equal(t, uint8(0x77), c2.ReadCHR(0x100))
}

func TestCartridgeLoadStateRejectsMapperMismatch(t *testing.T) {
	nrom := buildINES(0, 1, 1, 0)
	uxrom := buildINES(2, 2, 0, 0)

	c1, err := Load(bytes.NewReader(nrom))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, c1.SaveState(&buf))

	c2, err := Load(bytes.NewReader(uxrom))
	require.NoError(t, err)
	assert.Error(t, c2.LoadState(&buf))
}
