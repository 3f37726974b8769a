package savestate

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter is a minimal Savable used to exercise the container format
// without pulling in a real core component.
type counter struct {
	value uint32
}

func (c *counter) SaveState(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, c.value)
}

func (c *counter) LoadState(r io.Reader) error {
	return binary.Read(r, binary.LittleEndian, &c.value)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	a, b := &counter{value: 1}, &counter{value: 2}
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, a, b))

	a2, b2 := &counter{}, &counter{}
	require.NoError(t, Load(&buf, a2, b2))
	assert.Equal(t, a.value, a2.value)
	assert.Equal(t, b.value, b2.value)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, &counter{value: 1}))
	data := buf.Bytes()
	data[0] = 'X'
	err := Load(bytes.NewReader(data), &counter{})
	assert.ErrorIs(t, err, ErrDeserialization)
}

func TestLoadRejectsExtraData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, &counter{value: 1}, &counter{value: 2}))
	data := buf.Bytes()

	err := Load(bytes.NewReader(data), &counter{}) // only consume the first component
	assert.ErrorIs(t, err, ErrContainsExtraData)
}

func TestLoadRejectsTruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, &counter{value: 1}))
	truncated := buf.Bytes()[:len(buf.Bytes())-2]
	err := Load(bytes.NewReader(truncated), &counter{})
	assert.ErrorIs(t, err, ErrDeserialization)
}
