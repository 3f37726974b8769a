// Package savestate implements the save-state container format: a magic
// header followed by the serialized state of each core component, in a
// fixed order, each prefixed with its encoded length.
package savestate

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// magic identifies the container format and its version. Bumped whenever
// the component order or a component's own wire format changes in a way
// that would silently corrupt an older save state instead of failing to
// load it.
var magic = [12]byte{'N', 'E', 'S', 'C', 'O', 'R', 'E', 'S', 'T', '0', '1', 0}

// Savable is implemented by every core component that participates in a
// save state: the cartridge/mapper, CPU, PPU, APU, and (as an extension
// beyond the minimum the format requires) the bus's RAM and controller
// state.
type Savable interface {
	SaveState(w io.Writer) error
	LoadState(r io.Reader) error
}

var (
	// ErrIo wraps a failure while writing a save state (disk full, a
	// component failing to serialize, etc.), distinct from a format problem.
	// Load reports read failures, a truncated stream included, as
	// ErrDeserialization.
	ErrIo = fmt.Errorf("savestate: io error")
	// ErrContainsExtraData is returned when trailing bytes follow the last
	// component's blob.
	ErrContainsExtraData = fmt.Errorf("savestate: trailing data after last component")
	// ErrDeserialization covers a malformed stream: bad magic, a length
	// prefix that doesn't fit the remaining data, or a component rejecting
	// its own blob (e.g. a mapper id mismatch).
	ErrDeserialization = fmt.Errorf("savestate: malformed save state")
)

// Save writes the container header followed by each component's state, in
// the order given, each length-prefixed so Load can read one component's
// blob without consuming the next.
func Save(w io.Writer, components ...Savable) error {
	if _, err := w.Write(magic[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrIo, err)
	}

	for _, c := range components {
		var buf bytes.Buffer
		if err := c.SaveState(&buf); err != nil {
			return fmt.Errorf("%w: %v", ErrIo, err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(buf.Len())); err != nil {
			return fmt.Errorf("%w: %v", ErrIo, err)
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("%w: %v", ErrIo, err)
		}
	}
	return nil
}

// Load reads the container header and feeds each component its own blob, in
// the same order Save wrote them. Any bytes left over after the last
// component is consumed are reported as ErrContainsExtraData rather than
// silently ignored.
func Load(r io.Reader, components ...Savable) error {
	var gotMagic [12]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return fmt.Errorf("%w: reading header: %v", ErrDeserialization, err)
	}
	if gotMagic != magic {
		return fmt.Errorf("%w: bad magic header", ErrDeserialization)
	}

	for _, c := range components {
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return fmt.Errorf("%w: reading component length: %v", ErrDeserialization, err)
		}
		blob := make([]byte, length)
		if _, err := io.ReadFull(r, blob); err != nil {
			return fmt.Errorf("%w: reading component data: %v", ErrDeserialization, err)
		}
		if err := c.LoadState(bytes.NewReader(blob)); err != nil {
			return fmt.Errorf("%w: %v", ErrDeserialization, err)
		}
	}

	if n, _ := io.Copy(io.Discard, r); n > 0 {
		return ErrContainsExtraData
	}
	return nil
}
