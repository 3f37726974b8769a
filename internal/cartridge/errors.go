package cartridge

import "fmt"

// Sentinel errors for the iNES loading boundary: an invalid header, data
// past the header-described content, and an unsupported mapper. I/O failures
// have no sentinel here; they are returned wrapping the underlying error.
var (
	ErrInvalidHeader    = fmt.Errorf("cartridge: not a valid iNES file")
	ErrExtraFileData    = fmt.Errorf("cartridge: file contains data past the header-described content")
	ErrUnsupportedMapper = fmt.Errorf("cartridge: mapper not implemented")
)

// UnsupportedMapperError names the offending mapper id.
type UnsupportedMapperError struct {
	ID uint8
}

func (e *UnsupportedMapperError) Error() string {
	return fmt.Sprintf("cartridge: mapper %d is not implemented", e.ID)
}

func (e *UnsupportedMapperError) Unwrap() error { return ErrUnsupportedMapper }

// ExtraDataError names how many bytes trailed the expected content.
type ExtraDataError struct {
	Bytes int64
}

func (e *ExtraDataError) Error() string {
	return fmt.Sprintf("cartridge: %d extra bytes found after PRG/CHR data", e.Bytes)
}

func (e *ExtraDataError) Unwrap() error { return ErrExtraFileData }
