package wire

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Decoders wrap these with byte-offset context via
// WireError rather than returning bare sentinels, but callers can still
// match with errors.Is against the sentinel.
var (
	// ErrInsufficientData is returned when a decoder runs off the end of
	// its input before it finishes parsing a field.
	ErrInsufficientData = errors.New("wire: insufficient data")

	// ErrInvalidLabelLength is returned when a name label length byte is
	// >=64 with non-pointer top bits.
	ErrInvalidLabelLength = errors.New("wire: invalid label length")

	// ErrCircularCompressionPointer is returned when a compression
	// pointer targets an offset already visited while decoding the same
	// name.
	ErrCircularCompressionPointer = errors.New("wire: circular compression pointer")
)

// WireError carries the operation and byte offset at which a codec
// failure occurred, wrapping one of the sentinel errors above.
type WireError struct {
	Op     string // e.g. "decodeName", "decodeMessage"
	Offset int    // byte offset into the input, -1 if not applicable
	Err    error
}

func (e *WireError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("wire: %s: at offset %d: %v", e.Op, e.Offset, e.Err)
	}
	return fmt.Sprintf("wire: %s: %v", e.Op, e.Err)
}

func (e *WireError) Unwrap() error {
	return e.Err
}

func newWireError(op string, offset int, err error) *WireError {
	return &WireError{Op: op, Offset: offset, Err: err}
}
