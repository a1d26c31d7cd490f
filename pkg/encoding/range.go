package encoding

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when a field does not fit the buffer it is read from or written to.
	ErrOutOfRange = errors.New("byte range out of bounds")
	// ErrInvalidText is returned when a text field does not hold valid UTF-8.
	ErrInvalidText = errors.New("invalid text")
	// ErrByteOrderMismatch is returned when the two halves of a both-byte order field disagree.
	ErrByteOrderMismatch = errors.New("mismatched both-byte orders")
)

// ByteRange names the location of a field inside a buffer as the half-open interval [Begin, End).
type ByteRange struct {
	Begin int
	End   int
}

// NewByteRange declares a field location. Ranges are declared as package level values, so an
// inverted range is a programming error and panics.
func NewByteRange(begin, end int) ByteRange {
	if begin < 0 || begin > end {
		panic(fmt.Sprintf("invalid byte range [%d, %d)", begin, end))
	}
	return ByteRange{Begin: begin, End: end}
}

// Len returns the number of bytes covered by the range.
func (r ByteRange) Len() int {
	return r.End - r.Begin
}

// Shift returns the same range moved by n bytes, e.g. from payload to physical sector offsets.
func (r ByteRange) Shift(n int) ByteRange {
	return NewByteRange(r.Begin+n, r.End+n)
}

func (r ByteRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Begin, r.End)
}

// Slice returns the part of buf covered by the range without copying.
func (r ByteRange) Slice(buf []byte) ([]byte, error) {
	if err := r.check(buf); err != nil {
		return nil, err
	}
	return buf[r.Begin:r.End], nil
}

func (r ByteRange) check(buf []byte) error {
	return checkSpan(buf, r.Begin, r.Len())
}

func checkSpan(buf []byte, begin, n int) error {
	if begin < 0 || n < 0 || begin+n > len(buf) {
		return fmt.Errorf("%w: [%d, %d) in buffer of %d bytes", ErrOutOfRange, begin, begin+n, len(buf))
	}
	return nil
}
