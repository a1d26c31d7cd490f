package encoding

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bgrewell/cdxa-kit/pkg/consts"
)

// Unsigned is the closed set of integer widths stored in both byte orders.
type Unsigned interface {
	~uint16 | ~uint32
}

func width[T Unsigned]() int {
	var v T
	return binary.Size(v)
}

func getUint[T Unsigned](order binary.ByteOrder, b []byte) T {
	if len(b) == 2 {
		return T(order.Uint16(b))
	}
	return T(order.Uint32(b))
}

func putUint[T Unsigned](order binary.ByteOrder, b []byte, v T) {
	if len(b) == 2 {
		order.PutUint16(b, uint16(v))
		return
	}
	order.PutUint32(b, uint32(v))
}

// ReadBothEndian reads a field recorded in both byte orders (ECMA-119 7.2.3 / 7.3.3). The field
// starts at r.Begin and spans twice the width of T; only the little-endian half is read.
func ReadBothEndian[T Unsigned](buf []byte, r ByteRange) (T, error) {
	w := width[T]()
	if err := checkSpan(buf, r.Begin, 2*w); err != nil {
		return 0, err
	}
	return getUint[T](binary.LittleEndian, buf[r.Begin:r.Begin+w]), nil
}

// ReadBothEndianBig reads the big-endian half of a both-byte order field.
func ReadBothEndianBig[T Unsigned](buf []byte, r ByteRange) (T, error) {
	w := width[T]()
	if err := checkSpan(buf, r.Begin, 2*w); err != nil {
		return 0, err
	}
	return getUint[T](binary.BigEndian, buf[r.Begin+w:r.Begin+2*w]), nil
}

// WriteBothEndian writes v little-endian followed by big-endian, so readers using either
// convention agree.
func WriteBothEndian[T Unsigned](buf []byte, r ByteRange, v T) error {
	w := width[T]()
	if err := checkSpan(buf, r.Begin, 2*w); err != nil {
		return err
	}
	putUint(binary.LittleEndian, buf[r.Begin:r.Begin+w], v)
	putUint(binary.BigEndian, buf[r.Begin+w:r.Begin+2*w], v)
	return nil
}

// VerifyBothEndian checks that both halves of a both-byte order field hold the same value.
func VerifyBothEndian[T Unsigned](buf []byte, r ByteRange) error {
	little, err := ReadBothEndian[T](buf, r)
	if err != nil {
		return err
	}
	big, err := ReadBothEndianBig[T](buf, r)
	if err != nil {
		return err
	}
	if little != big {
		return fmt.Errorf("%w at %s: little-endian value %d != big-endian value %d", ErrByteOrderMismatch, r, little, big)
	}
	return nil
}

// ReadLittleEndian32 reads a 32-bit field recorded in little-endian order only.
func ReadLittleEndian32(buf []byte, r ByteRange) (uint32, error) {
	if err := checkSpan(buf, r.Begin, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[r.Begin : r.Begin+4]), nil
}

// WriteLittleEndian32 writes a 32-bit field in little-endian order only.
func WriteLittleEndian32(buf []byte, r ByteRange, v uint32) error {
	if err := checkSpan(buf, r.Begin, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[r.Begin:r.Begin+4], v)
	return nil
}

// ReadBytes returns a copy of the bytes covered by r.
func ReadBytes(buf []byte, r ByteRange) ([]byte, error) {
	b, err := r.Slice(buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// WriteBytes copies v verbatim to the start of r.
func WriteBytes(buf []byte, r ByteRange, v []byte) error {
	if len(v) > r.Len() {
		return fmt.Errorf("%w: %d bytes do not fit %s", ErrOutOfRange, len(v), r)
	}
	if err := checkSpan(buf, r.Begin, len(v)); err != nil {
		return err
	}
	copy(buf[r.Begin:], v)
	return nil
}

// ReadString decodes a fixed width text field. Trailing filler and NUL bytes are stripped.
func ReadString(buf []byte, r ByteRange) (string, error) {
	b, err := r.Slice(buf)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: field %s is not valid UTF-8", ErrInvalidText, r)
	}
	return strings.TrimRight(string(b), string([]byte{consts.CDXA_FILLER, 0x00})), nil
}

// WriteString copies s to the start of r and pads the rest of the range, up to but not including
// its final byte, with the filler character. A value may fill the whole range.
func WriteString(buf []byte, r ByteRange, s string) error {
	if len(s) > r.Len() {
		return fmt.Errorf("%w: %q does not fit %s", ErrOutOfRange, s, r)
	}
	if err := r.check(buf); err != nil {
		return err
	}
	copy(buf[r.Begin:], s)
	for i := r.Begin + len(s); i < r.End-1; i++ {
		buf[i] = consts.CDXA_FILLER
	}
	return nil
}

// FormatRecordingDateTime renders a 7-byte Recording Date and Time field (ECMA-119 9.1.5) as
// "YYYY-MM-DD HH:MM:SS". The GMT offset byte is ignored.
func FormatRecordingDateTime(b [7]byte) string {
	return fmt.Sprintf("%d-%02d-%02d %02d:%02d:%02d",
		1900+int(b[0]), b[1], b[2], b[3], b[4], b[5])
}

// MarshalRecordingDateTime converts a time.Time into a 7-byte Recording Date and Time field.
// It returns an error if the year or the zone offset cannot be represented.
func MarshalRecordingDateTime(t time.Time) ([7]byte, error) {
	var b [7]byte

	year, month, day := t.Date()
	hour, minute, second := t.Clock()

	// The field stores the number of years since 1900, so valid years are 1900–2155.
	if year < 1900 || year > 2155 {
		return b, fmt.Errorf("year %d out of range for Recording Date and Time (must be between 1900 and 2155)", year)
	}
	b[0] = byte(year - 1900)
	b[1] = byte(month)
	b[2] = byte(day)
	b[3] = byte(hour)
	b[4] = byte(minute)
	b[5] = byte(second)

	_, offsetSec := t.Zone()
	offset15 := offsetSec / (15 * 60)
	if offset15 < -48 || offset15 > 52 {
		return b, fmt.Errorf("time zone offset %d (in 15-minute intervals: %d) is out of allowed range", offsetSec, offset15)
	}
	b[6] = byte(int8(offset15))
	return b, nil
}

// UnmarshalRecordingDateTime converts a 7-byte Recording Date and Time field into a time.Time.
// All zero bytes mean the date is not specified and yield the zero time.
func UnmarshalRecordingDateTime(b [7]byte) time.Time {
	if b == [7]byte{} {
		return time.Time{}
	}
	offsetSec := int(int8(b[6])) * 15 * 60
	loc := time.FixedZone("CDXA", offsetSec)
	return time.Date(1900+int(b[0]), time.Month(b[1]), int(b[2]), int(b[3]), int(b[4]), int(b[5]), 0, loc)
}

// LBAToMSF converts a logical block address to the BCD minute/second/frame address recorded in
// a raw sector header, including the two second pregap.
func LBAToMSF(lba uint32) [3]byte {
	frames := lba + consts.CDXA_PREGAP_FRAMES
	minutes := frames / (60 * consts.CDXA_FRAMES_PER_SECOND)
	seconds := (frames / consts.CDXA_FRAMES_PER_SECOND) % 60
	frame := frames % consts.CDXA_FRAMES_PER_SECOND
	return [3]byte{toBCD(minutes), toBCD(seconds), toBCD(frame)}
}

func toBCD(v uint32) byte {
	return byte((v/10%10)<<4 | v%10)
}
