package encoding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestByteRange(t *testing.T) {
	t.Run("Len", func(t *testing.T) {
		require.Equal(t, 32, NewByteRange(40, 72).Len())
		require.Equal(t, 0, NewByteRange(5, 5).Len())
	})

	t.Run("InvertedPanics", func(t *testing.T) {
		require.Panics(t, func() { NewByteRange(10, 2) })
	})

	t.Run("Shift", func(t *testing.T) {
		r := NewByteRange(156, 190).Shift(24)
		require.Equal(t, ByteRange{Begin: 180, End: 214}, r)
	})

	t.Run("SliceOutOfRange", func(t *testing.T) {
		_, err := NewByteRange(4, 12).Slice(make([]byte, 8))
		require.ErrorIs(t, err, ErrOutOfRange)
	})
}

func TestBothEndian(t *testing.T) {
	t.Run("Uint32Layout", func(t *testing.T) {
		buf := make([]byte, 8)
		require.NoError(t, WriteBothEndian(buf, NewByteRange(0, 8), uint32(16)))
		require.Equal(t, []byte{16, 0, 0, 0, 0, 0, 0, 16}, buf)
	})

	t.Run("Uint16Layout", func(t *testing.T) {
		buf := make([]byte, 4)
		require.NoError(t, WriteBothEndian(buf, NewByteRange(0, 4), uint16(16)))
		require.Equal(t, []byte{16, 0, 0, 16}, buf)
	})

	t.Run("Uint32Property", func(t *testing.T) {
		values := []uint32{0, 1, 16, 2048, 0x00012345, 0xDEADBEEF, 0xFFFFFFFF}
		for _, v := range values {
			buf := make([]byte, 12)
			r := NewByteRange(2, 10)
			require.NoError(t, WriteBothEndian(buf, r, v))

			little, err := ReadBothEndian[uint32](buf, r)
			require.NoError(t, err)
			big, err := ReadBothEndianBig[uint32](buf, r)
			require.NoError(t, err)
			require.Equal(t, v, little)
			require.Equal(t, v, big)
			require.NoError(t, VerifyBothEndian[uint32](buf, r))

			// bytes outside the field stay untouched
			require.Equal(t, []byte{0, 0}, buf[:2])
			require.Equal(t, []byte{0, 0}, buf[10:])
		}
	})

	t.Run("Uint16Property", func(t *testing.T) {
		for _, v := range []uint16{0, 1, 0x0102, 0x8000, 0xFFFF} {
			buf := make([]byte, 4)
			r := NewByteRange(0, 4)
			require.NoError(t, WriteBothEndian(buf, r, v))

			little, err := ReadBothEndian[uint16](buf, r)
			require.NoError(t, err)
			big, err := ReadBothEndianBig[uint16](buf, r)
			require.NoError(t, err)
			require.Equal(t, v, little)
			require.Equal(t, v, big)
		}
	})

	t.Run("ReadIgnoresBigHalf", func(t *testing.T) {
		buf := []byte{0x22, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF}
		v, err := ReadBothEndian[uint32](buf, NewByteRange(0, 8))
		require.NoError(t, err)
		require.Equal(t, uint32(0x22), v)
	})

	t.Run("Mismatch", func(t *testing.T) {
		buf := []byte{0x01, 0x00, 0x00, 0x02}
		require.ErrorIs(t, VerifyBothEndian[uint16](buf, NewByteRange(0, 4)), ErrByteOrderMismatch)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		buf := make([]byte, 6)
		_, err := ReadBothEndian[uint32](buf, NewByteRange(0, 8))
		require.ErrorIs(t, err, ErrOutOfRange)
		require.ErrorIs(t, WriteBothEndian(buf, NewByteRange(0, 8), uint32(1)), ErrOutOfRange)
	})
}

func TestLittleEndian32(t *testing.T) {
	buf := make([]byte, 8)
	r := NewByteRange(4, 8)
	require.NoError(t, WriteLittleEndian32(buf, r, 0x12))
	require.Equal(t, []byte{0, 0, 0, 0, 0x12, 0, 0, 0}, buf)

	v, err := ReadLittleEndian32(buf, r)
	require.NoError(t, err)
	require.Equal(t, uint32(0x12), v)

	_, err = ReadLittleEndian32(buf, NewByteRange(6, 10))
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestBytes(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	got, err := ReadBytes(buf, NewByteRange(1, 4))
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3, 4}, got)

	// the copy is detached from the source buffer
	got[0] = 9
	require.Equal(t, byte(2), buf[1])

	require.NoError(t, WriteBytes(buf, NewByteRange(3, 5), []byte{7, 8}))
	require.Equal(t, []byte{1, 2, 3, 7, 8}, buf)

	require.ErrorIs(t, WriteBytes(buf, NewByteRange(3, 5), []byte{7, 8, 9}), ErrOutOfRange)
}

func TestString(t *testing.T) {
	t.Run("Read", func(t *testing.T) {
		buf := []byte("xSPYRO     ")
		s, err := ReadString(buf, NewByteRange(1, len(buf)))
		require.NoError(t, err)
		require.Equal(t, "SPYRO", s)
	})

	t.Run("ReadStripsNul", func(t *testing.T) {
		buf := []byte{'S', 'C', 'E', 'A', 0, 0, 0}
		s, err := ReadString(buf, NewByteRange(0, len(buf)))
		require.NoError(t, err)
		require.Equal(t, "SCEA", s)
	})

	t.Run("ReadKeepsInnerSpaces", func(t *testing.T) {
		buf := []byte("SONY COMPUTER   ")
		s, err := ReadString(buf, NewByteRange(0, len(buf)))
		require.NoError(t, err)
		require.Equal(t, "SONY COMPUTER", s)
	})

	t.Run("ReadInvalidUTF8", func(t *testing.T) {
		buf := []byte{'A', 0xFF, 0xFE, ' '}
		_, err := ReadString(buf, NewByteRange(0, len(buf)))
		require.ErrorIs(t, err, ErrInvalidText)
	})

	t.Run("WritePadsUpToLastByte", func(t *testing.T) {
		buf := []byte{0, 0, 0, 0, 0, 0, 0, 0}
		require.NoError(t, WriteString(buf, NewByteRange(0, 8), "ABC"))
		require.Equal(t, []byte{'A', 'B', 'C', ' ', ' ', ' ', ' ', 0}, buf)
	})

	t.Run("WriteTooLong", func(t *testing.T) {
		buf := make([]byte, 4)
		require.ErrorIs(t, WriteString(buf, NewByteRange(0, 4), "ABCDE"), ErrOutOfRange)
	})

	t.Run("WriteFullWidth", func(t *testing.T) {
		r := NewByteRange(40, 72)
		buf := make([]byte, 80)
		id := "ABCDEFGHIJKLMNOPQRSTUVWXYZ012345"
		require.Len(t, id, r.Len())
		require.NoError(t, WriteString(buf, r, id))
		require.Equal(t, id, string(buf[40:72]))

		s, err := ReadString(buf, r)
		require.NoError(t, err)
		require.Equal(t, id, s)
	})

	t.Run("Idempotent", func(t *testing.T) {
		r := NewByteRange(40, 72)
		buf := make([]byte, 80)
		for i := range buf {
			buf[i] = ' '
		}
		copy(buf[40:], "SPYRO")

		s, err := ReadString(buf, r)
		require.NoError(t, err)

		out := make([]byte, len(buf))
		copy(out, buf)
		require.NoError(t, WriteString(out, r, s))
		require.Equal(t, buf, out)
	})
}

func TestRecordingDateTime(t *testing.T) {
	raw := [7]byte{0x62, 0x08, 0x0D, 0x10, 0x38, 0x05, 0x24}

	t.Run("Format", func(t *testing.T) {
		require.Equal(t, "1998-08-13 16:56:05", FormatRecordingDateTime(raw))
	})

	t.Run("Unmarshal", func(t *testing.T) {
		tm := UnmarshalRecordingDateTime(raw)
		require.Equal(t, 1998, tm.Year())
		require.Equal(t, time.August, tm.Month())
		require.Equal(t, 13, tm.Day())
		_, offset := tm.Zone()
		require.Equal(t, 9*3600, offset)
	})

	t.Run("Unspecified", func(t *testing.T) {
		require.True(t, UnmarshalRecordingDateTime([7]byte{}).IsZero())
	})

	t.Run("RoundTrip", func(t *testing.T) {
		b, err := MarshalRecordingDateTime(UnmarshalRecordingDateTime(raw))
		require.NoError(t, err)
		require.Equal(t, raw, b)
	})

	t.Run("YearOutOfRange", func(t *testing.T) {
		_, err := MarshalRecordingDateTime(time.Date(1899, 1, 1, 0, 0, 0, 0, time.UTC))
		require.Error(t, err)
	})
}

func TestLBAToMSF(t *testing.T) {
	tests := []struct {
		lba  uint32
		want [3]byte
	}{
		{0, [3]byte{0x00, 0x02, 0x00}},
		{16, [3]byte{0x00, 0x02, 0x16}},
		{22, [3]byte{0x00, 0x02, 0x22}},
		{75, [3]byte{0x00, 0x03, 0x00}},
		{4350, [3]byte{0x01, 0x00, 0x00}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, LBAToMSF(tt.lba), "lba %d", tt.lba)
	}
}
