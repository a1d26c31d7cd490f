package testimage

import (
	"errors"
	"fmt"
	"io"
)

// ErrWriteBeyondEnd is returned when a write would grow the store.
var ErrWriteBeyondEnd = errors.New("write beyond end of image")

// Store is a fixed size in-memory image implementing io.ReadWriteSeeker. Writes never grow it,
// which mirrors patching a disc image in place.
type Store struct {
	data   []byte
	pos    int64
	Syncs  int
	Writes int
}

// NewStore wraps data without copying it.
func NewStore(data []byte) *Store {
	return &Store{data: data}
}

func (s *Store) Bytes() []byte {
	return s.data
}

func (s *Store) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *Store) Write(p []byte) (int, error) {
	s.Writes++
	if s.pos+int64(len(p)) > int64(len(s.data)) {
		return 0, fmt.Errorf("%w: %d bytes at offset %d, image holds %d", ErrWriteBeyondEnd, len(p), s.pos, len(s.data))
	}
	n := copy(s.data[s.pos:], p)
	s.pos += int64(n)
	return n, nil
}

func (s *Store) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = int64(len(s.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative position %d", abs)
	}
	s.pos = abs
	return abs, nil
}

// Sync counts calls so tests can check that replacements are flushed.
func (s *Store) Sync() error {
	s.Syncs++
	return nil
}
