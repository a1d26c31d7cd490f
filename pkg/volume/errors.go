package volume

import (
	"errors"
	"fmt"
)

var (
	ErrNoPrimaryDescriptor = errors.New("no primary volume descriptor")
	ErrNotFound            = errors.New("entry not found")
	ErrNotDirectory        = errors.New("not a directory")
	ErrIsDirectory         = errors.New("is a directory")
	ErrContentLength       = errors.New("content length does not match file size")
	ErrReadOnly            = errors.New("volume is read-only")
	ErrOutOfBounds         = errors.New("extent lies outside the image")
)

// OffsetError records an I/O failure and the image offset it happened at.
type OffsetError struct {
	Op     string
	Offset int64
	Err    error
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *OffsetError) Unwrap() error {
	return e.Err
}
