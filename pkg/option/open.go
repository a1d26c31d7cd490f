package option

import (
	"github.com/bgrewell/cdxa-kit/pkg/logging"
)

type OpenOptions struct {
	// ReadOnly opens the image without write access; replacing file contents fails.
	ReadOnly bool
	// FileLock takes an advisory lock on the image file for as long as it is open.
	FileLock bool
	// Sync flushes the image to stable storage after every content replacement.
	Sync   bool
	Logger *logging.Logger
}

type OpenOption func(*OpenOptions)

// DefaultOpenOptions returns the options used when none are given: read-write, locked, synced,
// logging discarded.
func DefaultOpenOptions() *OpenOptions {
	return &OpenOptions{
		ReadOnly: false,
		FileLock: true,
		Sync:     true,
		Logger:   logging.DefaultLogger(),
	}
}

// Apply returns DefaultOpenOptions with opts applied in order.
func Apply(opts ...OpenOption) *OpenOptions {
	o := DefaultOpenOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = logging.DefaultLogger()
	}
	return o
}

func WithLogger(logger *logging.Logger) OpenOption {
	return func(o *OpenOptions) {
		o.Logger = logger
	}
}

func WithReadOnly(readOnly bool) OpenOption {
	return func(o *OpenOptions) {
		o.ReadOnly = readOnly
	}
}

func WithFileLock(fileLock bool) OpenOption {
	return func(o *OpenOptions) {
		o.FileLock = fileLock
	}
}

func WithSync(sync bool) OpenOption {
	return func(o *OpenOptions) {
		o.Sync = sync
	}
}
