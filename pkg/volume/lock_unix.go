//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package volume

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes a non-blocking advisory lock on f: shared for readers, exclusive for writers.
// The returned function releases it.
func lockFile(f *os.File, exclusive bool) (func() error, error) {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	if err := unix.Flock(int(f.Fd()), how|unix.LOCK_NB); err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", f.Name(), err)
	}
	return func() error {
		return unix.Flock(int(f.Fd()), unix.LOCK_UN)
	}, nil
}
