//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package volume

import (
	"testing"

	"github.com/bgrewell/cdxa-kit/pkg/option"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestOpenLocksImage(t *testing.T) {
	p := writeImage(t)

	writer, err := Open(p)
	require.NoError(t, err)

	_, err = Open(p, option.WithReadOnly(true))
	require.ErrorIs(t, err, unix.EWOULDBLOCK)

	unlocked, err := Open(p, option.WithReadOnly(true), option.WithFileLock(false))
	require.NoError(t, err)
	require.NoError(t, unlocked.Close())

	require.NoError(t, writer.Close())

	// readers share the lock
	r1, err := Open(p, option.WithReadOnly(true))
	require.NoError(t, err)
	defer r1.Close()
	r2, err := Open(p, option.WithReadOnly(true))
	require.NoError(t, err)
	defer r2.Close()

	_, err = Open(p)
	require.ErrorIs(t, err, unix.EWOULDBLOCK)
}
