package volume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bgrewell/cdxa-kit/internal/testimage"
	"github.com/bgrewell/cdxa-kit/pkg/option"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T) string {
	t.Helper()
	img, err := testimage.PlayStation()
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "game.bin")
	require.NoError(t, os.WriteFile(p, img.Data, 0o644))
	return p
}

func TestOpenReplacePersists(t *testing.T) {
	p := writeImage(t)

	v, err := Open(p)
	require.NoError(t, err)
	rec, err := v.Lookup(loadRoot(t, v), "WAD.WAD", blockSize)
	require.NoError(t, err)
	replacement := testimage.Pattern(int(rec.DataLength), 0x77)
	require.NoError(t, v.ReplaceFileContents(rec, blockSize, replacement))
	require.NoError(t, v.Close())

	v, err = Open(p, option.WithReadOnly(true))
	require.NoError(t, err)
	defer v.Close()
	rec, err = v.Lookup(loadRoot(t, v), "WAD.WAD", blockSize)
	require.NoError(t, err)
	got, err := v.ReadFileContents(rec, blockSize)
	require.NoError(t, err)
	require.Equal(t, replacement, got)
	require.ErrorIs(t, v.ReplaceFileContents(rec, blockSize, got), ErrReadOnly)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.bin"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCloseIsIdempotent(t *testing.T) {
	v, err := Open(writeImage(t))
	require.NoError(t, err)
	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
}
