package volume

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/bgrewell/cdxa-kit/internal/testimage"
	"github.com/bgrewell/cdxa-kit/pkg/descriptor"
	"github.com/bgrewell/cdxa-kit/pkg/directory"
	"github.com/bgrewell/cdxa-kit/pkg/logging"
	"github.com/bgrewell/cdxa-kit/pkg/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blockSize = testimage.BlockSize

func fixture(t *testing.T, opts ...option.OpenOption) (*Volume, *testimage.Store, *testimage.Image) {
	t.Helper()
	img, err := testimage.PlayStation()
	require.NoError(t, err)
	store := testimage.NewStore(img.Data)
	return New(store, opts...), store, img
}

func loadRoot(t *testing.T, v *Volume) *directory.Record {
	t.Helper()
	locations, err := v.ScanVolumeDescriptorLocations()
	require.NoError(t, err)
	pvd, err := v.LoadPrimaryDescriptor(locations)
	require.NoError(t, err)
	return pvd.RootDirectoryRecord
}

func TestKnownGoodVolume(t *testing.T) {
	v, _, _ := fixture(t)

	locations, err := v.ScanVolumeDescriptorLocations()
	require.NoError(t, err)
	require.Equal(t, []descriptor.VolumeDescriptorLocation{
		{Offset: 16*2352 + 24, Type: descriptor.TYPE_PRIMARY_DESCRIPTOR},
		{Offset: 17*2352 + 24, Type: descriptor.TYPE_TERMINATOR_DESCRIPTOR},
	}, locations)

	pvd, err := v.LoadPrimaryDescriptor(locations)
	require.NoError(t, err)
	require.Equal(t, "SPYRO", pvd.VolumeIdentifier)
	require.Equal(t, "PLAYSTATION", pvd.SystemIdentifier)
	require.Equal(t, uint16(2048), pvd.LogicalBlockSize)
	require.Equal(t, uint32(testimage.LPathSector), pvd.LocationOfTypeLPathTable)
	require.True(t, pvd.HasXASignature)

	root := pvd.RootDirectoryRecord
	require.Equal(t, uint8(34), root.LengthOfDirectoryRecord)
	require.Equal(t, uint32(22), root.LocationOfExtent)
	require.Equal(t, uint32(2048), root.DataLength)
	require.Equal(t, uint8(1), root.LengthOfFileIdentifier)
	require.True(t, root.IsDirectory())
	require.Equal(t, "1998-08-13 16:56:05", root.RecordingDateAndTimeFormatted())
}

func TestListEntries(t *testing.T) {
	v, _, _ := fixture(t)
	root := loadRoot(t, v)

	entries, err := v.ListEntries(root, blockSize)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Equal(t, []string{
		"", "\x01",
		"PETEXA0.STR", "PETEXA1.STR", "PETEXA2.STR", "PETEXA3.STR", "PETEXA4.STR", "PETEXA5.STR",
		"S0", "SCUS_942.28", "SOURCE", "SYSTEM.CNF", "WAD.WAD",
	}, names)
	require.Equal(t, uint8(1), entries[2].Version())

	var source *directory.Record
	for _, e := range entries {
		if e.Name() == "SOURCE" {
			source = e
		}
	}
	require.NotNil(t, source)
	require.True(t, source.IsDirectory())

	children, err := v.ListEntries(source, blockSize)
	require.NoError(t, err)
	require.Len(t, children, 3)
	require.Equal(t, "SOURCE.TRD", children[2].Name())
	require.False(t, children[2].IsDirectory())
	require.Equal(t, root.LocationOfExtent, children[1].LocationOfExtent)
}

func TestListEntriesAcrossBlocks(t *testing.T) {
	b := testimage.NewBuilder()
	for i := 0; i < 80; i++ {
		b.AddFile(fmt.Sprintf("/BIG/FILE%03d.DAT", i), testimage.Pattern(100+i, byte(i)))
	}
	img, err := b.Build()
	require.NoError(t, err)
	v := New(testimage.NewStore(img.Data))

	dir, err := v.Lookup(loadRoot(t, v), "/BIG", blockSize)
	require.NoError(t, err)
	require.Equal(t, uint32(3*blockSize), dir.DataLength)

	// 48-byte self and parent records, then 60-byte file records: 32 fit the first block and
	// the rest of it is left zero
	lba := img.Entries["/BIG"].LBA
	require.Equal(t, byte(0), img.Data[testimage.SectorOffset(lba)+24+2016])
	require.Equal(t, byte(60), img.Data[testimage.SectorOffset(lba+1)+24])

	entries, err := v.ListEntries(dir, blockSize)
	require.NoError(t, err)
	require.Len(t, entries, 82)
	require.True(t, entries[0].IsSpecial())
	require.True(t, entries[1].IsSpecial())
	for i, e := range entries[2:] {
		require.Equal(t, fmt.Sprintf("FILE%03d.DAT", i), e.Name())
	}

	last := entries[len(entries)-1]
	data, err := v.ReadFileContents(last, blockSize)
	require.NoError(t, err)
	require.Equal(t, testimage.Pattern(179, 79), data)
}

func TestListEntriesErrors(t *testing.T) {
	t.Run("NotDirectory", func(t *testing.T) {
		v, _, _ := fixture(t)
		file, err := v.Lookup(loadRoot(t, v), "SYSTEM.CNF", blockSize)
		require.NoError(t, err)
		_, err = v.ListEntries(file, blockSize)
		require.ErrorIs(t, err, ErrNotDirectory)
		require.ErrorContains(t, err, "SYSTEM.CNF;1 (file, lba=")
	})

	t.Run("RecordCrossesBlock", func(t *testing.T) {
		v, store, img := fixture(t)
		root := loadRoot(t, v)

		// chain oversized copies of the self entry until one straddles the end of the block
		self := make([]byte, 254)
		first := testimage.SectorOffset(img.Entries["/"].LBA) + 24
		copy(self, store.Bytes()[first:first+34])
		self[0] = 254
		payload := store.Bytes()[first : first+blockSize]
		pos := 0
		for ; pos+len(self) <= blockSize; pos += len(self) {
			copy(payload[pos:], self)
		}
		payload[pos] = 254

		_, err := v.ListEntries(root, blockSize)
		require.ErrorIs(t, err, directory.ErrTooFewBytes)
		require.ErrorContains(t, err, "crosses the block boundary")
	})

	t.Run("ShortRecord", func(t *testing.T) {
		v, store, img := fixture(t)
		root := loadRoot(t, v)
		store.Bytes()[testimage.SectorOffset(img.Entries["/"].LBA)+24] = 20

		_, err := v.ListEntries(root, blockSize)
		require.ErrorIs(t, err, directory.ErrTooFewBytes)
	})
}

func TestReadFileContents(t *testing.T) {
	v, _, img := fixture(t)
	root := loadRoot(t, v)

	tests := []struct {
		path    string
		content []byte
	}{
		{"/SYSTEM.CNF", []byte(testimage.SystemCNF)},
		{"/SOURCE/SOURCE.TRD", testimage.Pattern(700, 0x11)},
		{"/PETEXA0.STR", testimage.Pattern(blockSize, 0x20)},
		{"/PETEXA3.STR", testimage.Pattern(blockSize+300, 0x23)},
		{"/S0/LEVEL.WAD", testimage.Pattern(3*blockSize, 0x30)},
		{"/SCUS_942.28", testimage.Pattern(4*blockSize+17, 0x40)},
		{"/WAD.WAD", testimage.Pattern(5000, 0x50)},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec, err := v.Lookup(root, tt.path, blockSize)
			require.NoError(t, err)
			require.Equal(t, img.Entries[tt.path].LBA, rec.LocationOfExtent)

			data, err := v.ReadFileContents(rec, blockSize)
			require.NoError(t, err)
			require.Len(t, data, int(rec.DataLength))
			require.True(t, bytes.Equal(tt.content, data), "content of %s differs", tt.path)
		})
	}

	t.Run("Directory", func(t *testing.T) {
		_, err := v.ReadFileContents(root, blockSize)
		require.ErrorIs(t, err, ErrIsDirectory)
		require.ErrorContains(t, err, "is a directory: . (dir, lba=22")
	})

	t.Run("Truncated", func(t *testing.T) {
		rec, err := v.Lookup(root, "WAD.WAD", blockSize)
		require.NoError(t, err)
		short := *rec
		short.LocationOfExtent = img.Entries["/WAD.WAD"].LBA + 10000

		_, err = v.ReadFileContents(&short, blockSize)
		var offErr *OffsetError
		require.ErrorAs(t, err, &offErr)
		require.Equal(t, "read", offErr.Op)
	})
}

// framing returns the header and trailer of every sector in data.
func framing(data []byte) []byte {
	var out []byte
	for off := 0; off+testimage.SectorSize <= len(data); off += testimage.SectorSize {
		out = append(out, data[off:off+24]...)
		out = append(out, data[off+24+blockSize:off+testimage.SectorSize]...)
	}
	return out
}

func TestReplaceFileContents(t *testing.T) {
	paths := []string{"/WAD.WAD", "/SYSTEM.CNF", "/S0/LEVEL.WAD", "/SCUS_942.28"}
	for i, p := range paths {
		t.Run(p, func(t *testing.T) {
			v, store, _ := fixture(t)
			root := loadRoot(t, v)
			before := framing(append([]byte(nil), store.Bytes()...))

			rec, err := v.Lookup(root, p, blockSize)
			require.NoError(t, err)
			replacement := testimage.Pattern(int(rec.DataLength), byte(0x90+i))

			require.NoError(t, v.ReplaceFileContents(rec, blockSize, replacement))
			require.Equal(t, 1, store.Syncs)

			got, err := v.ReadFileContents(rec, blockSize)
			require.NoError(t, err)
			require.True(t, bytes.Equal(replacement, got), "replaced content of %s differs", p)
			require.Equal(t, before, framing(store.Bytes()), "framing bytes changed")
		})
	}

	t.Run("NeighboursUntouched", func(t *testing.T) {
		v, _, _ := fixture(t)
		root := loadRoot(t, v)
		wad, err := v.Lookup(root, "WAD.WAD", blockSize)
		require.NoError(t, err)
		require.NoError(t, v.ReplaceFileContents(wad, blockSize, make([]byte, wad.DataLength)))

		cnf, err := v.Lookup(root, "SYSTEM.CNF", blockSize)
		require.NoError(t, err)
		got, err := v.ReadFileContents(cnf, blockSize)
		require.NoError(t, err)
		require.Equal(t, testimage.SystemCNF, string(got))
	})

	t.Run("WithoutSync", func(t *testing.T) {
		v, store, _ := fixture(t, option.WithSync(false))
		rec, err := v.Lookup(loadRoot(t, v), "SYSTEM.CNF", blockSize)
		require.NoError(t, err)
		require.NoError(t, v.ReplaceFileContents(rec, blockSize, make([]byte, rec.DataLength)))
		require.Equal(t, 0, store.Syncs)
	})
}

func TestReplaceFileContentsErrors(t *testing.T) {
	t.Run("ContentLength", func(t *testing.T) {
		v, store, _ := fixture(t)
		rec, err := v.Lookup(loadRoot(t, v), "SYSTEM.CNF", blockSize)
		require.NoError(t, err)

		err = v.ReplaceFileContents(rec, blockSize, make([]byte, rec.DataLength+1))
		require.ErrorIs(t, err, ErrContentLength)
		require.Equal(t, 0, store.Writes)
	})

	t.Run("Directory", func(t *testing.T) {
		v, _, _ := fixture(t)
		root := loadRoot(t, v)
		err := v.ReplaceFileContents(root, blockSize, make([]byte, root.DataLength))
		require.ErrorIs(t, err, ErrIsDirectory)
		require.ErrorContains(t, err, ". (dir, lba=22")
	})

	t.Run("ReadOnly", func(t *testing.T) {
		v, store, _ := fixture(t, option.WithReadOnly(true))
		rec, err := v.Lookup(loadRoot(t, v), "SYSTEM.CNF", blockSize)
		require.NoError(t, err)

		require.ErrorIs(t, v.ReplaceFileContents(rec, blockSize, make([]byte, rec.DataLength)), ErrReadOnly)
		require.Equal(t, 0, store.Writes)
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		v, store, _ := fixture(t)
		rec, err := v.Lookup(loadRoot(t, v), "WAD.WAD", blockSize)
		require.NoError(t, err)
		// the second block of the file would start past the end of the image
		moved := *rec
		moved.LocationOfExtent = uint32(len(store.Bytes())/testimage.SectorSize) - 1

		err = v.ReplaceFileContents(&moved, blockSize, make([]byte, moved.DataLength))
		require.ErrorIs(t, err, ErrOutOfBounds)
		require.Equal(t, 0, store.Writes)
	})
}

func TestScanErrors(t *testing.T) {
	t.Run("UnsupportedType", func(t *testing.T) {
		v, store, _ := fixture(t)
		store.Bytes()[testimage.SectorOffset(testimage.TermSector)+24] = 0x02

		_, err := v.ScanVolumeDescriptorLocations()
		require.ErrorIs(t, err, descriptor.ErrUnsupportedType)
	})

	t.Run("MissingTerminator", func(t *testing.T) {
		img, err := testimage.PlayStation()
		require.NoError(t, err)
		v := New(testimage.NewStore(img.Data[:testimage.SectorOffset(testimage.TermSector)+10]))

		_, err = v.ScanVolumeDescriptorLocations()
		var offErr *OffsetError
		require.ErrorAs(t, err, &offErr)
		require.Equal(t, testimage.SectorOffset(testimage.TermSector)+24, offErr.Offset)
		require.True(t, errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF))
	})

	t.Run("NoPrimary", func(t *testing.T) {
		v, _, _ := fixture(t)
		_, err := v.LoadPrimaryDescriptor([]descriptor.VolumeDescriptorLocation{
			{Offset: 17*2352 + 24, Type: descriptor.TYPE_TERMINATOR_DESCRIPTOR},
		})
		require.ErrorIs(t, err, ErrNoPrimaryDescriptor)
	})

	t.Run("BadMagic", func(t *testing.T) {
		v, store, _ := fixture(t)
		copy(store.Bytes()[testimage.SectorOffset(testimage.PVDSector)+25:], "CDROM")

		locations, err := v.ScanVolumeDescriptorLocations()
		require.NoError(t, err)
		_, err = v.LoadPrimaryDescriptor(locations)
		require.ErrorIs(t, err, descriptor.ErrMissingStandardIdentifier)
	})
}

func TestLookup(t *testing.T) {
	v, _, _ := fixture(t)
	root := loadRoot(t, v)

	for _, p := range []string{"", "/", "."} {
		got, err := v.Lookup(root, p, blockSize)
		require.NoError(t, err)
		require.Same(t, root, got)
	}

	rec, err := v.Lookup(root, "SOURCE/SOURCE.TRD", blockSize)
	require.NoError(t, err)
	require.Equal(t, uint32(700), rec.DataLength)

	_, err = v.Lookup(root, "/S0/MISSING.BIN", blockSize)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorContains(t, err, "/S0/MISSING.BIN")

	_, err = v.Lookup(root, "system.cnf", blockSize)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = v.Lookup(root, "SYSTEM.CNF/BOOT", blockSize)
	require.ErrorIs(t, err, ErrNotDirectory)
}

func TestWalk(t *testing.T) {
	v, _, img := fixture(t)
	root := loadRoot(t, v)

	var got []testimage.GroundTruthEntry
	err := v.Walk(root, blockSize, func(p string, rec *directory.Record) error {
		got = append(got, testimage.GroundTruthEntry{
			Path:        p,
			Date:        rec.RecordingDateAndTimeFormatted(),
			Size:        int64(rec.DataLength),
			IsDirectory: rec.IsDirectory(),
		})
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, testimage.Validate(got, img.GroundTruth()))

	t.Run("SkipDir", func(t *testing.T) {
		var paths []string
		err := v.Walk(root, blockSize, func(p string, rec *directory.Record) error {
			paths = append(paths, p)
			if rec.IsDirectory() {
				return fs.SkipDir
			}
			return nil
		})
		require.NoError(t, err)
		assert.Contains(t, paths, "/SOURCE")
		assert.NotContains(t, paths, "/SOURCE/SOURCE.TRD")
	})

	t.Run("StopOnError", func(t *testing.T) {
		stop := errors.New("stop")
		calls := 0
		err := v.Walk(root, blockSize, func(string, *directory.Record) error {
			calls++
			return stop
		})
		require.ErrorIs(t, err, stop)
		require.Equal(t, 1, calls)
	})
}

func TestBlockTraceLogging(t *testing.T) {
	for _, tt := range []struct {
		name  string
		level int
		want  bool
	}{
		{"Debug", logging.LEVEL_DEBUG, false},
		{"Trace", logging.LEVEL_TRACE, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.NewLogger(logging.NewSimpleLogger(buf, tt.level, false))
			v, _, _ := fixture(t, option.WithLogger(logger))
			root := loadRoot(t, v)

			_, err := v.ListEntries(root, blockSize)
			require.NoError(t, err)
			rec, err := v.Lookup(root, "SYSTEM.CNF", blockSize)
			require.NoError(t, err)
			require.NoError(t, v.ReplaceFileContents(rec, blockSize, make([]byte, rec.DataLength)))

			out := buf.String()
			require.Contains(t, out, "[DEBUG] [volume] listed directory")
			assert.Equal(t, tt.want, strings.Contains(out, "[TRACE] [volume] listed directory block"))
			assert.Equal(t, tt.want, strings.Contains(out, "[TRACE] [volume] wrote block"))
		})
	}
}
