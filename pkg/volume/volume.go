package volume

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bgrewell/cdxa-kit/pkg/consts"
	"github.com/bgrewell/cdxa-kit/pkg/descriptor"
	"github.com/bgrewell/cdxa-kit/pkg/directory"
	"github.com/bgrewell/cdxa-kit/pkg/logging"
	"github.com/bgrewell/cdxa-kit/pkg/option"
	"github.com/bgrewell/cdxa-kit/pkg/sector"
)

// syncer is implemented by stores that can flush to stable storage, such as *os.File.
type syncer interface {
	Sync() error
}

// Volume reads and patches a CD-ROM/XA image held in a seekable store. A Volume is not safe for
// concurrent use; every operation moves the store's position.
type Volume struct {
	store   io.ReadWriteSeeker
	closer  io.Closer
	unlock  func() error
	options *option.OpenOptions
	logger  *logging.Logger
}

// New wraps an already opened store. The caller keeps ownership of the store.
func New(store io.ReadWriteSeeker, opts ...option.OpenOption) *Volume {
	o := option.Apply(opts...)
	return &Volume{
		store:   store,
		options: o,
		logger:  o.Logger.WithName("volume"),
	}
}

// Open opens the image file at path. The file is opened read-write unless option.WithReadOnly is
// given, and advisory locked unless option.WithFileLock(false) is given.
func Open(path string, opts ...option.OpenOption) (*Volume, error) {
	o := option.Apply(opts...)

	flag := os.O_RDWR
	if o.ReadOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	v := &Volume{
		store:   f,
		closer:  f,
		options: o,
		logger:  o.Logger.WithName("volume").WithValues("image", path),
	}
	if o.FileLock {
		unlock, err := lockFile(f, !o.ReadOnly)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		v.unlock = unlock
	}
	v.logger.Debug("opened image", "readOnly", o.ReadOnly, "locked", o.FileLock)
	return v, nil
}

// ReadOnly reports whether content replacement is refused.
func (v *Volume) ReadOnly() bool {
	return v.options.ReadOnly
}

// Close releases the file lock and closes the image if the Volume opened it.
func (v *Volume) Close() error {
	var errs []error
	if v.unlock != nil {
		errs = append(errs, v.unlock())
		v.unlock = nil
	}
	if v.closer != nil {
		errs = append(errs, v.closer.Close())
		v.closer = nil
	}
	return errors.Join(errs...)
}

func (v *Volume) seek(offset int64) error {
	if _, err := v.store.Seek(offset, io.SeekStart); err != nil {
		return &OffsetError{Op: "seek", Offset: offset, Err: err}
	}
	return nil
}

// readAt fills buf from offset, treating a short read as a failure.
func (v *Volume) readAt(buf []byte, offset int64) error {
	if err := v.seek(offset); err != nil {
		return err
	}
	if _, err := io.ReadFull(v.store, buf); err != nil {
		return &OffsetError{Op: "read", Offset: offset, Err: err}
	}
	return nil
}

func (v *Volume) size() (int64, error) {
	end, err := v.store.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, &OffsetError{Op: "seek", Offset: 0, Err: err}
	}
	return end, nil
}

// ScanVolumeDescriptorLocations reads the type tag of each descriptor following the system area
// and stops after the set terminator. Any tag other than Primary or SetTerminator is an error.
func (v *Volume) ScanVolumeDescriptorLocations() ([]descriptor.VolumeDescriptorLocation, error) {
	var locations []descriptor.VolumeDescriptorLocation
	tag := make([]byte, 1)

	for i := int64(consts.CDXA_SYSTEM_AREA_SECTORS); ; i++ {
		offset := i*consts.CDXA_SECTOR_SIZE + consts.CDXA_HEADER_SIZE
		if err := v.readAt(tag, offset); err != nil {
			return nil, fmt.Errorf("failed to read volume descriptor tag: %w", err)
		}
		t, err := descriptor.ParseVolumeDescriptorType(tag[0])
		if err != nil {
			return nil, fmt.Errorf("volume descriptor at offset %d: %w", offset, err)
		}
		locations = append(locations, descriptor.VolumeDescriptorLocation{Offset: offset, Type: t})
		v.logger.Trace("found volume descriptor", "type", t, "offset", offset)
		if t == descriptor.TYPE_TERMINATOR_DESCRIPTOR {
			break
		}
	}

	v.logger.Debug("scanned volume descriptors", "count", len(locations))
	return locations, nil
}

func primaryLocation(locations []descriptor.VolumeDescriptorLocation) (descriptor.VolumeDescriptorLocation, error) {
	for _, l := range locations {
		if l.Type == descriptor.TYPE_PRIMARY_DESCRIPTOR {
			return l, nil
		}
	}
	return descriptor.VolumeDescriptorLocation{}, ErrNoPrimaryDescriptor
}

// ReadPrimarySector returns the raw physical sector holding the first Primary descriptor.
func (v *Volume) ReadPrimarySector(locations []descriptor.VolumeDescriptorLocation) ([consts.CDXA_SECTOR_SIZE]byte, error) {
	var raw [consts.CDXA_SECTOR_SIZE]byte
	loc, err := primaryLocation(locations)
	if err != nil {
		return raw, err
	}
	if err := v.readAt(raw[:], loc.SectorOffset()); err != nil {
		return raw, fmt.Errorf("failed to read primary volume descriptor sector: %w", err)
	}
	return raw, nil
}

// LoadPrimaryDescriptor decodes the first Primary descriptor among locations.
func (v *Volume) LoadPrimaryDescriptor(locations []descriptor.VolumeDescriptorLocation) (*descriptor.PrimaryVolumeDescriptor, error) {
	raw, err := v.ReadPrimarySector(locations)
	if err != nil {
		return nil, err
	}
	loc, _ := primaryLocation(locations)
	pvd, err := descriptor.Unmarshal(raw[consts.CDXA_HEADER_SIZE:], loc.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to decode primary volume descriptor: %w", err)
	}
	v.logger.Debug("loaded primary volume descriptor",
		"volume", pvd.VolumeIdentifier, "blockSize", pvd.LogicalBlockSize, "root", pvd.RootDirectoryRecord.LocationOfExtent)
	return pvd, nil
}

func blockCount(dataLength uint32, blockSize uint16) int64 {
	return (int64(dataLength) + int64(blockSize) - 1) / int64(blockSize)
}

func extentOffset(lba uint32, blockSize uint16) int64 {
	return int64(lba) * int64(sector.SizeForLogicalBlock(blockSize))
}

func checkBlockSize(blockSize uint16) error {
	if blockSize == 0 || int(blockSize)+consts.CDXA_FRAMING_SIZE > consts.CDXA_SECTOR_SIZE {
		return fmt.Errorf("unsupported logical block size %d", blockSize)
	}
	return nil
}

// ListEntries returns the records stored in directory dir, in on-disc order, including the self
// and parent entries.
func (v *Volume) ListEntries(dir *directory.Record, blockSize uint16) ([]*directory.Record, error) {
	if !dir.IsDirectory() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	if err := checkBlockSize(blockSize); err != nil {
		return nil, err
	}

	sectorSize := sector.SizeForLogicalBlock(blockSize)
	buf := make([]byte, sectorSize)
	var entries []*directory.Record

	blocks := blockCount(dir.DataLength, blockSize)
	for b := int64(0); b < blocks; b++ {
		offset := extentOffset(dir.LocationOfExtent, blockSize) + b*int64(sectorSize)
		if err := v.readAt(buf, offset); err != nil {
			return nil, fmt.Errorf("failed to read directory block: %w", err)
		}
		payload := buf[consts.CDXA_HEADER_SIZE : consts.CDXA_HEADER_SIZE+int(blockSize)]

		for pos := 0; pos < len(payload); {
			length := int(payload[pos])
			if length == 0 {
				break
			}
			recordOffset := offset + consts.CDXA_HEADER_SIZE + int64(pos)
			if pos+length > len(payload) {
				return nil, fmt.Errorf("failed to decode directory record at offset %d: %w: record of %d bytes crosses the block boundary",
					recordOffset, directory.ErrTooFewBytes, length)
			}
			rec, err := directory.Unmarshal(payload[pos : pos+length])
			if err != nil {
				return nil, fmt.Errorf("failed to decode directory record at offset %d: %w", recordOffset, err)
			}
			entries = append(entries, rec)
			pos += length
		}
		if v.logger.TraceEnabled() {
			v.logger.Trace("listed directory block", "offset", offset, "entries", len(entries))
		}
	}

	v.logger.Debug("listed directory", "lba", dir.LocationOfExtent, "entries", len(entries))
	return entries, nil
}

// ReadFileContents returns exactly rec.DataLength bytes of file data, stripping the framing
// around every logical block.
func (v *Volume) ReadFileContents(rec *directory.Record, blockSize uint16) ([]byte, error) {
	if rec.IsDirectory() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, rec)
	}
	if err := checkBlockSize(blockSize); err != nil {
		return nil, err
	}

	out := make([]byte, rec.DataLength)
	if rec.DataLength == 0 {
		return out, nil
	}

	start := extentOffset(rec.LocationOfExtent, blockSize)
	if err := v.seek(start); err != nil {
		return nil, err
	}
	sectorSize := sector.SizeForLogicalBlock(blockSize)
	r := bufio.NewReaderSize(v.store, sectorSize)
	trailer := sectorSize - consts.CDXA_HEADER_SIZE - int(blockSize)

	blocks := blockCount(rec.DataLength, blockSize)
	for b := int64(0); b < blocks; b++ {
		offset := start + b*int64(sectorSize)
		lo := b * int64(blockSize)
		hi := min(lo+int64(blockSize), int64(rec.DataLength))

		if _, err := r.Discard(consts.CDXA_HEADER_SIZE); err != nil {
			return nil, &OffsetError{Op: "read", Offset: offset, Err: err}
		}
		if _, err := io.ReadFull(r, out[lo:hi]); err != nil {
			return nil, &OffsetError{Op: "read", Offset: offset + consts.CDXA_HEADER_SIZE, Err: err}
		}
		if b < blocks-1 {
			if _, err := r.Discard(trailer); err != nil {
				return nil, &OffsetError{Op: "read", Offset: offset + consts.CDXA_HEADER_SIZE + int64(blockSize), Err: err}
			}
		}
	}

	v.logger.Debug("read file", "name", rec.Name(), "lba", rec.LocationOfExtent, "size", rec.DataLength, "blocks", blocks)
	return out, nil
}

// ReplaceFileContents overwrites the data of rec in place. content must be exactly rec.DataLength
// bytes; sector headers and trailers are left as they are.
func (v *Volume) ReplaceFileContents(rec *directory.Record, blockSize uint16, content []byte) error {
	if v.options.ReadOnly {
		return ErrReadOnly
	}
	if rec.IsDirectory() {
		return fmt.Errorf("%w: %s", ErrIsDirectory, rec)
	}
	if uint64(len(content)) != uint64(rec.DataLength) {
		return fmt.Errorf("%w: %s holds %d bytes, got %d", ErrContentLength, rec.Name(), rec.DataLength, len(content))
	}
	if err := checkBlockSize(blockSize); err != nil {
		return err
	}
	if len(content) == 0 {
		return nil
	}

	sectorSize := int64(sector.SizeForLogicalBlock(blockSize))
	start := extentOffset(rec.LocationOfExtent, blockSize)
	blocks := blockCount(rec.DataLength, blockSize)

	size, err := v.size()
	if err != nil {
		return err
	}
	lastLen := int64(len(content)) - (blocks-1)*int64(blockSize)
	if end := start + (blocks-1)*sectorSize + consts.CDXA_HEADER_SIZE + lastLen; end > size {
		return fmt.Errorf("%w: %s needs bytes up to offset %d, image holds %d", ErrOutOfBounds, rec.Name(), end, size)
	}

	w := bufio.NewWriterSize(v.store, int(blockSize))
	for b := int64(0); b < blocks; b++ {
		offset := start + b*sectorSize + consts.CDXA_HEADER_SIZE
		lo := b * int64(blockSize)
		hi := min(lo+int64(blockSize), int64(len(content)))

		if err := v.seek(offset); err != nil {
			return err
		}
		if _, err := w.Write(content[lo:hi]); err != nil {
			return &OffsetError{Op: "write", Offset: offset, Err: err}
		}
		// the buffered bytes must reach the store before the next seek
		if err := w.Flush(); err != nil {
			return &OffsetError{Op: "write", Offset: offset, Err: err}
		}
		if v.logger.TraceEnabled() {
			v.logger.Trace("wrote block", "offset", offset, "bytes", hi-lo)
		}
	}

	if s, ok := v.store.(syncer); ok && v.options.Sync {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("failed to sync image: %w", err)
		}
	}

	v.logger.Debug("replaced file", "name", rec.Name(), "lba", rec.LocationOfExtent, "size", rec.DataLength, "blocks", blocks)
	return nil
}
