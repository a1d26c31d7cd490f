// Package cdxa opens CD-ROM/XA (PlayStation) disc images and reads, extracts and patches the files
// stored in them in place.
package cdxa

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/bgrewell/cdxa-kit/pkg/consts"
	"github.com/bgrewell/cdxa-kit/pkg/descriptor"
	"github.com/bgrewell/cdxa-kit/pkg/directory"
	"github.com/bgrewell/cdxa-kit/pkg/encoding"
	"github.com/bgrewell/cdxa-kit/pkg/logging"
	"github.com/bgrewell/cdxa-kit/pkg/option"
	"github.com/bgrewell/cdxa-kit/pkg/sector"
	"github.com/bgrewell/cdxa-kit/pkg/volume"
)

// Image is an opened CD-ROM/XA volume with its Primary Volume Descriptor loaded.
type Image struct {
	vol       *volume.Volume
	locations []descriptor.VolumeDescriptorLocation
	pvd       *descriptor.PrimaryVolumeDescriptor
	logger    *logging.Logger
}

// Open opens the image file at location and loads its Primary Volume Descriptor.
func Open(location string, opts ...option.OpenOption) (*Image, error) {
	vol, err := volume.Open(location, opts...)
	if err != nil {
		return nil, err
	}
	img, err := load(vol, opts...)
	if err != nil {
		_ = vol.Close()
		return nil, err
	}
	return img, nil
}

// OpenStore loads an image from an already opened store. Closing the Image does not close store.
func OpenStore(store io.ReadWriteSeeker, opts ...option.OpenOption) (*Image, error) {
	return load(volume.New(store, opts...), opts...)
}

func load(vol *volume.Volume, opts ...option.OpenOption) (*Image, error) {
	o := option.Apply(opts...)
	img := &Image{vol: vol, logger: o.Logger.WithName("cdxa")}

	locations, err := vol.ScanVolumeDescriptorLocations()
	if err != nil {
		return nil, fmt.Errorf("failed to scan volume descriptors: %w", err)
	}
	pvd, err := vol.LoadPrimaryDescriptor(locations)
	if err != nil {
		return nil, fmt.Errorf("failed to load primary volume descriptor: %w", err)
	}
	img.locations = locations
	img.pvd = pvd

	img.logger.Info("opened volume", "volume", pvd.VolumeIdentifier, "blocks", pvd.VolumeSpaceSize, "xa", pvd.HasXASignature)
	return img, nil
}

// Close releases the underlying volume.
func (i *Image) Close() error {
	return i.vol.Close()
}

// String summarizes the volume identifier, its size and the root extent.
func (i *Image) String() string {
	return fmt.Sprintf("%s (%d blocks of %d bytes, root at %d)",
		i.pvd.VolumeIdentifier, i.pvd.VolumeSpaceSize, i.pvd.LogicalBlockSize, i.pvd.RootDirectoryRecord.LocationOfExtent)
}

// PrimaryVolumeDescriptor returns the descriptor loaded when the image was opened.
func (i *Image) PrimaryVolumeDescriptor() *descriptor.PrimaryVolumeDescriptor {
	return i.pvd
}

// DescriptorLocations returns a copy of the volume descriptor locations found by the scan.
func (i *Image) DescriptorLocations() []descriptor.VolumeDescriptorLocation {
	return append([]descriptor.VolumeDescriptorLocation(nil), i.locations...)
}

// LogicalBlockSize returns the payload size of one sector, as recorded in the descriptor.
func (i *Image) LogicalBlockSize() uint16 {
	return i.pvd.LogicalBlockSize
}

// RootDirectory returns the root directory record embedded in the descriptor.
func (i *Image) RootDirectory() *directory.Record {
	return i.pvd.RootDirectoryRecord
}

func (i *Image) lookup(p string) (*directory.Record, error) {
	return i.vol.Lookup(i.pvd.RootDirectoryRecord, p, i.pvd.LogicalBlockSize)
}

// Stat describes the entry at p.
func (i *Image) Stat(p string) (fs.FileInfo, error) {
	rec, err := i.lookup(p)
	if err != nil {
		return nil, err
	}
	clean := path.Clean("/" + p)
	if clean == "/" {
		return directory.NewEntry(rec, ""), nil
	}
	return directory.NewEntry(rec, path.Dir(clean)), nil
}

// ReadDir lists the directory at p without its self and parent entries, in on-disc order.
func (i *Image) ReadDir(p string) ([]fs.DirEntry, error) {
	dir, err := i.lookup(p)
	if err != nil {
		return nil, err
	}
	records, err := i.vol.ListEntries(dir, i.pvd.LogicalBlockSize)
	if err != nil {
		return nil, err
	}
	clean := path.Clean("/" + p)
	var out []fs.DirEntry
	for _, rec := range records {
		if rec.IsSpecial() {
			continue
		}
		out = append(out, directory.NewEntry(rec, clean))
	}
	return out, nil
}

// ReadFile returns the contents of the file at p.
func (i *Image) ReadFile(p string) ([]byte, error) {
	rec, err := i.lookup(p)
	if err != nil {
		return nil, err
	}
	return i.vol.ReadFileContents(rec, i.pvd.LogicalBlockSize)
}

// ExtractFile copies the file at p to outputLocation on the host, creating parent directories.
func (i *Image) ExtractFile(p, outputLocation string) error {
	data, err := i.ReadFile(p)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", p, err)
	}
	if err := os.MkdirAll(filepath.Dir(outputLocation), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", outputLocation, err)
	}
	if err := os.WriteFile(outputLocation, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputLocation, err)
	}
	i.logger.Debug("extracted file", "path", p, "output", outputLocation, "size", len(data))
	return nil
}

// Extract copies the whole tree below the root into outputLocation.
func (i *Image) Extract(outputLocation string) error {
	i.logger.Debug("extracting volume", "outputLocation", outputLocation)
	return i.Walk(func(p string, rec *directory.Record) error {
		fullPath := filepath.Join(outputLocation, filepath.FromSlash(p))
		if rec.IsDirectory() {
			if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", fullPath, err)
			}
			return nil
		}
		return i.ExtractFile(p, fullPath)
	})
}

// ReplaceFile overwrites the file at p in place. content must be exactly as long as the file.
func (i *Image) ReplaceFile(p string, content []byte) error {
	rec, err := i.lookup(p)
	if err != nil {
		return err
	}
	if err := i.vol.ReplaceFileContents(rec, i.pvd.LogicalBlockSize, content); err != nil {
		return fmt.Errorf("failed to replace %s: %w", p, err)
	}
	i.logger.Info("replaced file", "path", p, "size", len(content))
	return nil
}

// ReplaceFileFrom overwrites the file at p with the contents of the host file at source.
func (i *Image) ReplaceFileFrom(p, source string) error {
	content, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}
	return i.ReplaceFile(p, content)
}

// Walk visits every entry below the root depth-first, see volume.WalkFunc.
func (i *Image) Walk(fn volume.WalkFunc) error {
	return i.vol.Walk(i.pvd.RootDirectoryRecord, i.pvd.LogicalBlockSize, fn)
}

// both-byte order fields of the descriptor, relative to the sector payload
var (
	uint32Fields = []encoding.ByteRange{
		descriptor.RangeVolumeSpaceSize,
		descriptor.RangePathTableSize,
		directory.RangeLocationOfExtent.Shift(descriptor.RangeRootDirectoryRecord.Begin),
		directory.RangeDataLength.Shift(descriptor.RangeRootDirectoryRecord.Begin),
	}
	uint16Fields = []encoding.ByteRange{
		descriptor.RangeVolumeSetSize,
		descriptor.RangeVolumeSequenceNumber,
		descriptor.RangeLogicalBlockSize,
		directory.RangeVolumeSequenceNumber.Shift(descriptor.RangeRootDirectoryRecord.Begin),
	}
)

// Check verifies that the volume decodes consistently: both halves of every both-byte order field
// agree, the descriptor sector re-encodes to the same bytes, and the root directory lists.
func (i *Image) Check() error {
	raw, err := i.vol.ReadPrimarySector(i.locations)
	if err != nil {
		return err
	}
	payload := raw[consts.CDXA_HEADER_SIZE:]
	var errs []error
	for _, r := range uint32Fields {
		errs = append(errs, encoding.VerifyBothEndian[uint32](payload, r))
	}
	for _, r := range uint16Fields {
		errs = append(errs, encoding.VerifyBothEndian[uint16](payload, r))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("primary volume descriptor failed byte order check: %w", err)
	}
	if _, err := sector.FromPrimaryVolumeDescriptor(i.pvd, raw); err != nil {
		return err
	}

	if i.pvd.LogicalBlockSize != consts.CDXA_DEFAULT_LOGICAL_BLOCK_SIZE {
		i.logger.Info("unusual logical block size", "blockSize", i.pvd.LogicalBlockSize)
	}
	if !i.pvd.HasXASignature {
		i.logger.Info("volume carries no CD-XA signature")
	}

	entries, err := i.vol.ListEntries(i.pvd.RootDirectoryRecord, i.pvd.LogicalBlockSize)
	if err != nil {
		return fmt.Errorf("failed to list root directory: %w", err)
	}
	i.logger.Debug("volume check passed", "rootEntries", len(entries))
	return nil
}
