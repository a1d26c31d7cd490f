package descriptor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bgrewell/cdxa-kit/pkg/consts"
)

// ErrUnsupportedType is returned when a volume descriptor tag is not one the engine handles.
var ErrUnsupportedType = errors.New("unsupported volume descriptor type")

// VolumeDescriptorType represents the type tag of a volume descriptor.
type VolumeDescriptorType byte

const (
	// TYPE_PRIMARY_DESCRIPTOR indicates a Primary Volume Descriptor (type 1).
	TYPE_PRIMARY_DESCRIPTOR VolumeDescriptorType = 0x01

	// TYPE_TERMINATOR_DESCRIPTOR indicates the Volume Descriptor Set Terminator (type 255).
	TYPE_TERMINATOR_DESCRIPTOR VolumeDescriptorType = 0xFF
)

// SupportedTypes lists the descriptor tags found on CD-ROM/XA discs.
func SupportedTypes() []VolumeDescriptorType {
	return []VolumeDescriptorType{TYPE_PRIMARY_DESCRIPTOR, TYPE_TERMINATOR_DESCRIPTOR}
}

// ParseVolumeDescriptorType maps a raw tag byte to a VolumeDescriptorType.
func ParseVolumeDescriptorType(b byte) (VolumeDescriptorType, error) {
	for _, t := range SupportedTypes() {
		if byte(t) == b {
			return t, nil
		}
	}
	supported := make([]string, 0, len(SupportedTypes()))
	for _, t := range SupportedTypes() {
		supported = append(supported, fmt.Sprintf("%s (%d)", t, byte(t)))
	}
	return 0, fmt.Errorf("%w: %d, expected one of %s", ErrUnsupportedType, b, strings.Join(supported, ", "))
}

func (t VolumeDescriptorType) String() string {
	switch t {
	case TYPE_PRIMARY_DESCRIPTOR:
		return "Primary"
	case TYPE_TERMINATOR_DESCRIPTOR:
		return "SetTerminator"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", byte(t))
	}
}

// VolumeDescriptorLocation records where a descriptor's type tag was found in the image file.
type VolumeDescriptorLocation struct {
	// Offset is the absolute file offset of the type tag, i.e. just past the 24-byte sector header.
	Offset int64
	Type   VolumeDescriptorType
}

// SectorOffset returns the file offset of the physical sector holding the descriptor.
func (l VolumeDescriptorLocation) SectorOffset() int64 {
	return l.Offset - consts.CDXA_HEADER_SIZE
}

func (l VolumeDescriptorLocation) String() string {
	return fmt.Sprintf("%s@%d", l.Type, l.Offset)
}
