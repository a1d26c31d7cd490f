package descriptor

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bgrewell/cdxa-kit/pkg/consts"
	"github.com/bgrewell/cdxa-kit/pkg/directory"
	"github.com/bgrewell/cdxa-kit/pkg/encoding"
)

// ErrMissingStandardIdentifier is returned when a descriptor payload does not carry "CD001".
var ErrMissingStandardIdentifier = errors.New("missing standard identifier")

// Field locations relative to the start of the descriptor payload (ECMA-119 8.4).
var (
	RangeStandardIdentifier       = encoding.NewByteRange(1, 6)
	RangeSystemIdentifier         = encoding.NewByteRange(8, 40)
	RangeVolumeIdentifier         = encoding.NewByteRange(40, 72)
	RangeVolumeSpaceSize          = encoding.NewByteRange(80, 88)
	RangeVolumeSetSize            = encoding.NewByteRange(120, 124)
	RangeVolumeSequenceNumber     = encoding.NewByteRange(124, 128)
	RangeLogicalBlockSize         = encoding.NewByteRange(128, 132)
	RangePathTableSize            = encoding.NewByteRange(132, 140)
	RangeLocationOfTypeLPathTable = encoding.NewByteRange(140, 144)
	RangeRootDirectoryRecord      = encoding.NewByteRange(156, 190)
	RangePublisherIdentifier      = encoding.NewByteRange(318, 446)
	RangeApplicationIdentifier    = encoding.NewByteRange(574, 702)
	RangeFileStructureVersion     = encoding.NewByteRange(881, 882)
	// CD-ROM/XA discs record "CD-XA001" at the start of the application use area.
	RangeXASignature = encoding.NewByteRange(1024, 1032)
)

// PrimaryVolumeDescriptor holds the fields of the Primary Volume Descriptor the engine relies on.
type PrimaryVolumeDescriptor struct {
	VolumeDescriptorHeader
	SystemIdentifier string `json:"system_identifier"`
	VolumeIdentifier string `json:"volume_identifier"`
	// Volume Space Size is the number of logical blocks in the volume.
	//  | Encoding: BothByteOrder
	VolumeSpaceSize      uint32 `json:"volume_space_size"`
	VolumeSetSize        uint16 `json:"volume_set_size"`
	VolumeSequenceNumber uint16 `json:"volume_sequence_number"`
	// Logical Block Size is the payload size of one sector, 2048 on every known disc.
	//  | Encoding: BothByteOrder
	LogicalBlockSize uint16 `json:"logical_block_size"`
	PathTableSize    uint32 `json:"path_table_size"`
	// Location of Type L Path Table.
	//  | Encoding: LittleEndian
	LocationOfTypeLPathTable uint32            `json:"location_of_type_l_path_table"`
	RootDirectoryRecord      *directory.Record `json:"root_directory_record"`
	PublisherIdentifier      string            `json:"publisher_identifier"`
	ApplicationIdentifier    string            `json:"application_identifier"`
	FileStructureVersion     uint8             `json:"file_structure_version"`
	HasXASignature           bool              `json:"has_xa_signature"`
}

// Unmarshal decodes a Primary Volume Descriptor from a sector payload. offsetInFile is the file
// offset of the payload and is only used to make errors traceable.
func Unmarshal(payload []byte, offsetInFile int64) (*PrimaryVolumeDescriptor, error) {
	id, err := encoding.ReadBytes(payload, RangeStandardIdentifier)
	if err != nil || string(id) != consts.CDXA_STD_IDENTIFIER {
		return nil, fmt.Errorf("%w: expected %q at offset %d", ErrMissingStandardIdentifier, consts.CDXA_STD_IDENTIFIER, offsetInFile+int64(RangeStandardIdentifier.Begin))
	}

	header, err := UnmarshalHeader(payload)
	if err != nil {
		return nil, err
	}
	pvd := &PrimaryVolumeDescriptor{VolumeDescriptorHeader: header}

	if pvd.SystemIdentifier, err = encoding.ReadString(payload, RangeSystemIdentifier); err != nil {
		return nil, fmt.Errorf("failed to read system identifier: %w", err)
	}
	if pvd.VolumeIdentifier, err = encoding.ReadString(payload, RangeVolumeIdentifier); err != nil {
		return nil, fmt.Errorf("failed to read volume identifier: %w", err)
	}
	if pvd.VolumeSpaceSize, err = encoding.ReadBothEndian[uint32](payload, RangeVolumeSpaceSize); err != nil {
		return nil, fmt.Errorf("failed to read volume space size: %w", err)
	}
	if pvd.VolumeSetSize, err = encoding.ReadBothEndian[uint16](payload, RangeVolumeSetSize); err != nil {
		return nil, fmt.Errorf("failed to read volume set size: %w", err)
	}
	if pvd.VolumeSequenceNumber, err = encoding.ReadBothEndian[uint16](payload, RangeVolumeSequenceNumber); err != nil {
		return nil, fmt.Errorf("failed to read volume sequence number: %w", err)
	}
	if pvd.LogicalBlockSize, err = encoding.ReadBothEndian[uint16](payload, RangeLogicalBlockSize); err != nil {
		return nil, fmt.Errorf("failed to read logical block size: %w", err)
	}
	if pvd.PathTableSize, err = encoding.ReadBothEndian[uint32](payload, RangePathTableSize); err != nil {
		return nil, fmt.Errorf("failed to read path table size: %w", err)
	}
	if pvd.LocationOfTypeLPathTable, err = encoding.ReadLittleEndian32(payload, RangeLocationOfTypeLPathTable); err != nil {
		return nil, fmt.Errorf("failed to read type L path table location: %w", err)
	}

	rootBytes, err := encoding.ReadBytes(payload, RangeRootDirectoryRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory record: %w", err)
	}
	if pvd.RootDirectoryRecord, err = directory.Unmarshal(rootBytes); err != nil {
		return nil, fmt.Errorf("failed to decode root directory record at offset %d: %w", offsetInFile+int64(RangeRootDirectoryRecord.Begin), err)
	}

	if pvd.PublisherIdentifier, err = encoding.ReadString(payload, RangePublisherIdentifier); err != nil {
		return nil, fmt.Errorf("failed to read publisher identifier: %w", err)
	}
	if pvd.ApplicationIdentifier, err = encoding.ReadString(payload, RangeApplicationIdentifier); err != nil {
		return nil, fmt.Errorf("failed to read application identifier: %w", err)
	}
	if len(payload) >= RangeFileStructureVersion.End {
		pvd.FileStructureVersion = payload[RangeFileStructureVersion.Begin]
	}
	if sig, err := RangeXASignature.Slice(payload); err == nil {
		pvd.HasXASignature = bytes.Equal(sig, []byte(consts.CDXA_XA_SIGNATURE))
	}

	return pvd, nil
}

// WriteFields encodes every modelled field into payload at its declared location. Bytes the
// descriptor does not model are left untouched.
func (pvd *PrimaryVolumeDescriptor) WriteFields(payload []byte) error {
	header, err := pvd.VolumeDescriptorHeader.Marshal()
	if err != nil {
		return err
	}
	if err := encoding.WriteBytes(payload, encoding.NewByteRange(0, len(header)), header[:]); err != nil {
		return fmt.Errorf("failed to write descriptor header: %w", err)
	}
	if err := encoding.WriteString(payload, RangeSystemIdentifier, pvd.SystemIdentifier); err != nil {
		return fmt.Errorf("failed to write system identifier: %w", err)
	}
	if err := encoding.WriteString(payload, RangeVolumeIdentifier, pvd.VolumeIdentifier); err != nil {
		return fmt.Errorf("failed to write volume identifier: %w", err)
	}
	if err := encoding.WriteBothEndian(payload, RangeVolumeSpaceSize, pvd.VolumeSpaceSize); err != nil {
		return fmt.Errorf("failed to write volume space size: %w", err)
	}
	if err := encoding.WriteBothEndian(payload, RangeVolumeSetSize, pvd.VolumeSetSize); err != nil {
		return fmt.Errorf("failed to write volume set size: %w", err)
	}
	if err := encoding.WriteBothEndian(payload, RangeVolumeSequenceNumber, pvd.VolumeSequenceNumber); err != nil {
		return fmt.Errorf("failed to write volume sequence number: %w", err)
	}
	if err := encoding.WriteBothEndian(payload, RangeLogicalBlockSize, pvd.LogicalBlockSize); err != nil {
		return fmt.Errorf("failed to write logical block size: %w", err)
	}
	if err := encoding.WriteBothEndian(payload, RangePathTableSize, pvd.PathTableSize); err != nil {
		return fmt.Errorf("failed to write path table size: %w", err)
	}
	if err := encoding.WriteLittleEndian32(payload, RangeLocationOfTypeLPathTable, pvd.LocationOfTypeLPathTable); err != nil {
		return fmt.Errorf("failed to write type L path table location: %w", err)
	}
	if pvd.RootDirectoryRecord == nil {
		return fmt.Errorf("primary volume descriptor has no root directory record")
	}
	root, err := pvd.RootDirectoryRecord.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode root directory record: %w", err)
	}
	if err := encoding.WriteBytes(payload, RangeRootDirectoryRecord, root); err != nil {
		return fmt.Errorf("failed to write root directory record: %w", err)
	}
	if err := encoding.WriteString(payload, RangePublisherIdentifier, pvd.PublisherIdentifier); err != nil {
		return fmt.Errorf("failed to write publisher identifier: %w", err)
	}
	if err := encoding.WriteString(payload, RangeApplicationIdentifier, pvd.ApplicationIdentifier); err != nil {
		return fmt.Errorf("failed to write application identifier: %w", err)
	}
	if err := encoding.WriteBytes(payload, RangeFileStructureVersion, []byte{pvd.FileStructureVersion}); err != nil {
		return fmt.Errorf("failed to write file structure version: %w", err)
	}
	if pvd.HasXASignature {
		if err := encoding.WriteBytes(payload, RangeXASignature, []byte(consts.CDXA_XA_SIGNATURE)); err != nil {
			return fmt.Errorf("failed to write XA signature: %w", err)
		}
	}
	return nil
}
