package directory

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/bgrewell/cdxa-kit/pkg/consts"
	"github.com/bgrewell/cdxa-kit/pkg/encoding"
)

var (
	// ErrTooFewBytes is returned when a buffer or the declared record length cannot hold the record.
	ErrTooFewBytes = errors.New("too few bytes for directory record")
	// ErrInvalidIdentifier is returned when a file identifier is not valid text.
	ErrInvalidIdentifier = errors.New("invalid file identifier")
)

// Field locations relative to the start of a Directory Record (ECMA-119 9.1).
var (
	RangeLengthOfDirectoryRecord       = encoding.NewByteRange(0, 1)
	RangeExtendedAttributeRecordLength = encoding.NewByteRange(1, 2)
	RangeLocationOfExtent              = encoding.NewByteRange(2, 10)
	RangeDataLength                    = encoding.NewByteRange(10, 18)
	RangeRecordingDateAndTime          = encoding.NewByteRange(18, 25)
	RangeFileFlags                     = encoding.NewByteRange(25, 26)
	RangeFileUnitSize                  = encoding.NewByteRange(26, 27)
	RangeInterleaveGapSize             = encoding.NewByteRange(27, 28)
	RangeVolumeSequenceNumber          = encoding.NewByteRange(28, 32)
	RangeLengthOfFileIdentifier        = encoding.NewByteRange(32, 33)
)

// Record is a decoded Directory Record.
type Record struct {
	// Length Of Directory Record specifies the length of the directory record in bytes.
	LengthOfDirectoryRecord uint8 `json:"length_of_directory_record"`
	// Extended Attribute Record Length is non-zero when an Extended Attribute Record precedes the file data.
	ExtendedAttributeRecordLength uint8 `json:"extended_attribute_record_length"`
	// Location of Extent is the logical block number of the first block of the extent.
	//  | Encoding: BothByteOrder
	LocationOfExtent uint32 `json:"location_of_extent"`
	// Data Length is the length of the file section in bytes.
	//  | Encoding: BothByteOrder
	DataLength uint32 `json:"data_length"`
	// Recording Date and Time is kept as the raw 7-byte field so it is written back unchanged.
	RecordingDateAndTime [7]byte `json:"recording_date_and_time"`
	// File Flags, see FileFlags for the bit layout.
	FileFlags FileFlags `json:"file_flags"`
	// File Unit Size and Interleave Gap Size are zero unless the file section is interleaved.
	FileUnitSize      uint8 `json:"file_unit_size"`
	InterleaveGapSize uint8 `json:"interleave_gap_size"`
	// Volume Sequence Number is the ordinal of the volume holding the extent.
	//  | Encoding: BothByteOrder
	VolumeSequenceNumber   uint16 `json:"volume_sequence_number"`
	LengthOfFileIdentifier uint8  `json:"length_of_file_identifier"`
	// File Identifier is "NAME.EXT;VERSION" for files, a plain name for directories, or the single
	// byte 0x00 (self) / 0x01 (parent).
	FileIdentifier []byte `json:"file_identifier"`
	// System Use holds the bytes between the identifier (and its padding byte) and the end of the
	// record. On CD-ROM/XA discs this is the 14-byte XA attribute block.
	SystemUse []byte `json:"system_use"`
}

func paddingLength(identifierLength int) int {
	if identifierLength%2 == 0 {
		return 1
	}
	return 0
}

// Size returns the number of bytes needed to encode the record's content.
func (r *Record) Size() int {
	n := len(r.FileIdentifier)
	return consts.CDXA_DIRECTORY_IDENTIFIER_OFFSET + n + paddingLength(n) + len(r.SystemUse)
}

// Unmarshal decodes a Directory Record from data. data may extend beyond the record; only
// LengthOfDirectoryRecord bytes are consumed.
func Unmarshal(data []byte) (*Record, error) {
	if len(data) < consts.CDXA_DIRECTORY_RECORD_SIZE {
		return nil, fmt.Errorf("%w: have %d, need at least %d", ErrTooFewBytes, len(data), consts.CDXA_DIRECTORY_RECORD_SIZE)
	}

	r := &Record{
		LengthOfDirectoryRecord:       data[RangeLengthOfDirectoryRecord.Begin],
		ExtendedAttributeRecordLength: data[RangeExtendedAttributeRecordLength.Begin],
		FileFlags:                     UnmarshalFileFlags(data[RangeFileFlags.Begin]),
		FileUnitSize:                  data[RangeFileUnitSize.Begin],
		InterleaveGapSize:             data[RangeInterleaveGapSize.Begin],
		LengthOfFileIdentifier:        data[RangeLengthOfFileIdentifier.Begin],
	}

	recordLength := int(r.LengthOfDirectoryRecord)
	if recordLength < consts.CDXA_DIRECTORY_RECORD_SIZE {
		return nil, fmt.Errorf("%w: record length %d is below the %d byte minimum", ErrTooFewBytes, recordLength, consts.CDXA_DIRECTORY_RECORD_SIZE)
	}
	if recordLength > len(data) {
		return nil, fmt.Errorf("%w: record length %d exceeds the %d bytes available", ErrTooFewBytes, recordLength, len(data))
	}

	var err error
	if r.LocationOfExtent, err = encoding.ReadBothEndian[uint32](data, RangeLocationOfExtent); err != nil {
		return nil, fmt.Errorf("failed to read location of extent: %w", err)
	}
	if r.DataLength, err = encoding.ReadBothEndian[uint32](data, RangeDataLength); err != nil {
		return nil, fmt.Errorf("failed to read data length: %w", err)
	}
	if r.VolumeSequenceNumber, err = encoding.ReadBothEndian[uint16](data, RangeVolumeSequenceNumber); err != nil {
		return nil, fmt.Errorf("failed to read volume sequence number: %w", err)
	}
	copy(r.RecordingDateAndTime[:], data[RangeRecordingDateAndTime.Begin:RangeRecordingDateAndTime.End])

	idStart := consts.CDXA_DIRECTORY_IDENTIFIER_OFFSET
	idEnd := idStart + int(r.LengthOfFileIdentifier)
	suStart := idEnd + paddingLength(int(r.LengthOfFileIdentifier))
	if suStart > recordLength {
		return nil, fmt.Errorf("%w: identifier of %d bytes overflows record length %d", ErrTooFewBytes, r.LengthOfFileIdentifier, recordLength)
	}

	identifier := data[idStart:idEnd]
	if !utf8.Valid(identifier) {
		return nil, fmt.Errorf("%w: % x", ErrInvalidIdentifier, identifier)
	}
	r.FileIdentifier = bytes.Clone(identifier)
	if suStart < recordLength {
		r.SystemUse = bytes.Clone(data[suStart:recordLength])
	}

	return r, nil
}

// Marshal encodes the record into exactly LengthOfDirectoryRecord bytes.
func (r *Record) Marshal() ([]byte, error) {
	if int(r.LengthOfFileIdentifier) != len(r.FileIdentifier) {
		return nil, fmt.Errorf("identifier length %d does not match identifier %q", r.LengthOfFileIdentifier, r.FileIdentifier)
	}
	recordLength := int(r.LengthOfDirectoryRecord)
	if need := r.Size(); need > recordLength {
		return nil, fmt.Errorf("%w: record content needs %d bytes, record length is %d", ErrTooFewBytes, need, recordLength)
	}

	buf := make([]byte, recordLength)
	buf[RangeLengthOfDirectoryRecord.Begin] = r.LengthOfDirectoryRecord
	buf[RangeExtendedAttributeRecordLength.Begin] = r.ExtendedAttributeRecordLength
	if err := encoding.WriteBothEndian(buf, RangeLocationOfExtent, r.LocationOfExtent); err != nil {
		return nil, fmt.Errorf("failed to write location of extent: %w", err)
	}
	if err := encoding.WriteBothEndian(buf, RangeDataLength, r.DataLength); err != nil {
		return nil, fmt.Errorf("failed to write data length: %w", err)
	}
	copy(buf[RangeRecordingDateAndTime.Begin:], r.RecordingDateAndTime[:])
	buf[RangeFileFlags.Begin] = r.FileFlags.Marshal()
	buf[RangeFileUnitSize.Begin] = r.FileUnitSize
	buf[RangeInterleaveGapSize.Begin] = r.InterleaveGapSize
	if err := encoding.WriteBothEndian(buf, RangeVolumeSequenceNumber, r.VolumeSequenceNumber); err != nil {
		return nil, fmt.Errorf("failed to write volume sequence number: %w", err)
	}
	buf[RangeLengthOfFileIdentifier.Begin] = r.LengthOfFileIdentifier

	offset := consts.CDXA_DIRECTORY_IDENTIFIER_OFFSET
	offset += copy(buf[offset:], r.FileIdentifier)
	// padding byte, already zero
	offset += paddingLength(len(r.FileIdentifier))
	copy(buf[offset:], r.SystemUse)

	return buf, nil
}

// Name returns the identifier without its ";version" suffix. The self entry yields "".
func (r *Record) Name() string {
	if len(r.FileIdentifier) == 0 || r.FileIdentifier[0] == 0x00 {
		return ""
	}
	if i := bytes.IndexByte(r.FileIdentifier, consts.CDXA_VERSION_SEPARATOR); i >= 0 {
		return string(r.FileIdentifier[:i])
	}
	return string(r.FileIdentifier)
}

// Version returns the number following ';' in the identifier, or 0 when there is none or it
// does not fit a byte.
func (r *Record) Version() uint8 {
	i := bytes.IndexByte(r.FileIdentifier, consts.CDXA_VERSION_SEPARATOR)
	if i < 0 {
		return 0
	}
	v, err := strconv.ParseUint(string(r.FileIdentifier[i+1:]), 10, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

// IsDirectory reports whether the record identifies a plain directory: the directory bit is set
// and none of the associated file, record format or multi-extent bits are.
func (r *Record) IsDirectory() bool {
	ff := r.FileFlags
	return ff.Directory && !ff.AssociatedFile && !ff.RecordFormat && !ff.MultiExtent
}

// IsSpecial checks for "." or ".."
func (r *Record) IsSpecial() bool {
	return len(r.FileIdentifier) == 1 && (r.FileIdentifier[0] == 0x00 || r.FileIdentifier[0] == 0x01)
}

func (r *Record) RecordingDateAndTimeFormatted() string {
	return encoding.FormatRecordingDateTime(r.RecordingDateAndTime)
}

func (r *Record) RecordingTime() time.Time {
	return encoding.UnmarshalRecordingDateTime(r.RecordingDateAndTime)
}

func (r *Record) String() string {
	name := string(r.FileIdentifier)
	if r.IsSpecial() {
		name = "."
		if r.FileIdentifier[0] == 0x01 {
			name = ".."
		}
	}
	kind := "file"
	if r.IsDirectory() {
		kind = "dir"
	}
	return fmt.Sprintf("%s (%s, lba=%d, size=%d, recorded=%s)", name, kind, r.LocationOfExtent, r.DataLength, r.RecordingDateAndTimeFormatted())
}
