// Package sector models raw 2352-byte CD-ROM/XA sectors.
//
// A Mode 2 Form 1 sector is laid out as:
//
//	sync(12) | header(4) | subheader(8) | payload(block size) | EDC/ECC(280)
//
// Only the payload carries logical block data; the framing on either side is preserved as found.
package sector

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bgrewell/cdxa-kit/pkg/consts"
	"github.com/bgrewell/cdxa-kit/pkg/descriptor"
)

// ErrInconsistent is returned when a rebuilt sector does not match the sector it was decoded from.
var ErrInconsistent = errors.New("rebuilt sector differs from original")

// SizeForLogicalBlock returns the physical sector size holding a logical block of blockSize bytes.
func SizeForLogicalBlock(blockSize uint16) int {
	return int(blockSize) + consts.CDXA_FRAMING_SIZE
}

// Sector is one raw physical sector.
type Sector struct {
	data [consts.CDXA_SECTOR_SIZE]byte
}

// New wraps a copy of raw.
func New(raw [consts.CDXA_SECTOR_SIZE]byte) *Sector {
	return &Sector{data: raw}
}

// Bytes returns the full sector. The slice aliases the sector.
func (s *Sector) Bytes() []byte {
	return s.data[:]
}

// Header returns the sync, header and XA subheader bytes.
func (s *Sector) Header() []byte {
	return s.data[:consts.CDXA_HEADER_SIZE]
}

// Payload returns the logical block carried by the sector.
func (s *Sector) Payload(blockSize uint16) []byte {
	end := consts.CDXA_HEADER_SIZE + int(blockSize)
	if end > len(s.data) {
		end = len(s.data)
	}
	return s.data[consts.CDXA_HEADER_SIZE:end]
}

// Trailer returns the bytes following the payload (EDC/ECC on Form 1 sectors).
func (s *Sector) Trailer(blockSize uint16) []byte {
	start := consts.CDXA_HEADER_SIZE + int(blockSize)
	if start > len(s.data) {
		start = len(s.data)
	}
	return s.data[start:]
}

// FromPrimaryVolumeDescriptor re-encodes pvd over a copy of the sector it was read from and checks
// that the result is byte-identical to original. The sector header and trailer are carried over
// from original, so a mismatch always points at a field the descriptor failed to reproduce.
func FromPrimaryVolumeDescriptor(pvd *descriptor.PrimaryVolumeDescriptor, original [consts.CDXA_SECTOR_SIZE]byte) (*Sector, error) {
	s := New(original)
	if err := pvd.WriteFields(s.data[consts.CDXA_HEADER_SIZE:]); err != nil {
		return nil, fmt.Errorf("failed to rebuild primary volume descriptor sector: %w", err)
	}
	if !bytes.Equal(s.data[:], original[:]) {
		i := firstDifference(s.data[:], original[:])
		return nil, fmt.Errorf("%w: first difference at sector byte %d (payload byte %d): got 0x%02X, want 0x%02X",
			ErrInconsistent, i, i-consts.CDXA_HEADER_SIZE, s.data[i], original[i])
	}
	return s, nil
}

func firstDifference(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			return i
		}
	}
	return -1
}
