package descriptor

import (
	"fmt"

	"github.com/bgrewell/cdxa-kit/pkg/consts"
)

type VolumeDescriptorHeader struct {
	// Volume Descriptor Type.
	//  | 1 = Primary
	//  | 255 = Terminator
	VolumeDescriptorType VolumeDescriptorType `json:"volume_descriptor_type"`
	// Standard Identifier should always be 'CD001'.
	StandardIdentifier string `json:"standard_identifier"`
	// Volume Descriptor Version, always 1.
	VolumeDescriptorVersion uint8 `json:"volume_descriptor_version"`
}

// NewHeader returns a header for t carrying the standard identifier and version.
func NewHeader(t VolumeDescriptorType) VolumeDescriptorHeader {
	return VolumeDescriptorHeader{
		VolumeDescriptorType:    t,
		StandardIdentifier:      consts.CDXA_STD_IDENTIFIER,
		VolumeDescriptorVersion: consts.CDXA_VOLUME_DESC_VERSION,
	}
}

// Marshal converts the VolumeDescriptorHeader into its 7-byte on-disk representation.
func (h *VolumeDescriptorHeader) Marshal() ([consts.CDXA_VOLUME_DESC_HEADER_SIZE]byte, error) {
	var buf [consts.CDXA_VOLUME_DESC_HEADER_SIZE]byte
	if len(h.StandardIdentifier) != len(consts.CDXA_STD_IDENTIFIER) {
		return buf, fmt.Errorf("standard identifier %q must be %d bytes", h.StandardIdentifier, len(consts.CDXA_STD_IDENTIFIER))
	}
	buf[0] = byte(h.VolumeDescriptorType)
	copy(buf[1:6], h.StandardIdentifier)
	buf[6] = h.VolumeDescriptorVersion
	return buf, nil
}

// UnmarshalHeader parses the first 7 bytes of a descriptor payload.
func UnmarshalHeader(data []byte) (VolumeDescriptorHeader, error) {
	if len(data) < consts.CDXA_VOLUME_DESC_HEADER_SIZE {
		return VolumeDescriptorHeader{}, fmt.Errorf("volume descriptor header needs %d bytes, got %d", consts.CDXA_VOLUME_DESC_HEADER_SIZE, len(data))
	}
	return VolumeDescriptorHeader{
		VolumeDescriptorType:    VolumeDescriptorType(data[0]),
		StandardIdentifier:      string(data[1:6]),
		VolumeDescriptorVersion: data[6],
	}, nil
}
