package directory

// FileFlags holds the flag values from a Directory Record's File Flags field.
// The bits are numbered from 0 (LSB) to 7 (MSB) as follows:
//
//	Bit 0 ("Hidden"): If 0, the file's existence shall be made known to the user; if 1, it need not be.
//	Bit 1 ("Directory"): 0 indicates a file; 1 indicates a directory.
//	Bit 2 ("AssociatedFile"): 0 means not an Associated File; 1 means it is.
//	Bit 3 ("RecordFormat"): 1 means the file's structure is specified by an Extended Attribute Record.
//	Bit 4 ("Protection"): 0 means no owner/group is specified; 1 means they are specified.
//	Bits 5 & 6: Reserved. Mastering tools do not always leave them clear, so they are kept as found.
//	Bit 7 ("MultiExtent"): 0 means this is the final Directory Record for the file; 1 means it is not.
type FileFlags struct {
	Hidden         bool `json:"hidden"`
	Directory      bool `json:"directory"`
	AssociatedFile bool `json:"associated_file"`
	RecordFormat   bool `json:"record_format"`
	Protection     bool `json:"protection"`
	MultiExtent    bool `json:"multi_extent"`
	// Reserved holds bits 5 and 6 in place (mask 0x60).
	Reserved byte `json:"reserved"`
}

const reservedMask = 0x60

// Marshal converts the FileFlags into a single byte.
func (ff FileFlags) Marshal() byte {
	b := ff.Reserved & reservedMask
	if ff.Hidden {
		b |= 0x01
	}
	if ff.Directory {
		b |= 0x02
	}
	if ff.AssociatedFile {
		b |= 0x04
	}
	if ff.RecordFormat {
		b |= 0x08
	}
	if ff.Protection {
		b |= 0x10
	}
	if ff.MultiExtent {
		b |= 0x80
	}
	return b
}

// UnmarshalFileFlags converts a byte into a FileFlags struct.
func UnmarshalFileFlags(b byte) FileFlags {
	return FileFlags{
		Hidden:         (b & 0x01) != 0,
		Directory:      (b & 0x02) != 0,
		AssociatedFile: (b & 0x04) != 0,
		RecordFormat:   (b & 0x08) != 0,
		Protection:     (b & 0x10) != 0,
		MultiExtent:    (b & 0x80) != 0,
		Reserved:       b & reservedMask,
	}
}
