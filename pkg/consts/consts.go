package consts

const (
	// Number of system area sectors preceding the volume descriptor set.
	CDXA_SYSTEM_AREA_SECTORS = 16

	// Physical size of a raw CD-ROM/XA sector (sync + header + subheader + payload + EDC/ECC).
	CDXA_SECTOR_SIZE = 2352

	// Leading bytes of every physical sector: sync(12) + header(4) + XA subheader(8).
	CDXA_HEADER_SIZE = 24

	// Combined leading header and trailing EDC/ECC region around a logical block.
	CDXA_FRAMING_SIZE = 304

	// Trailing bytes of a physical sector after the logical block payload.
	CDXA_TRAILER_SIZE = CDXA_FRAMING_SIZE - CDXA_HEADER_SIZE

	// Sync pattern length at the start of a physical sector.
	CDXA_SYNC_SIZE = 12

	// Logical block size used by PlayStation discs.
	CDXA_DEFAULT_LOGICAL_BLOCK_SIZE = 2048

	// Standard identifier found at payload offset 1 of every volume descriptor.
	CDXA_STD_IDENTIFIER = "CD001"

	// CD-ROM/XA signature recorded in the application use area of the Primary Volume Descriptor.
	CDXA_XA_SIGNATURE = "CD-XA001"

	// Volume descriptor header size: type(1) + standard identifier(5) + version(1).
	CDXA_VOLUME_DESC_HEADER_SIZE = 7

	// Volume descriptor version (always 1).
	CDXA_VOLUME_DESC_VERSION = 1

	// Fixed prefix of a Directory Record, including a one byte identifier.
	CDXA_DIRECTORY_RECORD_SIZE = 34

	// Offset of the identifier inside a Directory Record.
	CDXA_DIRECTORY_IDENTIFIER_OFFSET = 33

	// Filler 0x20 (space) used to pad fixed width text fields.
	CDXA_FILLER = ' '

	// Separator between a file name and its version number.
	CDXA_VERSION_SEPARATOR = ';'

	// Frames addressed before LBA 0 (two second pregap) and frames per second of audio time.
	CDXA_PREGAP_FRAMES     = 150
	CDXA_FRAMES_PER_SECOND = 75
)
