// Package testimage builds small CD-ROM/XA images laid out the way PlayStation mastering tools
// lay them out, for tests that need a real volume to read and patch.
package testimage

import (
	"encoding/binary"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bgrewell/cdxa-kit/pkg/consts"
	"github.com/bgrewell/cdxa-kit/pkg/descriptor"
	"github.com/bgrewell/cdxa-kit/pkg/directory"
	"github.com/bgrewell/cdxa-kit/pkg/encoding"
)

const (
	BlockSize   = consts.CDXA_DEFAULT_LOGICAL_BLOCK_SIZE
	SectorSize  = consts.CDXA_SECTOR_SIZE
	PVDSector   = consts.CDXA_SYSTEM_AREA_SECTORS
	TermSector  = PVDSector + 1
	LPathSector = PVDSector + 2
	MPathSector = PVDSector + 3
	RootLBA     = 22

	// TrailerFill stands in for EDC/ECC so tests can tell framing bytes apart from data.
	TrailerFill = 0xA5
)

// Recorded is the recording timestamp given to every record: 1998-08-13 16:56:05, GMT+9.
var Recorded = [7]byte{98, 8, 13, 16, 56, 5, 36}

var syncPattern = [consts.CDXA_SYNC_SIZE]byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

// XA subheader submode bits.
const (
	submodeEOR  = 0x01
	submodeData = 0x08
	submodeEOF  = 0x80
)

// Entry describes where the builder placed a file or directory.
type Entry struct {
	Path        string
	LBA         uint32
	Size        uint32
	IsDirectory bool
}

// Image is a built volume and the layout of everything in it.
type Image struct {
	Data    []byte
	Entries map[string]Entry
}

// SectorOffset returns the file offset of the physical sector at lba.
func SectorOffset(lba uint32) int64 {
	return int64(lba) * SectorSize
}

type node struct {
	name     string
	path     string
	isDir    bool
	content  []byte
	children []*node
	lba      uint32
	size     uint32
}

// Builder collects directories and files and lays them out in a raw 2352-byte sector image.
type Builder struct {
	SystemID    string
	VolumeID    string
	Publisher   string
	Application string
	root        *node
	nodes       map[string]*node
}

func NewBuilder() *Builder {
	root := &node{path: "/", isDir: true}
	return &Builder{
		SystemID:    "PLAYSTATION",
		VolumeID:    "SPYRO",
		Publisher:   "SONY COMPUTER ENTERTAINMENT AMERICA",
		Application: "PLAYSTATION",
		root:        root,
		nodes:       map[string]*node{"/": root},
	}
}

func (b *Builder) parent(p string) *node {
	dir := path.Dir(p)
	if n, ok := b.nodes[dir]; ok {
		return n
	}
	b.AddDir(dir)
	return b.nodes[dir]
}

// AddDir adds a directory, creating missing parents.
func (b *Builder) AddDir(p string) *Builder {
	p = path.Clean("/" + p)
	if _, ok := b.nodes[p]; ok {
		return b
	}
	parent := b.parent(p)
	n := &node{name: path.Base(p), path: p, isDir: true}
	parent.children = append(parent.children, n)
	b.nodes[p] = n
	return b
}

// AddFile adds a file with version 1, creating missing parent directories.
func (b *Builder) AddFile(p string, content []byte) *Builder {
	p = path.Clean("/" + p)
	parent := b.parent(p)
	n := &node{name: path.Base(p), path: p, content: content, size: uint32(len(content))}
	parent.children = append(parent.children, n)
	b.nodes[p] = n
	return b
}

func (n *node) identifier() []byte {
	if n.isDir {
		return []byte(n.name)
	}
	return []byte(n.name + ";1")
}

// xaAttributes is the CD-ROM/XA system use block: group, user, attributes, "XA", file number.
func xaAttributes(isDir bool) []byte {
	su := make([]byte, 14)
	attrs := uint16(0x0D55)
	if isDir {
		attrs = 0x8D55
	}
	binary.BigEndian.PutUint16(su[4:6], attrs)
	copy(su[6:8], "XA")
	return su
}

func newRecord(identifier []byte, lba, size uint32, isDir bool, systemUse []byte) *directory.Record {
	r := &directory.Record{
		LocationOfExtent:       lba,
		DataLength:             size,
		RecordingDateAndTime:   Recorded,
		FileFlags:              directory.FileFlags{Directory: isDir},
		VolumeSequenceNumber:   1,
		LengthOfFileIdentifier: uint8(len(identifier)),
		FileIdentifier:         identifier,
		SystemUse:              systemUse,
	}
	r.LengthOfDirectoryRecord = uint8(r.Size())
	return r
}

// records returns the entries of dir in on-disc order: self, parent, then children sorted by
// identifier.
func (b *Builder) records(dir, parent *node) []*directory.Record {
	recs := []*directory.Record{
		newRecord([]byte{0x00}, dir.lba, dir.size, true, xaAttributes(true)),
		newRecord([]byte{0x01}, parent.lba, parent.size, true, xaAttributes(true)),
	}
	for _, c := range dir.children {
		recs = append(recs, newRecord(c.identifier(), c.lba, c.size, c.isDir, xaAttributes(c.isDir)))
	}
	return recs
}

// pack places records into blocks; a record never crosses a block boundary.
func pack(recs []*directory.Record) ([][]byte, error) {
	blocks := [][]byte{make([]byte, BlockSize)}
	pos := 0
	for _, r := range recs {
		raw, err := r.Marshal()
		if err != nil {
			return nil, err
		}
		if pos+len(raw) > BlockSize {
			blocks = append(blocks, make([]byte, BlockSize))
			pos = 0
		}
		copy(blocks[len(blocks)-1][pos:], raw)
		pos += len(raw)
	}
	return blocks, nil
}

func blocksFor(size uint32) uint32 {
	return (size + BlockSize - 1) / BlockSize
}

func (b *Builder) sortTree(n *node) []*node {
	sort.Slice(n.children, func(i, j int) bool {
		return strings.Compare(string(n.children[i].identifier()), string(n.children[j].identifier())) < 0
	})
	order := []*node{n}
	for _, c := range n.children {
		if c.isDir {
			order = append(order, b.sortTree(c)...)
		}
	}
	return order
}

func (b *Builder) parentOf(n *node) *node {
	if n == b.root {
		return b.root
	}
	return b.nodes[path.Dir(n.path)]
}

// Build lays the tree out from RootLBA on and returns the image.
func (b *Builder) Build() (*Image, error) {
	dirs := b.sortTree(b.root)

	// directory sizes only depend on identifiers, so they are fixed before any LBA is known
	for _, d := range dirs {
		blocks, err := pack(b.records(d, b.parentOf(d)))
		if err != nil {
			return nil, fmt.Errorf("failed to size directory %s: %w", d.path, err)
		}
		d.size = uint32(len(blocks)) * BlockSize
	}

	next := uint32(RootLBA)
	for _, d := range dirs {
		d.lba = next
		next += blocksFor(d.size)
	}
	var files []*node
	for _, d := range dirs {
		for _, c := range d.children {
			if !c.isDir {
				c.lba = next
				next += blocksFor(c.size)
				files = append(files, c)
			}
		}
	}
	total := next

	img := &Image{Data: make([]byte, int64(total)*SectorSize), Entries: map[string]Entry{}}
	for lba := uint32(0); lba < total; lba++ {
		writeFraming(img.Data, lba, submodeData)
	}

	if err := b.writePrimary(img.Data, total); err != nil {
		return nil, err
	}
	writeTerminator(img.Data)
	writePathTables(img.Data)

	for _, d := range dirs {
		blocks, err := pack(b.records(d, b.parentOf(d)))
		if err != nil {
			return nil, fmt.Errorf("failed to encode directory %s: %w", d.path, err)
		}
		for i, block := range blocks {
			copy(payload(img.Data, d.lba+uint32(i)), block)
		}
		markEnd(img.Data, d.lba+uint32(len(blocks))-1)
		img.Entries[d.path] = Entry{Path: d.path, LBA: d.lba, Size: d.size, IsDirectory: true}
	}
	for _, f := range files {
		n := blocksFor(f.size)
		for i := uint32(0); i < n; i++ {
			lo := i * BlockSize
			hi := min(lo+BlockSize, f.size)
			copy(payload(img.Data, f.lba+i), f.content[lo:hi])
		}
		if n > 0 {
			markEnd(img.Data, f.lba+n-1)
		}
		img.Entries[f.path] = Entry{Path: f.path, LBA: f.lba, Size: f.size}
	}

	return img, nil
}

func payload(data []byte, lba uint32) []byte {
	off := SectorOffset(lba) + consts.CDXA_HEADER_SIZE
	return data[off : off+BlockSize]
}

// writeFraming writes the sync pattern, MSF header, XA subheader and a filler trailer.
func writeFraming(data []byte, lba uint32, submode byte) {
	s := data[SectorOffset(lba) : SectorOffset(lba)+SectorSize]
	copy(s, syncPattern[:])
	msf := encoding.LBAToMSF(lba)
	copy(s[12:15], msf[:])
	s[15] = 0x02
	sub := []byte{0x00, 0x00, submode, 0x00}
	copy(s[16:20], sub)
	copy(s[20:24], sub)
	for i := consts.CDXA_HEADER_SIZE + BlockSize; i < SectorSize; i++ {
		s[i] = TrailerFill
	}
}

func markEnd(data []byte, lba uint32) {
	off := SectorOffset(lba)
	data[off+18] |= submodeEOR | submodeEOF
	data[off+22] |= submodeEOR | submodeEOF
}

func (b *Builder) writePrimary(data []byte, total uint32) error {
	p := payload(data, PVDSector)
	for _, r := range []encoding.ByteRange{
		descriptor.RangeSystemIdentifier,
		descriptor.RangeVolumeIdentifier,
		descriptor.RangePublisherIdentifier,
		descriptor.RangeApplicationIdentifier,
	} {
		for i := r.Begin; i < r.End; i++ {
			p[i] = consts.CDXA_FILLER
		}
	}

	root := newRecord([]byte{0x00}, b.root.lba, b.root.size, true, nil)
	pvd := &descriptor.PrimaryVolumeDescriptor{
		VolumeDescriptorHeader:   descriptor.NewHeader(descriptor.TYPE_PRIMARY_DESCRIPTOR),
		SystemIdentifier:         b.SystemID,
		VolumeIdentifier:         b.VolumeID,
		VolumeSpaceSize:          total,
		VolumeSetSize:            1,
		VolumeSequenceNumber:     1,
		LogicalBlockSize:         BlockSize,
		PathTableSize:            10,
		LocationOfTypeLPathTable: LPathSector,
		RootDirectoryRecord:      root,
		PublisherIdentifier:      b.Publisher,
		ApplicationIdentifier:    b.Application,
		FileStructureVersion:     1,
		HasXASignature:           true,
	}
	if err := pvd.WriteFields(p); err != nil {
		return fmt.Errorf("failed to write primary volume descriptor: %w", err)
	}
	// M path table location follows the L path table field, big-endian only
	binary.BigEndian.PutUint32(p[148:152], MPathSector)
	markEnd(data, PVDSector)
	return nil
}

func writeTerminator(data []byte) {
	h := descriptor.NewHeader(descriptor.TYPE_TERMINATOR_DESCRIPTOR)
	raw, _ := h.Marshal()
	copy(payload(data, TermSector), raw[:])
	markEnd(data, TermSector)
}

// writePathTables records the single root entry in both path tables.
func writePathTables(data []byte) {
	l := payload(data, LPathSector)
	l[0] = 1
	binary.LittleEndian.PutUint32(l[2:6], RootLBA)
	binary.LittleEndian.PutUint16(l[6:8], 1)

	m := payload(data, MPathSector)
	m[0] = 1
	binary.BigEndian.PutUint32(m[2:6], RootLBA)
	binary.BigEndian.PutUint16(m[6:8], 1)
}
