package directory

import (
	"io/fs"
	"path"
	"time"
)

// Ensure that Entry implements the fs.FileInfo and fs.DirEntry interfaces.
var (
	_ fs.FileInfo = Entry{}
	_ fs.DirEntry = Entry{}
)

// Entry is an fs.FileInfo compatible wrapper around a Record found at a given path.
type Entry struct {
	Record     *Record
	parentPath string
}

// NewEntry wraps rec, which was listed in the directory at parentPath.
func NewEntry(rec *Record, parentPath string) Entry {
	return Entry{Record: rec, parentPath: parentPath}
}

// Name returns the identifier without its version suffix. The root reports "/".
func (e Entry) Name() string {
	if e.Record.IsSpecial() && e.parentPath == "" {
		return "/"
	}
	return e.Record.Name()
}

// Size returns the data length of the entry.
func (e Entry) Size() int64 {
	return int64(e.Record.DataLength)
}

// Mode returns fs.ModeDir for directories; the format records no permissions.
func (e Entry) Mode() fs.FileMode {
	if e.IsDir() {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

// ModTime returns the recording date and time of the entry.
func (e Entry) ModTime() time.Time {
	return e.Record.RecordingTime()
}

func (e Entry) IsDir() bool {
	return e.Record.IsDirectory()
}

// Sys returns the underlying *Record.
func (e Entry) Sys() any {
	return e.Record
}

func (e Entry) Type() fs.FileMode {
	return e.Mode().Type()
}

func (e Entry) Info() (fs.FileInfo, error) {
	return e, nil
}

// FullPath returns the slash separated path of the entry.
func (e Entry) FullPath() string {
	if e.parentPath == "" {
		return "/"
	}
	return path.Join(e.parentPath, e.Name())
}
