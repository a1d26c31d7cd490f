package volume

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/bgrewell/cdxa-kit/pkg/directory"
)

// WalkFunc is called for every entry below the root. Returning fs.SkipDir skips the directory's
// contents, or the remaining entries of the parent when returned for a file. Any other error stops
// the walk and is returned by Walk.
type WalkFunc func(p string, rec *directory.Record) error

// FindEntry returns the entry of dir whose name, without version suffix, equals name.
// Names are compared exactly.
func (v *Volume) FindEntry(dir *directory.Record, name string, blockSize uint16) (*directory.Record, error) {
	entries, err := v.ListEntries(dir, blockSize)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsSpecial() && e.Name() == name {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Lookup resolves a slash separated path starting at root. "" and "/" resolve to root, and a
// bare name resolves in root.
func (v *Volume) Lookup(root *directory.Record, p string, blockSize uint16) (*directory.Record, error) {
	clean := strings.Trim(path.Clean("/"+p), "/")
	if clean == "" {
		return root, nil
	}

	current := root
	walked := ""
	for _, part := range strings.Split(clean, "/") {
		if !current.IsDirectory() {
			return nil, fmt.Errorf("%w: /%s", ErrNotDirectory, walked)
		}
		next, err := v.FindEntry(current, part, blockSize)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, "/"+path.Join(walked, part))
			}
			return nil, err
		}
		walked = path.Join(walked, part)
		current = next
	}
	return current, nil
}

// Walk visits every entry below root depth-first, in on-disc order, skipping self and parent
// entries. Each directory extent is listed at most once.
func (v *Volume) Walk(root *directory.Record, blockSize uint16, fn WalkFunc) error {
	visited := make(map[uint32]bool)

	var walk func(dir *directory.Record, dirPath string) error
	walk = func(dir *directory.Record, dirPath string) error {
		if visited[dir.LocationOfExtent] {
			return nil
		}
		visited[dir.LocationOfExtent] = true

		entries, err := v.ListEntries(dir, blockSize)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.IsSpecial() {
				continue
			}
			p := path.Join(dirPath, e.Name())
			if err := fn(p, e); err != nil {
				if errors.Is(err, fs.SkipDir) {
					if e.IsDirectory() {
						continue
					}
					// on a file, skip the rest of the directory
					return nil
				}
				return err
			}
			if e.IsDirectory() {
				if err := walk(e, p); err != nil {
					return err
				}
			}
		}
		return nil
	}

	return walk(root, "/")
}
