package testimage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bgrewell/cdxa-kit/pkg/encoding"
)

// GroundTruthEntry is what a walk of the volume is expected to report for one path.
type GroundTruthEntry struct {
	Path        string `json:"path"`
	Date        string `json:"date"`
	Size        int64  `json:"size"`
	IsDirectory bool   `json:"is_directory"`
}

// GroundTruth lists every entry the builder placed, root excluded, sorted by path.
func (img *Image) GroundTruth() []GroundTruthEntry {
	var out []GroundTruthEntry
	for p, e := range img.Entries {
		if p == "/" {
			continue
		}
		out = append(out, GroundTruthEntry{
			Path:        p,
			Date:        encoding.FormatRecordingDateTime(Recorded),
			Size:        int64(e.Size),
			IsDirectory: e.IsDirectory,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Counts returns the number of directories and files in entries.
func Counts(entries []GroundTruthEntry) (dirs, files int) {
	for _, e := range entries {
		if e.IsDirectory {
			dirs++
		} else {
			files++
		}
	}
	return dirs, files
}

// Validate compares walked entries against the ground truth and describes every missing, extra
// or differing entry in the returned error.
func Validate(got, want []GroundTruthEntry) error {
	gotMap := make(map[string]GroundTruthEntry, len(got))
	for _, e := range got {
		gotMap[e.Path] = e
	}
	wantMap := make(map[string]GroundTruthEntry, len(want))
	for _, e := range want {
		wantMap[e.Path] = e
	}

	var problems []string
	for p, w := range wantMap {
		g, found := gotMap[p]
		switch {
		case !found:
			problems = append(problems, fmt.Sprintf("missing [%s] %s", kind(w), p))
		case g != w:
			problems = append(problems, fmt.Sprintf("mismatch %s: got %+v, want %+v", p, g, w))
		}
	}
	for p, g := range gotMap {
		if _, found := wantMap[p]; !found {
			problems = append(problems, fmt.Sprintf("extra [%s] %s", kind(g), p))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("walk does not match ground truth:\n  %s", strings.Join(problems, "\n  "))
}

func kind(e GroundTruthEntry) string {
	if e.IsDirectory {
		return "DIR"
	}
	return "FILE"
}
