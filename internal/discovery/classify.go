package discovery

import (
	"path/filepath"
	"strings"
)

// Class is the outcome of classifying a file by extension.
type Class int

const (
	// Ignored files are neither scanned nor reported.
	Ignored Class = iota
	// Supported files are scan candidates.
	Supported
	// Unsupported files are audio formats the library cannot read; they are
	// reported as skipped.
	Unsupported
)

// Classifier sorts files by extension. Extensions are compared case-insensitively
// and may be given with or without the leading dot.
type Classifier struct {
	supported   map[string]struct{}
	unsupported map[string]struct{}
}

// NewClassifier builds a classifier from extension lists.
// An extension present in both lists is treated as supported.
func NewClassifier(supported, unsupported []string) *Classifier {
	c := &Classifier{
		supported:   make(map[string]struct{}, len(supported)),
		unsupported: make(map[string]struct{}, len(unsupported)),
	}
	for _, ext := range unsupported {
		if e := normalizeExt(ext); e != "" {
			c.unsupported[e] = struct{}{}
		}
	}
	for _, ext := range supported {
		if e := normalizeExt(ext); e != "" {
			c.supported[e] = struct{}{}
			delete(c.unsupported, e)
		}
	}
	return c
}

// Classify returns the class of the file at path.
func (c *Classifier) Classify(path string) Class {
	ext := normalizeExt(filepath.Ext(path))
	if ext == "" {
		return Ignored
	}
	if _, ok := c.supported[ext]; ok {
		return Supported
	}
	if _, ok := c.unsupported[ext]; ok {
		return Unsupported
	}
	return Ignored
}

// IsSupported reports whether path is a scan candidate.
func (c *Classifier) IsSupported(path string) bool {
	return c.Classify(path) == Supported
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// displayExt is the form used in skip reports: upper case, no dot.
func displayExt(path string) string {
	return strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
}

// bundleExtensions name directories that are opaque packages rather than
// folders of loose files.
var bundleExtensions = map[string]struct{}{
	".app":           {},
	".bundle":        {},
	".framework":     {},
	".pkg":           {},
	".photoslibrary": {},
	".musiclibrary":  {},
	".tvlibrary":     {},
	".logicx":        {},
	".band":          {},
}

func isBundle(name string) bool {
	_, ok := bundleExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Folder cover art names, checked in order of preference.
var (
	coverArtNames   = []string{"cover", "folder", "front", "album", "albumart", "artwork"}
	imageExtensions = []string{".jpg", ".jpeg", ".png"}
)

// coverRank returns the preference of an image file name as folder art,
// or -1 when it is not a cover name.
func coverRank(name string) int {
	ext := strings.ToLower(filepath.Ext(name))
	isImage := false
	for _, e := range imageExtensions {
		if ext == e {
			isImage = true
			break
		}
	}
	if !isImage {
		return -1
	}
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	for i, n := range coverArtNames {
		if base == n {
			return i
		}
	}
	return -1
}
