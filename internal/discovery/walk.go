// Package discovery enumerates audio files under a library folder.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ErrRootInaccessible is returned when the folder root itself cannot be read.
var ErrRootInaccessible = errors.New("folder is not accessible")

// File is a scan candidate.
type File struct {
	Path    string
	Size    int64
	ModTime time.Time
	// CoverHint is a folder image next to the file, if any.
	CoverHint string
}

// Skipped is a file with a known but unsupported audio extension.
type Skipped struct {
	Path string
	Ext  string // upper case, without dot ("WMA")
}

// Result is the outcome of walking one folder root.
type Result struct {
	Root    string
	Files   []File
	Skipped []Skipped
	// Errors collects subtrees that could not be read.
	Errors []error
	// Unreadable lists the directories and files behind Errors. Stored
	// tracks under them are unknown, not gone.
	Unreadable []string
}

// Walk recursively enumerates regular files under root. Hidden entries and
// package bundles are skipped, symlinks are not followed. Unreadable
// subtrees are recorded in Result.Errors without stopping the walk.
func Walk(ctx context.Context, root string, c *Classifier) (*Result, error) {
	root = filepath.Clean(root)

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootInaccessible, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootInaccessible, root)
	}

	res := &Result{Root: root}
	covers := make(map[string]string) // dir -> best cover path
	coverRanks := make(map[string]int)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return fmt.Errorf("%w: %w", ErrRootInaccessible, walkErr)
			}
			res.Errors = append(res.Errors, walkErr)
			res.Unreadable = append(res.Unreadable, path)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if isHidden(name) || isBundle(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(name) || !d.Type().IsRegular() {
			return nil
		}

		if rank := coverRank(name); rank >= 0 {
			dir := filepath.Dir(path)
			if prev, ok := coverRanks[dir]; !ok || rank < prev {
				coverRanks[dir] = rank
				covers[dir] = path
			}
			return nil
		}

		switch c.Classify(path) {
		case Supported:
			fi, err := d.Info()
			if err != nil {
				res.Errors = append(res.Errors, err)
				res.Unreadable = append(res.Unreadable, path)
				return nil
			}
			res.Files = append(res.Files, File{
				Path:    path,
				Size:    fi.Size(),
				ModTime: fi.ModTime(),
			})
		case Unsupported:
			res.Skipped = append(res.Skipped, Skipped{Path: path, Ext: displayExt(path)})
		case Ignored:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range res.Files {
		res.Files[i].CoverHint = covers[filepath.Dir(res.Files[i].Path)]
	}

	return res, nil
}

// Covers reports whether path is inside one of the unreadable entries.
func (r *Result) Covers(path string) bool {
	return Within(path, r.Unreadable)
}

// Within reports whether path equals or lies below one of roots.
func Within(path string, roots []string) bool {
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Paths returns the set of candidate paths.
func (r *Result) Paths() map[string]struct{} {
	paths := make(map[string]struct{}, len(r.Files))
	for _, f := range r.Files {
		paths[f.Path] = struct{}{}
	}
	return paths
}

// Hash fingerprints the candidate listing (relative path, size, modification
// time). Two walks of an untouched folder produce the same hash.
func (r *Result) Hash() string {
	files := make([]File, len(r.Files))
	copy(files, r.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	h := xxhash.New()
	buf := make([]byte, 0, 256)
	for _, f := range files {
		rel, err := filepath.Rel(r.Root, f.Path)
		if err != nil {
			rel = f.Path
		}
		buf = buf[:0]
		buf = append(buf, rel...)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, f.Size, 10)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, f.ModTime.UnixNano(), 10)
		buf = append(buf, '\n')
		_, _ = h.Write(buf)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// SkippedByExt counts skipped files per extension.
func (r *Result) SkippedByExt() map[string]int {
	counts := make(map[string]int)
	for _, s := range r.Skipped {
		counts[s.Ext]++
	}
	return counts
}
