// Package reconcile decides, for each file found on disk, whether it is new,
// changed or unchanged relative to the library, and writes the outcome of a
// chunk of files to the store in one transaction.
package reconcile

import "github.com/llehouerou/shelf/internal/library"

// MtimeTolerance absorbs filesystem timestamp jitter: modification times
// closer than this are treated as unchanged.
const MtimeTolerance int64 = 1e9 // nanoseconds

// Action is the classification of a file before extraction.
type Action int

const (
	// ActionSkip marks an unchanged file; it is not extracted.
	ActionSkip Action = iota
	// ActionInsert marks a file with no stored track.
	ActionInsert
	// ActionCompare marks a file whose modification time moved; it is
	// extracted and updated only if a field differs.
	ActionCompare
	// ActionRefresh marks a file re-extracted and updated unconditionally.
	ActionRefresh
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionInsert:
		return "insert"
	case ActionCompare:
		return "compare"
	case ActionRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// NeedsExtraction reports whether the file must be read.
func (a Action) NeedsExtraction() bool {
	return a != ActionSkip
}

// Decide classifies a file from its stored state (nil when none) and its
// modification time in Unix nanoseconds.
func Decide(existing *library.Existing, mtime int64, hard bool) Action {
	if existing == nil {
		return ActionInsert
	}
	if hard {
		return ActionRefresh
	}
	diff := mtime - existing.Mtime
	if diff < 0 {
		diff = -diff
	}
	if diff < MtimeTolerance {
		return ActionSkip
	}
	return ActionCompare
}
