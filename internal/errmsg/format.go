// Package errmsg provides consistent formatting for user-facing messages.
package errmsg

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Folder operations
	OpFolderAdd     Op = "add folder"
	OpFolderRemove  Op = "remove folder"
	OpFolderRefresh Op = "refresh folder"
	OpFolderAccess  Op = "access folder"
	OpFolderLoad    Op = "load folders"

	// Scan operations
	OpScanWalk     Op = "read folder contents"
	OpScanExtract  Op = "read file tags"
	OpScanWrite    Op = "save scanned tracks"
	OpScanPrune    Op = "remove deleted tracks"
	OpScanFinalize Op = "finish library scan"

	// Library maintenance
	OpDuplicates   Op = "detect duplicates"
	OpCountRefresh Op = "refresh library counts"
	OpLibraryLoad  Op = "load library"
	OpSearch       Op = "search library"

	// Initialization
	OpInitialize Op = "initialize library"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}

// Count renders a count with its noun, e.g. "1 file" or "1,204 files".
// The plural adds an "s" unless plural is given.
func Count(n int, singular string, plural ...string) string {
	noun := singular
	if n != 1 {
		if len(plural) > 0 {
			noun = plural[0]
		} else {
			noun = singular + "s"
		}
	}
	return humanize.Comma(int64(n)) + " " + noun
}
