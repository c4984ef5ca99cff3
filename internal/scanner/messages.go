package scanner

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/shelf/internal/duplicates"
	"github.com/llehouerou/shelf/internal/errmsg"
	"github.com/llehouerou/shelf/internal/library"
	"github.com/llehouerou/shelf/internal/scanstate"
)

type folderResult struct {
	folder library.Folder
	snap   scanstate.FolderSnapshot
}

// batchMessages turns the folder results of a batch into user-facing
// notices. Counts are aggregated across folders; individual files are
// never listed.
func batchMessages(results []folderResult, dups duplicates.Result) []Message {
	var msgs []Message

	removed := 0
	for _, r := range results {
		if r.snap.Removed > 0 && r.snap.Total == 0 {
			msgs = append(msgs, Message{
				Level: LevelWarning,
				Text: fmt.Sprintf("Folder '%s' is empty: removed %s",
					r.folder.Name, errmsg.Count(r.snap.Removed, "track")),
			})
			continue
		}
		removed += r.snap.Removed
	}
	if removed > 0 {
		msgs = append(msgs, Message{
			Level: LevelInfo,
			Text:  fmt.Sprintf("Removed %s whose files no longer exist", errmsg.Count(removed, "track")),
		})
	}

	if text := unsupportedText(results); text != "" {
		msgs = append(msgs, Message{Level: LevelInfo, Text: text})
	}

	failed := 0
	for _, r := range results {
		failed += r.snap.Failed()
	}
	if failed > 0 {
		msgs = append(msgs, Message{
			Level: LevelWarning,
			Text:  fmt.Sprintf("%s could not be imported", errmsg.Count(failed, "file")),
		})
	}

	if dups.Duplicates > 0 {
		msgs = append(msgs, Message{
			Level: LevelInfo,
			Text: fmt.Sprintf("Found %s in %s",
				errmsg.Count(dups.Duplicates, "duplicate track"), errmsg.Count(dups.Groups, "group")),
		})
	}
	return msgs
}

// unsupportedText groups unsupported files by extension, most frequent
// first: "3 files skipped, unsupported formats: .WMA (2), .APE (1)".
func unsupportedText(results []folderResult) string {
	counts := make(map[string]int)
	total := 0
	for _, r := range results {
		for _, sk := range r.snap.Unsupported {
			counts[sk.Ext]++
			total++
		}
	}
	if total == 0 {
		return ""
	}

	exts := make([]string, 0, len(counts))
	for ext := range counts {
		exts = append(exts, ext)
	}
	slices.SortFunc(exts, func(a, b string) int {
		return cmp.Or(cmp.Compare(counts[b], counts[a]), cmp.Compare(a, b))
	})

	parts := make([]string, len(exts))
	for i, ext := range exts {
		parts[i] = fmt.Sprintf(".%s (%s)", ext, humanize.Comma(int64(counts[ext])))
	}
	return fmt.Sprintf("%s skipped, unsupported formats: %s",
		errmsg.Count(total, "file"), strings.Join(parts, ", "))
}
