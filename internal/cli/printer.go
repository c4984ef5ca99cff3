package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/shelf/internal/errmsg"
	"github.com/llehouerou/shelf/internal/scanner"
)

// printer renders scanner events: progress on the error stream, results
// and messages on the output stream.
type printer struct {
	mu       sync.Mutex
	out      io.Writer
	progress io.Writer
	inLine   bool
}

func newPrinter(out, progress io.Writer) *printer {
	return &printer{out: out, progress: progress}
}

func (p *printer) Publish(e scanner.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e := e.(type) {
	case scanner.Started:
		kind := "Scanning"
		if e.Initial {
			kind = "Importing"
		}
		if e.Hard {
			kind += " (full refresh)"
		}
		p.line("%s %s", kind, errmsg.Count(len(e.Folders), "folder"))
	case scanner.Progress:
		fmt.Fprintf(p.progress, "\r%s / %s files, %s new",
			humanize.Comma(int64(e.Processed)), humanize.Comma(int64(e.Total)), humanize.Comma(int64(e.Found)))
		p.inLine = true
	case scanner.FolderCompleted:
		if e.Err != nil {
			return
		}
		s := e.Summary
		p.line("%s: %d new, %d updated, %d unchanged, %d removed",
			e.Folder.Path, s.Inserted, s.Updated, s.Skipped, s.Removed)
	case scanner.Message:
		p.line("[%s] %s", e.Level, e.Text)
	case scanner.Completed:
		status := "Scan complete"
		if e.Cancelled {
			status = "Scan cancelled"
		}
		if e.Err != nil {
			status = "Scan halted"
		}
		p.line("%s: %s in %s", status, errmsg.Count(e.Summary.Processed, "file"), e.Summary.Elapsed.Round(time.Millisecond))
	}
}

// line ends a pending progress line before printing.
func (p *printer) line(format string, args ...any) {
	if p.inLine {
		fmt.Fprintln(p.progress)
		p.inLine = false
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}
