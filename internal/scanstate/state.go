// Package scanstate tracks scan counters for one folder and for a whole
// multi-folder batch. Counters may be updated from any goroutine.
package scanstate

import (
	"sync"

	"github.com/llehouerou/shelf/internal/discovery"
)

// Failure is a file that could not be processed.
type Failure struct {
	Path string
	Err  error
}

// FolderSnapshot is a consistent copy of a FolderState.
type FolderSnapshot struct {
	FolderID  int64
	Path      string
	Total     int
	Processed int
	Inserted  int
	Updated   int
	Skipped   int
	Removed   int
	Failures  []Failure
	// Unsupported are files skipped because of their format.
	Unsupported []discovery.Skipped
}

// Failed returns the number of failed files.
func (s FolderSnapshot) Failed() int {
	return len(s.Failures)
}

// FolderState holds the counters of one folder scan.
type FolderState struct {
	mu sync.Mutex
	s  FolderSnapshot
}

// NewFolderState returns the state of a folder scan over total files.
func NewFolderState(folderID int64, path string, total int) *FolderState {
	return &FolderState{s: FolderSnapshot{FolderID: folderID, Path: path, Total: total}}
}

// RecordInsert counts a new track.
func (f *FolderState) RecordInsert() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.Processed++
	f.s.Inserted++
}

// RecordUpdate counts a changed track.
func (f *FolderState) RecordUpdate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.Processed++
	f.s.Updated++
}

// RecordSkip counts n unchanged files.
func (f *FolderState) RecordSkip(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.Processed += n
	f.s.Skipped += n
}

// RecordFailure counts a file that failed extraction or writing.
func (f *FolderState) RecordFailure(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.Processed++
	f.s.Failures = append(f.s.Failures, Failure{Path: path, Err: err})
}

// RecordRemoved counts tracks deleted because their file disappeared.
func (f *FolderState) RecordRemoved(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.Removed += n
}

// AddUnsupported records files skipped for their format.
func (f *FolderState) AddUnsupported(skipped []discovery.Skipped) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.Unsupported = append(f.s.Unsupported, skipped...)
}

// Snapshot returns a copy of the counters. Processed never exceeds Total.
func (f *FolderState) Snapshot() FolderSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.s
	s.Processed = min(s.Processed, s.Total)
	s.Failures = append([]Failure(nil), f.s.Failures...)
	s.Unsupported = append([]discovery.Skipped(nil), f.s.Unsupported...)
	return s
}

// Snapshot is a consistent copy of the Global counters.
type Snapshot struct {
	Total     int
	Processed int
	// Found counts tracks newly added to the library.
	Found   int
	Initial bool
}

// Fraction returns the completed share in [0, 1].
func (s Snapshot) Fraction() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Processed) / float64(s.Total)
}

// Global holds the counters spanning a multi-folder batch.
type Global struct {
	mu sync.Mutex
	s  Snapshot
}

// NewGlobal returns the state of a batch. initial marks the first scan of
// an empty library.
func NewGlobal(initial bool) *Global {
	return &Global{s: Snapshot{Initial: initial}}
}

// AddTotal grows the number of files the batch will process.
func (g *Global) AddTotal(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.s.Total += n
}

// AddProcessed counts n processed files.
func (g *Global) AddProcessed(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.s.Processed += n
}

// AddFound counts n newly added tracks.
func (g *Global) AddFound(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.s.Found += n
}

// Snapshot returns a copy of the counters. Processed never exceeds Total.
func (g *Global) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.s
	s.Processed = min(s.Processed, s.Total)
	return s
}
