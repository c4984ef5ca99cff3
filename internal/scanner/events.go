package scanner

import (
	"time"

	"github.com/llehouerou/shelf/internal/library"
	"github.com/llehouerou/shelf/internal/scanstate"
)

// State is the lifecycle state of the scanner.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Event is anything the scanner publishes.
type Event interface {
	event()
}

// Started is published when a batch begins.
type Started struct {
	// Initial is set when the library held no tracks before the batch.
	Initial bool
	Hard    bool
	Folders []library.Folder
}

// Progress carries the global counters of the running batch. It is rate
// limited.
type Progress struct {
	scanstate.Snapshot
}

// FolderCompleted is published after each folder of a batch, including
// folders that could not be scanned (Err set).
type FolderCompleted struct {
	Folder  library.Folder
	Summary scanstate.FolderSnapshot
	Err     error
}

// Completed is published when a batch is over.
type Completed struct {
	Summary   Summary
	Cancelled bool
	// Err is set when a systemic store failure halted the batch.
	Err error
}

// Level is the severity of a Message.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Message is a user-facing notice about a notable outcome.
type Message struct {
	Level Level
	Text  string
}

func (Started) event()         {}
func (Progress) event()        {}
func (FolderCompleted) event() {}
func (Completed) event()       {}
func (Message) event()         {}

// Summary aggregates the folder results of a batch.
type Summary struct {
	Folders     int
	Total       int
	Processed   int
	Inserted    int
	Updated     int
	Skipped     int
	Removed     int
	Failed      int
	Unsupported int
	Duplicates  int
	Elapsed     time.Duration
}

func (s *Summary) add(f scanstate.FolderSnapshot) {
	s.Folders++
	s.Total += f.Total
	s.Processed += f.Processed
	s.Inserted += f.Inserted
	s.Updated += f.Updated
	s.Skipped += f.Skipped
	s.Removed += f.Removed
	s.Failed += f.Failed()
	s.Unsupported += len(f.Unsupported)
}

// Sink receives scanner events. Publish is called from the scanning
// goroutine and must not block for long.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Publish calls f(e).
func (f SinkFunc) Publish(e Event) { f(e) }

type nopSink struct{}

func (nopSink) Publish(Event) {}

const eventBufferSize = 64

// Subscription is a Sink delivering events over buffered channels. Sends
// never block: events are dropped when a buffer is full.
type Subscription struct {
	Started         <-chan Started
	Progress        <-chan Progress
	FolderCompleted <-chan FolderCompleted
	Completed       <-chan Completed
	Messages        <-chan Message
	Done            <-chan struct{}

	startedCh   chan Started
	progressCh  chan Progress
	folderCh    chan FolderCompleted
	completedCh chan Completed
	messageCh   chan Message
	doneCh      chan struct{}
}

// NewSubscription creates a subscription with buffered channels.
func NewSubscription() *Subscription {
	s := &Subscription{
		startedCh:   make(chan Started, eventBufferSize),
		progressCh:  make(chan Progress, eventBufferSize),
		folderCh:    make(chan FolderCompleted, eventBufferSize),
		completedCh: make(chan Completed, eventBufferSize),
		messageCh:   make(chan Message, eventBufferSize),
		doneCh:      make(chan struct{}),
	}
	s.Started = s.startedCh
	s.Progress = s.progressCh
	s.FolderCompleted = s.folderCh
	s.Completed = s.completedCh
	s.Messages = s.messageCh
	s.Done = s.doneCh
	return s
}

// Close signals subscribers to stop by closing Done.
func (s *Subscription) Close() {
	close(s.doneCh)
}

// Publish routes e to its channel (non-blocking).
func (s *Subscription) Publish(e Event) {
	switch e := e.(type) {
	case Started:
		send(s.startedCh, e)
	case Progress:
		send(s.progressCh, e)
	case FolderCompleted:
		send(s.folderCh, e)
	case Completed:
		send(s.completedCh, e)
	case Message:
		send(s.messageCh, e)
	}
}

func send[T any](ch chan T, e T) {
	select {
	case ch <- e:
	default:
		// Drop if buffer full
	}
}
