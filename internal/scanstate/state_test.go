package scanstate

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llehouerou/shelf/internal/discovery"
)

func TestGlobal_ConcurrentIncrements(t *testing.T) {
	const workers = 64
	const perWorker = 250

	g := NewGlobal(false)
	g.AddTotal(workers * perWorker)

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for range perWorker {
				g.AddProcessed(1)
			}
		})
	}
	wg.Wait()

	s := g.Snapshot()
	assert.Equal(t, workers*perWorker, s.Processed)
	assert.Equal(t, workers*perWorker, s.Total)
	assert.InDelta(t, 1.0, s.Fraction(), 0.0001)
}

func TestGlobal_SnapshotClampsProcessed(t *testing.T) {
	g := NewGlobal(true)
	g.AddTotal(2)
	g.AddProcessed(5)
	g.AddFound(1)

	s := g.Snapshot()
	assert.Equal(t, 2, s.Processed)
	assert.Equal(t, 1, s.Found)
	assert.True(t, s.Initial)
}

func TestSnapshot_FractionEmpty(t *testing.T) {
	assert.Zero(t, Snapshot{}.Fraction())
}

func TestFolderState_Counters(t *testing.T) {
	f := NewFolderState(7, "/music", 5)
	f.RecordInsert()
	f.RecordUpdate()
	f.RecordSkip(2)
	f.RecordFailure("/music/bad.flac", errors.New("corrupt"))
	f.RecordRemoved(3)
	f.AddUnsupported([]discovery.Skipped{{Path: "/music/a.wma", Ext: "WMA"}})

	s := f.Snapshot()
	assert.Equal(t, int64(7), s.FolderID)
	assert.Equal(t, 5, s.Processed)
	assert.Equal(t, 1, s.Inserted)
	assert.Equal(t, 1, s.Updated)
	assert.Equal(t, 2, s.Skipped)
	assert.Equal(t, 3, s.Removed)
	assert.Equal(t, 1, s.Failed())
	assert.Equal(t, "/music/bad.flac", s.Failures[0].Path)
	assert.Len(t, s.Unsupported, 1)
}

func TestFolderState_SnapshotIsCopy(t *testing.T) {
	f := NewFolderState(1, "/music", 10)
	f.RecordFailure("/music/a.mp3", errors.New("x"))

	s := f.Snapshot()
	f.RecordFailure("/music/b.mp3", errors.New("y"))

	assert.Len(t, s.Failures, 1)
	assert.Len(t, f.Snapshot().Failures, 2)
}

func TestFolderState_ConcurrentRecords(t *testing.T) {
	const n = 500
	f := NewFolderState(1, "/music", n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			switch i % 3 {
			case 0:
				f.RecordInsert()
			case 1:
				f.RecordSkip(1)
			default:
				f.RecordFailure("x", errors.New("x"))
			}
		})
	}
	wg.Wait()

	s := f.Snapshot()
	assert.Equal(t, n, s.Processed)
	assert.Equal(t, n, s.Inserted+s.Skipped+s.Failed())
}
