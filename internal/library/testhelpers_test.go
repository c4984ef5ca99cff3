package library

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	dbutil "github.com/llehouerou/shelf/internal/db"
)

// setupTestLibrary opens a fresh library database in a temp directory.
func setupTestLibrary(t *testing.T) (*Library, *sql.DB) {
	t.Helper()

	db, err := dbutil.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return New(db), db
}

func addTestFolder(t *testing.T, lib *Library, path string) Folder {
	t.Helper()
	f, err := lib.AddFolder(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("AddFolder(%q) failed: %v", path, err)
	}
	return f
}

func testFields(title, artist, album string) TrackFields {
	return TrackFields{
		Title:      title,
		Artist:     artist,
		Album:      album,
		Genre:      "Rock",
		Year:       2001,
		DurationMs: 200_000,
		Bitrate:    320,
		SampleRate: 44100,
		Channels:   2,
		Codec:      "MP3",
		FileSize:   8_000_000,
	}
}

// insertTestTracks inserts one track per write and returns their IDs.
func insertTestTracks(t *testing.T, lib *Library, folderID int64, writes ...TrackWrite) []int64 {
	t.Helper()
	res, err := lib.ApplyBatch(context.Background(), folderID, Batch{Writes: writes})
	if err != nil {
		t.Fatalf("ApplyBatch failed: %v", err)
	}
	if len(res.Rejected) != 0 {
		t.Fatalf("ApplyBatch rejected writes: %v", res.Rejected)
	}
	return res.IDs
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count query %q failed: %v", query, err)
	}
	return n
}
