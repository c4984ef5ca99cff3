// Package library is the persistent store of the music library: folders,
// tracks, and the albums, artists and genres they resolve to.
package library

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a folder or track does not exist.
	ErrNotFound = errors.New("not found")
	// ErrFolderExists is returned when adding an already registered folder.
	ErrFolderExists = errors.New("folder already registered")
	// ErrFolderOverlap is returned when a folder would contain, or be
	// contained by, a registered folder.
	ErrFolderOverlap = errors.New("folder overlaps a registered folder")
	// ErrInvalidTrackID marks a write for a track without a resolved row.
	ErrInvalidTrackID = errors.New("invalid track id")
)

// Folder is a registered library root.
type Folder struct {
	ID          int64
	Path        string
	Name        string
	TrackCount  int
	ContentHash string
	Bookmark    []byte
	AddedAt     time.Time
	UpdatedAt   time.Time // zero until the first scan
}

// Track is the full projection of a track row, used by the write path.
type Track struct {
	ID       int64
	FolderID int64
	AlbumID  int64 // 0 when the track has no album
	Path     string
	Mtime    int64 // file modification time, Unix nanoseconds

	TrackFields

	Favorite     bool
	PlayCount    int
	LastPlayedAt time.Time

	IsDuplicate      bool
	PrimaryTrackID   int64
	DuplicateGroupID string

	AddedAt   time.Time
	UpdatedAt time.Time
}

// Duration returns the track length.
func (t *Track) Duration() time.Duration {
	return time.Duration(t.DurationMs) * time.Millisecond
}

// TrackSummary is the lightweight projection used for listings and search.
type TrackSummary struct {
	ID          int64
	Path        string
	Title       string
	Artist      string
	Album       string
	Duration    time.Duration
	Favorite    bool
	IsDuplicate bool
}

// Existing is the stored state of a track that a scan compares files to.
type Existing struct {
	ID     int64
	Mtime  int64
	Fields TrackFields
}

// Stats holds library-wide counts.
type Stats struct {
	Folders         int
	Tracks          int
	Albums          int
	Artists         int
	Genres          int
	Duplicates      int
	DuplicateGroups int
}

type Library struct {
	db *sql.DB
}

func New(db *sql.DB) *Library {
	return &Library{db: db}
}

// TrackCount returns the number of tracks in the library.
func (l *Library) TrackCount(ctx context.Context) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&count)
	return count, err
}

// Stats returns library-wide counts.
func (l *Library) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := l.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM folders),
			(SELECT COUNT(*) FROM tracks),
			(SELECT COUNT(*) FROM albums),
			(SELECT COUNT(*) FROM artists),
			(SELECT COUNT(*) FROM genres),
			(SELECT COUNT(*) FROM tracks WHERE is_duplicate = 1),
			(SELECT COUNT(DISTINCT duplicate_group_id) FROM tracks WHERE duplicate_group_id IS NOT NULL)
	`).Scan(&s.Folders, &s.Tracks, &s.Albums, &s.Artists, &s.Genres, &s.Duplicates, &s.DuplicateGroups)
	return s, err
}

// Setting returns the value stored under key.
func (l *Library) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := l.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetSetting stores value under key.
func (l *Library) SetSetting(ctx context.Context, key, value string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func unixOrZero(n sql.NullInt64) time.Time {
	if !n.Valid || n.Int64 == 0 {
		return time.Time{}
	}
	return time.Unix(n.Int64, 0)
}
