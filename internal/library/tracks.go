package library

import (
	"context"
	"database/sql"
	"errors"
	"time"

	dbutil "github.com/llehouerou/shelf/internal/db"
)

const trackColumns = `
	id, folder_id, album_id, path, mtime,
	title, artist, album, album_artist, composer, genre,
	year, track_number, track_total, disc_number, disc_total,
	duration_ms, bitrate, sample_rate, bit_depth, channels, codec, file_size, has_artwork, extra,
	favorite, play_count, last_played_at,
	is_duplicate, primary_track_id, duplicate_group_id,
	added_at, updated_at`

const summaryColumns = `id, path, title, artist, album, duration_ms, favorite, is_duplicate`

// TrackByPath returns the full projection of the track at path.
func (l *Library) TrackByPath(ctx context.Context, path string) (*Track, error) {
	return scanTrackRow(l.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE path = ?`, path))
}

// TrackByID returns the full projection of a track.
func (l *Library) TrackByID(ctx context.Context, id int64) (*Track, error) {
	return scanTrackRow(l.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id))
}

// ExistingTracks returns the stored state of every track of a folder,
// keyed by path.
func (l *Library) ExistingTracks(ctx context.Context, folderID int64) (map[string]Existing, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE folder_id = ?`, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]Existing)
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		existing[t.Path] = Existing{ID: t.ID, Mtime: t.Mtime, Fields: t.TrackFields}
	}
	return existing, rows.Err()
}

func scanTrack(row rowScanner) (*Track, error) {
	var t Track
	var albumID, year, trackNum, trackTotal, discNum, discTotal sql.NullInt64
	var lastPlayed, primaryID, addedAt, updatedAt sql.NullInt64
	var groupID sql.NullString
	var hasArtwork, favorite, isDuplicate int

	err := row.Scan(
		&t.ID, &t.FolderID, &albumID, &t.Path, &t.Mtime,
		&t.Title, &t.Artist, &t.Album, &t.AlbumArtist, &t.Composer, &t.Genre,
		&year, &trackNum, &trackTotal, &discNum, &discTotal,
		&t.DurationMs, &t.Bitrate, &t.SampleRate, &t.BitDepth, &t.Channels, &t.Codec, &t.FileSize, &hasArtwork, &t.Extra,
		&favorite, &t.PlayCount, &lastPlayed,
		&isDuplicate, &primaryID, &groupID,
		&addedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.AlbumID = dbutil.NullInt64Value(albumID)
	t.Year = int(dbutil.NullInt64Value(year))
	t.TrackNumber = int(dbutil.NullInt64Value(trackNum))
	t.TrackTotal = int(dbutil.NullInt64Value(trackTotal))
	t.DiscNumber = int(dbutil.NullInt64Value(discNum))
	t.DiscTotal = int(dbutil.NullInt64Value(discTotal))
	t.HasArtwork = hasArtwork != 0
	t.Favorite = favorite != 0
	t.LastPlayedAt = unixOrZero(lastPlayed)
	t.IsDuplicate = isDuplicate != 0
	t.PrimaryTrackID = dbutil.NullInt64Value(primaryID)
	t.DuplicateGroupID = dbutil.NullStringValue(groupID)
	t.AddedAt = unixOrZero(addedAt)
	t.UpdatedAt = unixOrZero(updatedAt)
	return &t, nil
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func scanTrackRow(row *sql.Row) (*Track, error) {
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func scanSummaries(rows *sql.Rows) ([]TrackSummary, error) {
	var out []TrackSummary
	for rows.Next() {
		var s TrackSummary
		var durationMs int64
		var favorite, isDuplicate int
		if err := rows.Scan(&s.ID, &s.Path, &s.Title, &s.Artist, &s.Album, &durationMs, &favorite, &isDuplicate); err != nil {
			return nil, err
		}
		s.Duration = msToDuration(durationMs)
		s.Favorite = favorite != 0
		s.IsDuplicate = isDuplicate != 0
		out = append(out, s)
	}
	return out, rows.Err()
}
