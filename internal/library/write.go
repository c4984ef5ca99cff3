package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbutil "github.com/llehouerou/shelf/internal/db"
)

// TrackWrite is a new or changed track to store.
type TrackWrite struct {
	ID     int64 // 0 inserts a new track
	Path   string
	Mtime  int64
	Fields TrackFields

	// Artwork is backfilled onto the track's album and artists when they
	// have none yet.
	Artwork []byte
}

// Touch refreshes the stored modification time of an unchanged track.
type Touch struct {
	ID    int64
	Mtime int64
}

// Batch is the set of writes of one scan chunk, applied atomically.
type Batch struct {
	Writes  []TrackWrite
	Touches []Touch
}

// Rejected is a write skipped because it referenced no valid track row.
type Rejected struct {
	Path string
	Err  error
}

// BatchResult reports the outcome of ApplyBatch.
type BatchResult struct {
	// IDs holds the track ID of each write, 0 for rejected writes.
	IDs      []int64
	Rejected []Rejected
}

// ApplyBatch stores a chunk of track writes in one transaction: the track
// rows, their album, artist and genre relationships, search rows and
// artwork backfill either all commit or none do.
//
// A write for a track ID that does not resolve to a row is rejected on its
// own and reported in the result; every other error rolls back the chunk.
func (l *Library) ApplyBatch(ctx context.Context, folderID int64, b Batch) (BatchResult, error) {
	result := BatchResult{IDs: make([]int64, len(b.Writes))}

	err := dbutil.WithTxContext(ctx, l.db, func(tx *sql.Tx) error {
		result.Rejected = nil
		now := time.Now().Unix()
		updated := false

		for i, w := range b.Writes {
			id, err := writeTrack(ctx, tx, folderID, w, now)
			if errors.Is(err, ErrInvalidTrackID) {
				result.IDs[i] = 0
				result.Rejected = append(result.Rejected, Rejected{Path: w.Path, Err: err})
				continue
			}
			if err != nil {
				return fmt.Errorf("%s: %w", w.Path, err)
			}
			result.IDs[i] = id
			if w.ID != 0 {
				updated = true
			}
		}

		for _, t := range b.Touches {
			if _, err := tx.ExecContext(ctx, `UPDATE tracks SET mtime = ? WHERE id = ?`, t.Mtime, t.ID); err != nil {
				return err
			}
		}

		// An update may have moved a track away from its last album or
		// artist, and a rejected write may have created an unused album
		if updated || len(result.Rejected) > 0 {
			return cleanupOrphans(ctx, tx)
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}
	return result, nil
}

// writeTrack writes one track row and rewires everything hanging off it.
func writeTrack(ctx context.Context, ex dbutil.Executor, folderID int64, w TrackWrite, now int64) (int64, error) {
	if w.ID < 0 {
		return 0, ErrInvalidTrackID
	}

	albumID, err := resolveAlbum(ctx, ex, w.Fields)
	if err != nil {
		return 0, fmt.Errorf("resolve album: %w", err)
	}

	id := w.ID
	if id == 0 {
		id, err = insertTrack(ctx, ex, folderID, albumID, w, now)
	} else {
		err = updateTrack(ctx, ex, albumID, w, now)
	}
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, ErrInvalidTrackID
	}

	artistIDs, err := writeTrackArtists(ctx, ex, id, w.Fields.Artist)
	if err != nil {
		return 0, fmt.Errorf("write artists: %w", err)
	}
	if err := writeTrackGenres(ctx, ex, id, w.Fields.Genre); err != nil {
		return 0, fmt.Errorf("write genres: %w", err)
	}

	var albumArtistIDs []int64
	if albumID.Valid {
		albumArtistIDs, err = writeAlbumArtists(ctx, ex, albumID.Int64, w.Fields.albumArtistName())
		if err != nil {
			return 0, fmt.Errorf("write album artists: %w", err)
		}
	}

	if err := upsertTrackFTS(ctx, ex, id, w.Path, w.Fields); err != nil {
		return 0, fmt.Errorf("update search index: %w", err)
	}

	if len(w.Artwork) > 0 {
		if err := backfillArtwork(ctx, ex, albumID, append(artistIDs, albumArtistIDs...), w.Artwork); err != nil {
			return 0, fmt.Errorf("backfill artwork: %w", err)
		}
	}

	return id, nil
}

func insertTrack(ctx context.Context, ex dbutil.Executor, folderID int64, albumID sql.NullInt64, w TrackWrite, now int64) (int64, error) {
	f := w.Fields
	res, err := ex.ExecContext(ctx, `
		INSERT INTO tracks (
			folder_id, album_id, path, mtime,
			title, artist, album, album_artist, composer, genre,
			year, track_number, track_total, disc_number, disc_total,
			duration_ms, bitrate, sample_rate, bit_depth, channels, codec, file_size, has_artwork, extra,
			added_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		folderID, albumID, w.Path, w.Mtime,
		f.Title, f.Artist, f.Album, f.AlbumArtist, f.Composer, f.Genre,
		dbutil.IntOrNull(f.Year), dbutil.IntOrNull(f.TrackNumber), dbutil.IntOrNull(f.TrackTotal),
		dbutil.IntOrNull(f.DiscNumber), dbutil.IntOrNull(f.DiscTotal),
		f.DurationMs, f.Bitrate, f.SampleRate, f.BitDepth, f.Channels, f.Codec, f.FileSize,
		dbutil.BoolInt(f.HasArtwork), f.Extra,
		now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// updateTrack rewrites the file-derived columns of a track. User
// attributes and duplicate markings are left alone.
func updateTrack(ctx context.Context, ex dbutil.Executor, albumID sql.NullInt64, w TrackWrite, now int64) error {
	f := w.Fields
	res, err := ex.ExecContext(ctx, `
		UPDATE tracks SET
			album_id = ?, mtime = ?,
			title = ?, artist = ?, album = ?, album_artist = ?, composer = ?, genre = ?,
			year = ?, track_number = ?, track_total = ?, disc_number = ?, disc_total = ?,
			duration_ms = ?, bitrate = ?, sample_rate = ?, bit_depth = ?, channels = ?, codec = ?,
			file_size = ?, has_artwork = ?, extra = ?,
			updated_at = ?
		WHERE id = ? AND path = ?
	`,
		albumID, w.Mtime,
		f.Title, f.Artist, f.Album, f.AlbumArtist, f.Composer, f.Genre,
		dbutil.IntOrNull(f.Year), dbutil.IntOrNull(f.TrackNumber), dbutil.IntOrNull(f.TrackTotal),
		dbutil.IntOrNull(f.DiscNumber), dbutil.IntOrNull(f.DiscTotal),
		f.DurationMs, f.Bitrate, f.SampleRate, f.BitDepth, f.Channels, f.Codec,
		f.FileSize, dbutil.BoolInt(f.HasArtwork), f.Extra,
		now,
		w.ID, w.Path,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTrackID
	}
	return nil
}

// resolveAlbum looks up or creates the album of a track. Tracks without an
// album title have no album.
func resolveAlbum(ctx context.Context, ex dbutil.Executor, f TrackFields) (sql.NullInt64, error) {
	if f.Album == "" {
		return sql.NullInt64{}, nil
	}
	artist := f.albumArtistName()

	var id int64
	err := ex.QueryRowContext(ctx, `
		INSERT INTO albums (title, artist_name, normalized_title, normalized_artist, year)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(normalized_title, normalized_artist) DO UPDATE SET
			year = CASE
				WHEN excluded.year IS NOT NULL AND excluded.year > COALESCE(albums.year, 0) THEN excluded.year
				ELSE albums.year
			END
		RETURNING id
	`, f.Album, artist, NormalizeName(f.Album), NormalizeName(artist), dbutil.IntOrNull(f.Year)).Scan(&id)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

func resolveArtist(ctx context.Context, ex dbutil.Executor, name string) (int64, error) {
	var id int64
	err := ex.QueryRowContext(ctx, `
		INSERT INTO artists (name, normalized_name) VALUES (?, ?)
		ON CONFLICT(normalized_name) DO UPDATE SET name = artists.name
		RETURNING id
	`, name, NormalizeName(name)).Scan(&id)
	return id, err
}

func resolveGenre(ctx context.Context, ex dbutil.Executor, name string) (int64, error) {
	var id int64
	err := ex.QueryRowContext(ctx, `
		INSERT INTO genres (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET name = genres.name
		RETURNING id
	`, name).Scan(&id)
	return id, err
}

// writeTrackArtists replaces the artist credits of a track and returns the
// credited artist IDs.
func writeTrackArtists(ctx context.Context, ex dbutil.Executor, trackID int64, artist string) ([]int64, error) {
	if _, err := ex.ExecContext(ctx, `DELETE FROM track_artists WHERE track_id = ?`, trackID); err != nil {
		return nil, err
	}

	var ids []int64
	for pos, c := range ParseArtistCredits(artist) {
		artistID, err := resolveArtist(ctx, ex, c.Name)
		if err != nil {
			return nil, err
		}
		if _, err := ex.ExecContext(ctx, `
			INSERT OR IGNORE INTO track_artists (track_id, artist_id, role, position) VALUES (?, ?, ?, ?)
		`, trackID, artistID, c.Role, pos); err != nil {
			return nil, err
		}
		ids = append(ids, artistID)
	}
	return ids, nil
}

func writeTrackGenres(ctx context.Context, ex dbutil.Executor, trackID int64, genre string) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM track_genres WHERE track_id = ?`, trackID); err != nil {
		return err
	}
	for _, name := range SplitGenres(genre) {
		genreID, err := resolveGenre(ctx, ex, name)
		if err != nil {
			return err
		}
		if _, err := ex.ExecContext(ctx, `
			INSERT OR IGNORE INTO track_genres (track_id, genre_id) VALUES (?, ?)
		`, trackID, genreID); err != nil {
			return err
		}
	}
	return nil
}

// writeAlbumArtists credits the album artist on an album. Albums are shared
// between tracks, so credits accumulate and are never cleared here.
func writeAlbumArtists(ctx context.Context, ex dbutil.Executor, albumID int64, artist string) ([]int64, error) {
	var ids []int64
	for pos, c := range ParseArtistCredits(artist) {
		artistID, err := resolveArtist(ctx, ex, c.Name)
		if err != nil {
			return nil, err
		}
		if _, err := ex.ExecContext(ctx, `
			INSERT OR IGNORE INTO album_artists (album_id, artist_id, role, position) VALUES (?, ?, ?, ?)
		`, albumID, artistID, c.Role, pos); err != nil {
			return nil, err
		}
		ids = append(ids, artistID)
	}
	return ids, nil
}

// backfillArtwork sets artwork on the album and artists that have none.
func backfillArtwork(ctx context.Context, ex dbutil.Executor, albumID sql.NullInt64, artistIDs []int64, artwork []byte) error {
	if albumID.Valid {
		if _, err := ex.ExecContext(ctx, `
			UPDATE albums SET artwork = ? WHERE id = ? AND artwork IS NULL
		`, artwork, albumID.Int64); err != nil {
			return err
		}
	}
	for _, id := range artistIDs {
		if _, err := ex.ExecContext(ctx, `
			UPDATE artists SET artwork = ? WHERE id = ? AND artwork IS NULL
		`, artwork, id); err != nil {
			return err
		}
	}
	return nil
}
