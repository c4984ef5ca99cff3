package library

import (
	"context"
	"database/sql"

	dbutil "github.com/llehouerou/shelf/internal/db"
	"github.com/llehouerou/shelf/internal/discovery"
)

// Prune deletes the tracks of a folder whose paths are not in present,
// along with their search rows and any albums, artists or genres left
// without tracks. Tracks at or below an unreadable path are kept. It
// returns the number of tracks removed.
func (l *Library) Prune(ctx context.Context, folderID int64, present, unreadable []string) (int, error) {
	keep := make(map[string]bool, len(present))
	for _, p := range present {
		keep[p] = true
	}

	rows, err := l.db.QueryContext(ctx, `SELECT id, path FROM tracks WHERE folder_id = ?`, folderID)
	if err != nil {
		return 0, err
	}
	var stale []int64
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close()
			return 0, err
		}
		if !keep[path] && !discovery.Within(path, unreadable) {
			stale = append(stale, id)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if len(stale) == 0 {
		return 0, nil
	}

	err = dbutil.WithTxContext(ctx, l.db, func(tx *sql.Tx) error {
		for _, id := range stale {
			if err := deleteTrackFTS(ctx, tx, id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id); err != nil {
				return err
			}
		}
		return cleanupOrphans(ctx, tx)
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}

// cleanupOrphans removes albums, artists and genres no longer referenced.
func cleanupOrphans(ctx context.Context, ex dbutil.Executor) error {
	stmts := []string{
		`DELETE FROM albums WHERE id NOT IN (SELECT album_id FROM tracks WHERE album_id IS NOT NULL)`,
		// Albums go first: their credits cascade away with them
		`DELETE FROM artists
		 WHERE id NOT IN (SELECT artist_id FROM track_artists)
		   AND id NOT IN (SELECT artist_id FROM album_artists)`,
		`DELETE FROM genres WHERE id NOT IN (SELECT genre_id FROM track_genres)`,
	}
	for _, stmt := range stmts {
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RefreshCounts recomputes the cached track and album counts of folders,
// albums and artists.
func (l *Library) RefreshCounts(ctx context.Context) error {
	return dbutil.WithTxContext(ctx, l.db, func(tx *sql.Tx) error {
		stmts := []string{
			`UPDATE folders SET track_count = (
				SELECT COUNT(*) FROM tracks WHERE tracks.folder_id = folders.id)`,
			`UPDATE albums SET track_count = (
				SELECT COUNT(*) FROM tracks WHERE tracks.album_id = albums.id)`,
			`UPDATE artists SET
				track_count = (SELECT COUNT(DISTINCT track_id) FROM track_artists WHERE artist_id = artists.id),
				album_count = (SELECT COUNT(DISTINCT album_id) FROM album_artists WHERE artist_id = artists.id)`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
