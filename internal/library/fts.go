package library

import (
	"context"
	"database/sql"
	"strings"

	dbutil "github.com/llehouerou/shelf/internal/db"
)

// searchText is the indexed text of a track.
func searchText(f TrackFields) string {
	parts := []string{f.Title, f.Artist, f.Album}
	if f.AlbumArtist != "" && f.AlbumArtist != f.Artist {
		parts = append(parts, f.AlbumArtist)
	}
	parts = append(parts, f.Composer, f.Genre)

	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// upsertTrackFTS replaces the search row of a track.
func upsertTrackFTS(ctx context.Context, ex dbutil.Executor, trackID int64, path string, f TrackFields) error {
	if err := deleteTrackFTS(ctx, ex, trackID); err != nil {
		return err
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO library_search_fts (search_text, track_id, title, artist, album, path)
		VALUES (?, ?, ?, ?, ?, ?)
	`, searchText(f), trackID, f.Title, f.Artist, f.Album, path)
	return err
}

func deleteTrackFTS(ctx context.Context, ex dbutil.Executor, trackID int64) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM library_search_fts WHERE track_id = ?`, trackID)
	return err
}

// EnsureFTSIndex rebuilds the search index only if it's empty while the
// library has tracks.
func (l *Library) EnsureFTSIndex(ctx context.Context) error {
	var indexed, tracks int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM library_search_fts`).Scan(&indexed); err != nil {
		return err
	}
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&tracks); err != nil {
		return err
	}
	if indexed == 0 && tracks > 0 {
		return l.RebuildFTSIndex(ctx)
	}
	return nil
}

// RebuildFTSIndex rebuilds the search index from the tracks table.
func (l *Library) RebuildFTSIndex(ctx context.Context) error {
	rows, err := l.db.QueryContext(ctx, `SELECT `+trackColumns+` FROM tracks`)
	if err != nil {
		return err
	}
	var tracks []*Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			rows.Close()
			return err
		}
		tracks = append(tracks, t)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return dbutil.WithTxContext(ctx, l.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM library_search_fts`); err != nil {
			return err
		}
		for _, t := range tracks {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO library_search_fts (search_text, track_id, title, artist, album, path)
				VALUES (?, ?, ?, ?, ?, ?)
			`, searchText(t.TrackFields), t.ID, t.Title, t.Artist, t.Album, t.Path); err != nil {
				return err
			}
		}
		return nil
	})
}

// Search performs a full-text search using the FTS5 trigram index and
// returns matching tracks sorted by relevance.
func (l *Library) Search(ctx context.Context, query string, limit int) ([]TrackSummary, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT t.id, t.path, t.title, t.artist, t.album, t.duration_ms, t.favorite, t.is_duplicate
		FROM library_search_fts f
		JOIN tracks t ON t.id = f.track_id
		WHERE f.search_text MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, escapeFTSQuery(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// escapeFTSQuery escapes a query string for FTS5 trigram search.
// Each word is wrapped in quotes for substring matching, with implicit AND between words.
func escapeFTSQuery(query string) string {
	words := strings.Fields(query)
	if len(words) == 0 {
		return `""`
	}

	quoted := make([]string, len(words))
	for i, word := range words {
		escaped := strings.ReplaceAll(word, `"`, `""`)
		quoted[i] = `"` + escaped + `"`
	}

	// Join with space (implicit AND in FTS5)
	return strings.Join(quoted, " ")
}
