package db

import (
	"database/sql"
)

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS folders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			track_count INTEGER NOT NULL DEFAULT 0,
			content_hash TEXT,
			bookmark BLOB,
			added_at INTEGER NOT NULL,
			updated_at INTEGER
		);

		CREATE TABLE IF NOT EXISTS artists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			normalized_name TEXT NOT NULL UNIQUE,
			artwork BLOB,
			track_count INTEGER NOT NULL DEFAULT 0,
			album_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS albums (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			artist_name TEXT NOT NULL,
			normalized_title TEXT NOT NULL,
			normalized_artist TEXT NOT NULL,
			year INTEGER,
			artwork BLOB,
			track_count INTEGER NOT NULL DEFAULT 0,
			UNIQUE(normalized_title, normalized_artist)
		);

		CREATE TABLE IF NOT EXISTS genres (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE
		);

		CREATE TABLE IF NOT EXISTS tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			folder_id INTEGER NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
			album_id INTEGER REFERENCES albums(id) ON DELETE SET NULL,
			path TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			artist TEXT NOT NULL DEFAULT '',
			album TEXT NOT NULL DEFAULT '',
			album_artist TEXT NOT NULL DEFAULT '',
			composer TEXT NOT NULL DEFAULT '',
			genre TEXT NOT NULL DEFAULT '',
			year INTEGER,
			track_number INTEGER,
			track_total INTEGER,
			disc_number INTEGER,
			disc_total INTEGER,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			bitrate INTEGER NOT NULL DEFAULT 0,
			sample_rate INTEGER NOT NULL DEFAULT 0,
			bit_depth INTEGER NOT NULL DEFAULT 0,
			channels INTEGER NOT NULL DEFAULT 0,
			codec TEXT NOT NULL DEFAULT '',
			file_size INTEGER NOT NULL DEFAULT 0,
			mtime INTEGER NOT NULL,
			has_artwork INTEGER NOT NULL DEFAULT 0,
			favorite INTEGER NOT NULL DEFAULT 0,
			play_count INTEGER NOT NULL DEFAULT 0,
			last_played_at INTEGER,
			is_duplicate INTEGER NOT NULL DEFAULT 0,
			primary_track_id INTEGER REFERENCES tracks(id) ON DELETE SET NULL,
			duplicate_group_id TEXT,
			extra TEXT NOT NULL DEFAULT '',
			added_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tracks_folder ON tracks(folder_id);
		CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album_id);
		CREATE INDEX IF NOT EXISTS idx_tracks_duplicate_group ON tracks(duplicate_group_id);
		CREATE INDEX IF NOT EXISTS idx_tracks_primary ON tracks(primary_track_id);

		CREATE TABLE IF NOT EXISTS track_artists (
			track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
			artist_id INTEGER NOT NULL REFERENCES artists(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (track_id, artist_id, role)
		);

		CREATE INDEX IF NOT EXISTS idx_track_artists_artist ON track_artists(artist_id);

		CREATE TABLE IF NOT EXISTS track_genres (
			track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
			genre_id INTEGER NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
			PRIMARY KEY (track_id, genre_id)
		);

		CREATE INDEX IF NOT EXISTS idx_track_genres_genre ON track_genres(genre_id);

		CREATE TABLE IF NOT EXISTS album_artists (
			album_id INTEGER NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
			artist_id INTEGER NOT NULL REFERENCES artists(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (album_id, artist_id, role)
		);

		CREATE INDEX IF NOT EXISTS idx_album_artists_artist ON album_artists(artist_id);

		-- Search projection, one row per track
		CREATE VIRTUAL TABLE IF NOT EXISTS library_search_fts USING fts5(
			search_text,
			track_id UNINDEXED,
			title UNINDEXED,
			artist UNINDEXED,
			album UNINDEXED,
			path UNINDEXED,
			tokenize='trigram'
		);
	`)
	if err != nil {
		return err
	}

	// Set initial version if not exists
	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	return err
}

// SchemaVersion returns the highest recorded schema version.
func SchemaVersion(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v)
	return v, err
}
