package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	dbutil "github.com/llehouerou/shelf/internal/db"
)

const folderColumns = `id, path, name, track_count, content_hash, bookmark, added_at, updated_at`

// Folders returns all registered folders in the order they were added.
func (l *Library) Folders(ctx context.Context) ([]Folder, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT `+folderColumns+` FROM folders ORDER BY added_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// FolderByID returns a folder by its ID.
func (l *Library) FolderByID(ctx context.Context, id int64) (Folder, error) {
	return scanFolderRow(l.db.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = ?`, id))
}

// FolderByPath returns a folder by its root path.
func (l *Library) FolderByPath(ctx context.Context, path string) (Folder, error) {
	path, err := CleanFolderPath(path)
	if err != nil {
		return Folder{}, err
	}
	return scanFolderRow(l.db.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE path = ?`, path))
}

// CleanFolderPath returns the absolute, cleaned form of a folder path.
func CleanFolderPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty folder path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// AddFolder registers a new folder. The path must not be registered, nor
// be inside or around a registered folder.
func (l *Library) AddFolder(ctx context.Context, path string, bookmark []byte) (Folder, error) {
	path, err := CleanFolderPath(path)
	if err != nil {
		return Folder{}, err
	}

	existing, err := l.Folders(ctx)
	if err != nil {
		return Folder{}, err
	}
	for _, f := range existing {
		if f.Path == path {
			return Folder{}, fmt.Errorf("%s: %w", path, ErrFolderExists)
		}
		if isWithin(path, f.Path) || isWithin(f.Path, path) {
			return Folder{}, fmt.Errorf("%s and %s: %w", path, f.Path, ErrFolderOverlap)
		}
	}

	name := filepath.Base(path)
	now := time.Now().Unix()
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO folders (path, name, bookmark, added_at) VALUES (?, ?, ?, ?)
	`, path, name, bookmark, now)
	if err != nil {
		if dbutil.IsConstraint(err) {
			return Folder{}, fmt.Errorf("%s: %w", path, ErrFolderExists)
		}
		return Folder{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Folder{}, err
	}
	return Folder{ID: id, Path: path, Name: name, Bookmark: bookmark, AddedAt: time.Unix(now, 0)}, nil
}

// isWithin reports whether path is strictly below root.
func isWithin(path, root string) bool {
	prefix := root
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	return strings.HasPrefix(path, prefix)
}

// RemoveFolder removes a folder with all its tracks, their relationship
// and search rows, and the albums, artists and genres left without tracks.
// It returns the number of tracks removed.
func (l *Library) RemoveFolder(ctx context.Context, id int64) (int, error) {
	var removed int
	err := dbutil.WithTxContext(ctx, l.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks WHERE folder_id = ?`, id).Scan(&removed); err != nil {
			return err
		}

		// Search rows first, they are keyed by track id and do not cascade
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM library_search_fts
			WHERE track_id IN (SELECT id FROM tracks WHERE folder_id = ?)
		`, id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrNotFound
		}

		return cleanupOrphans(ctx, tx)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// MarkFolderScanned records a completed scan of a folder.
func (l *Library) MarkFolderScanned(ctx context.Context, id int64, contentHash string) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE folders SET content_hash = ?, updated_at = ? WHERE id = ?
	`, dbutil.StringOrNull(contentHash), time.Now().Unix(), id)
	return err
}

// MigrateFolders registers folder paths if no folder exists yet.
// This is used to seed the library from the config file.
func (l *Library) MigrateFolders(ctx context.Context, paths []string) ([]Folder, error) {
	var count int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM folders`).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, nil
	}

	var added []Folder
	for _, path := range paths {
		if path == "" {
			continue
		}
		f, err := l.AddFolder(ctx, path, nil)
		if err != nil {
			return added, err
		}
		added = append(added, f)
	}
	return added, nil
}

// FolderTracks returns the lightweight projection of a folder's tracks.
func (l *Library) FolderTracks(ctx context.Context, folderID int64) ([]TrackSummary, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+summaryColumns+` FROM tracks
		WHERE folder_id = ?
		ORDER BY path
	`, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(row rowScanner) (Folder, error) {
	var f Folder
	var hash sql.NullString
	var addedAt, updatedAt sql.NullInt64
	if err := row.Scan(&f.ID, &f.Path, &f.Name, &f.TrackCount, &hash, &f.Bookmark, &addedAt, &updatedAt); err != nil {
		return Folder{}, err
	}
	f.ContentHash = dbutil.NullStringValue(hash)
	f.AddedAt = unixOrZero(addedAt)
	f.UpdatedAt = unixOrZero(updatedAt)
	return f, nil
}

func scanFolderRow(row *sql.Row) (Folder, error) {
	f, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Folder{}, ErrNotFound
	}
	return f, err
}
