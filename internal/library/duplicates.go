package library

import (
	"context"
	"database/sql"

	dbutil "github.com/llehouerou/shelf/internal/db"
)

// DuplicateCandidate is the part of a track duplicate detection reads.
type DuplicateCandidate struct {
	ID         int64
	Title      string
	Artist     string
	DurationMs int64
	Codec      string
	Bitrate    int
	SampleRate int
	BitDepth   int
	FileSize   int64
	GroupID    string // current duplicate group, empty when none
}

// DuplicateGroup is a set of tracks judged to be the same recording.
type DuplicateGroup struct {
	ID        string
	PrimaryID int64
	// DuplicateIDs are the non-primary members.
	DuplicateIDs []int64
}

// DuplicateCandidates returns every track with the attributes duplicate
// detection needs, ordered by ID.
func (l *Library) DuplicateCandidates(ctx context.Context) ([]DuplicateCandidate, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, title, artist, duration_ms, codec, bitrate, sample_rate, bit_depth, file_size, duplicate_group_id
		FROM tracks
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DuplicateCandidate
	for rows.Next() {
		var c DuplicateCandidate
		var group sql.NullString
		if err := rows.Scan(&c.ID, &c.Title, &c.Artist, &c.DurationMs, &c.Codec,
			&c.Bitrate, &c.SampleRate, &c.BitDepth, &c.FileSize, &group); err != nil {
			return nil, err
		}
		c.GroupID = dbutil.NullStringValue(group)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceDuplicateGroups clears every duplicate marking and writes groups
// in one transaction.
func (l *Library) ReplaceDuplicateGroups(ctx context.Context, groups []DuplicateGroup) error {
	return dbutil.WithTxContext(ctx, l.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE tracks SET is_duplicate = 0, primary_track_id = NULL, duplicate_group_id = NULL
			WHERE is_duplicate = 1 OR primary_track_id IS NOT NULL OR duplicate_group_id IS NOT NULL
		`); err != nil {
			return err
		}

		for _, g := range groups {
			if g.PrimaryID <= 0 {
				return ErrInvalidTrackID
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE tracks SET is_duplicate = 0, primary_track_id = NULL, duplicate_group_id = ?
				WHERE id = ?
			`, g.ID, g.PrimaryID); err != nil {
				return err
			}
			for _, id := range g.DuplicateIDs {
				if _, err := tx.ExecContext(ctx, `
					UPDATE tracks SET is_duplicate = 1, primary_track_id = ?, duplicate_group_id = ?
					WHERE id = ?
				`, g.PrimaryID, g.ID, id); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// DuplicateGroupView is a stored duplicate group with its tracks.
type DuplicateGroupView struct {
	ID         string
	Primary    TrackSummary
	Duplicates []TrackSummary
}

// DuplicateGroups returns the stored duplicate groups, primaries first.
func (l *Library) DuplicateGroups(ctx context.Context) ([]DuplicateGroupView, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT duplicate_group_id, `+summaryColumns+`
		FROM tracks
		WHERE duplicate_group_id IS NOT NULL
		ORDER BY duplicate_group_id, is_duplicate, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []DuplicateGroupView
	for rows.Next() {
		var groupID string
		var s TrackSummary
		var durationMs int64
		var favorite, isDuplicate int
		if err := rows.Scan(&groupID, &s.ID, &s.Path, &s.Title, &s.Artist, &s.Album,
			&durationMs, &favorite, &isDuplicate); err != nil {
			return nil, err
		}
		s.Duration = msToDuration(durationMs)
		s.Favorite = favorite != 0
		s.IsDuplicate = isDuplicate != 0

		if len(groups) == 0 || groups[len(groups)-1].ID != groupID {
			groups = append(groups, DuplicateGroupView{ID: groupID})
		}
		g := &groups[len(groups)-1]
		if s.IsDuplicate {
			g.Duplicates = append(g.Duplicates, s)
		} else {
			g.Primary = s
		}
	}
	return groups, rows.Err()
}
