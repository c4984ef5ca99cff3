package library

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyBatch_InsertsTracksWithRelationships(t *testing.T) {
	lib, db := setupTestLibrary(t)
	ctx := context.Background()
	f := addTestFolder(t, lib, "/music")

	fields := testFields("One More Time", "Daft Punk feat. Romanthony", "Discovery")
	fields.Genre = "House; Electronic"
	ids := insertTestTracks(t, lib, f.ID, TrackWrite{Path: "/music/01.mp3", Mtime: 42, Fields: fields})
	require.Len(t, ids, 1)
	require.Positive(t, ids[0])

	track, err := lib.TrackByPath(ctx, "/music/01.mp3")
	require.NoError(t, err)
	assert.Equal(t, ids[0], track.ID)
	assert.Equal(t, f.ID, track.FolderID)
	assert.Equal(t, int64(42), track.Mtime)
	assert.Equal(t, fields, track.TrackFields)
	assert.NotZero(t, track.AlbumID)

	assert.Equal(t, 2, countRows(t, db, `SELECT COUNT(*) FROM track_artists WHERE track_id = ?`, track.ID))
	assert.Equal(t, 1, countRows(t, db, `
		SELECT COUNT(*) FROM track_artists ta JOIN artists a ON a.id = ta.artist_id
		WHERE ta.track_id = ? AND ta.role = 'featured' AND a.name = 'Romanthony'`, track.ID))
	assert.Equal(t, 2, countRows(t, db, `SELECT COUNT(*) FROM track_genres WHERE track_id = ?`, track.ID))
	assert.Equal(t, 1, countRows(t, db, `
		SELECT COUNT(*) FROM album_artists aa JOIN artists a ON a.id = aa.artist_id
		WHERE aa.album_id = ? AND a.name = 'Daft Punk'`, track.AlbumID))
	assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM library_search_fts WHERE track_id = ?`, track.ID))
}

func TestApplyBatch_TracksShareNormalizedAlbum(t *testing.T) {
	lib, db := setupTestLibrary(t)
	f := addTestFolder(t, lib, "/music")

	a := testFields("A", "Björk", "Homogenic")
	b := testFields("B", "bjork", "HOMOGENIC")
	b.Year = 1997
	insertTestTracks(t, lib, f.ID,
		TrackWrite{Path: "/music/a.flac", Mtime: 1, Fields: a},
		TrackWrite{Path: "/music/b.flac", Mtime: 1, Fields: b},
	)

	assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM albums`))
	assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM artists`))
	assert.Equal(t, 2001, countRows(t, db, `SELECT year FROM albums`), "album keeps the latest year seen")
}

func TestApplyBatch_NoAlbumTitle(t *testing.T) {
	lib, db := setupTestLibrary(t)
	f := addTestFolder(t, lib, "/music")

	insertTestTracks(t, lib, f.ID, TrackWrite{Path: "/music/single.mp3", Mtime: 1, Fields: testFields("Single", "Artist", "")})

	track, err := lib.TrackByPath(context.Background(), "/music/single.mp3")
	require.NoError(t, err)
	assert.Zero(t, track.AlbumID)
	assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM albums`))
}

func TestApplyBatch_UpdatePreservesUserAttributes(t *testing.T) {
	lib, db := setupTestLibrary(t)
	ctx := context.Background()
	f := addTestFolder(t, lib, "/music")

	ids := insertTestTracks(t, lib, f.ID, TrackWrite{Path: "/music/a.mp3", Mtime: 1, Fields: testFields("Old", "Old Artist", "Old Album")})
	_, err := db.Exec(`UPDATE tracks SET favorite = 1, play_count = 7 WHERE id = ?`, ids[0])
	require.NoError(t, err)

	updated := testFields("New", "New Artist", "New Album")
	res, err := lib.ApplyBatch(ctx, f.ID, Batch{Writes: []TrackWrite{{ID: ids[0], Path: "/music/a.mp3", Mtime: 2, Fields: updated}}})
	require.NoError(t, err)
	assert.Equal(t, ids, res.IDs)

	track, err := lib.TrackByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, updated, track.TrackFields)
	assert.Equal(t, int64(2), track.Mtime)
	assert.True(t, track.Favorite)
	assert.Equal(t, 7, track.PlayCount)

	// The old album and artist lost their only track
	assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM albums`))
	assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM artists WHERE name = 'Old Artist'`))

	results, err := lib.Search(ctx, "New Artist", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	results, err = lib.Search(ctx, "Old", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestApplyBatch_Touch(t *testing.T) {
	lib, _ := setupTestLibrary(t)
	ctx := context.Background()
	f := addTestFolder(t, lib, "/music")
	ids := insertTestTracks(t, lib, f.ID, TrackWrite{Path: "/music/a.mp3", Mtime: 1, Fields: testFields("A", "B", "C")})

	_, err := lib.ApplyBatch(ctx, f.ID, Batch{Touches: []Touch{{ID: ids[0], Mtime: 99}}})
	require.NoError(t, err)

	track, err := lib.TrackByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, int64(99), track.Mtime)
}

func TestApplyBatch_InvalidTrackIDRejectedAlone(t *testing.T) {
	lib, db := setupTestLibrary(t)
	ctx := context.Background()
	f := addTestFolder(t, lib, "/music")

	res, err := lib.ApplyBatch(ctx, f.ID, Batch{Writes: []TrackWrite{
		{Path: "/music/good.mp3", Mtime: 1, Fields: testFields("Good", "Artist", "Album")},
		{ID: 9999, Path: "/music/ghost.mp3", Mtime: 1, Fields: testFields("Ghost", "Nobody", "Nothing")},
		{ID: -1, Path: "/music/negative.mp3", Mtime: 1, Fields: testFields("Negative", "Nobody", "")},
	}})
	require.NoError(t, err)

	require.Len(t, res.Rejected, 2)
	assert.ErrorIs(t, res.Rejected[0].Err, ErrInvalidTrackID)
	assert.Equal(t, "/music/ghost.mp3", res.Rejected[0].Path)
	assert.Positive(t, res.IDs[0])
	assert.Zero(t, res.IDs[1])

	assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM tracks`))
	assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM albums WHERE title = 'Nothing'`))
	assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM artists WHERE name = 'Nobody'`))
}

func TestApplyBatch_FailureMidChunkIsAtomic(t *testing.T) {
	lib, db := setupTestLibrary(t)
	ctx := context.Background()
	f := addTestFolder(t, lib, "/music")

	// Fail any insert of the poisoned path, after earlier tracks of the
	// chunk were written with all their relationships
	_, err := db.Exec(`
		CREATE TRIGGER fail_poison BEFORE INSERT ON tracks
		WHEN NEW.path = '/music/poison.mp3'
		BEGIN SELECT RAISE(ABORT, 'simulated write failure'); END
	`)
	require.NoError(t, err)

	_, err = lib.ApplyBatch(ctx, f.ID, Batch{Writes: []TrackWrite{
		{Path: "/music/a.mp3", Mtime: 1, Fields: testFields("A", "Artist A", "Album A")},
		{Path: "/music/b.mp3", Mtime: 1, Fields: testFields("B", "Artist B feat. C", "Album B")},
		{Path: "/music/poison.mp3", Mtime: 1, Fields: testFields("P", "Artist P", "Album P")},
	}})
	require.Error(t, err)

	for _, table := range []string{"tracks", "albums", "artists", "genres", "track_artists", "track_genres", "album_artists", "library_search_fts"} {
		assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM `+table), table)
	}
}

func TestApplyBatch_ArtworkBackfill(t *testing.T) {
	lib, db := setupTestLibrary(t)
	f := addTestFolder(t, lib, "/music")

	first := []byte("first-art")
	second := []byte("second-art")

	// No artwork at first: aggregates stay empty
	insertTestTracks(t, lib, f.ID, TrackWrite{Path: "/music/1.mp3", Mtime: 1, Fields: testFields("1", "Artist", "Album")})
	assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM albums WHERE artwork IS NOT NULL`))

	insertTestTracks(t, lib, f.ID, TrackWrite{Path: "/music/2.mp3", Mtime: 1, Fields: testFields("2", "Artist", "Album"), Artwork: first})
	insertTestTracks(t, lib, f.ID, TrackWrite{Path: "/music/3.mp3", Mtime: 1, Fields: testFields("3", "Artist", "Album"), Artwork: second})

	var albumArt, artistArt []byte
	require.NoError(t, db.QueryRow(`SELECT artwork FROM albums`).Scan(&albumArt))
	require.NoError(t, db.QueryRow(`SELECT artwork FROM artists`).Scan(&artistArt))
	assert.Equal(t, first, albumArt, "existing artwork is never replaced")
	assert.Equal(t, first, artistArt)
}

func TestExistingTracks(t *testing.T) {
	lib, _ := setupTestLibrary(t)
	ctx := context.Background()
	a := addTestFolder(t, lib, "/a")
	b := addTestFolder(t, lib, "/b")

	fields := testFields("T", "Artist", "Album")
	fields.Extra = `{"isrc":"X"}`
	ids := insertTestTracks(t, lib, a.ID, TrackWrite{Path: "/a/1.mp3", Mtime: 5, Fields: fields})
	insertTestTracks(t, lib, b.ID, TrackWrite{Path: "/b/1.mp3", Mtime: 5, Fields: fields})

	existing, err := lib.ExistingTracks(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, existing, 1)
	assert.Equal(t, Existing{ID: ids[0], Mtime: 5, Fields: fields}, existing["/a/1.mp3"])
}

func TestTrackByPath_NotFound(t *testing.T) {
	lib, _ := setupTestLibrary(t)

	_, err := lib.TrackByPath(context.Background(), "/nope.mp3")
	assert.True(t, errors.Is(err, ErrNotFound))
}
