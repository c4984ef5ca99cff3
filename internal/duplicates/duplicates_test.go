package duplicates

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbutil "github.com/llehouerou/shelf/internal/db"
	"github.com/llehouerou/shelf/internal/library"
	"github.com/llehouerou/shelf/internal/tags"
)

func candidate(id int64, title, artist string, durationMs int64, codec string, bitrate int) library.DuplicateCandidate {
	return library.DuplicateCandidate{
		ID:         id,
		Title:      title,
		Artist:     artist,
		DurationMs: durationMs,
		Codec:      codec,
		Bitrate:    bitrate,
		SampleRate: 44100,
		FileSize:   5_000_000,
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("group-%d", n)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		artist string
		want   string
		ok     bool
	}{
		{"plain", "Hey Jude", "The Beatles", "hey jude\x00the beatles", true},
		{"case and punctuation", "HEY, JUDE!", "the beatles", "hey jude\x00the beatles", true},
		{"diacritics", "Jóga", "Björk", "joga\x00bjork", true},
		{"featuring in title", "Song (feat. Someone)", "Artist", "song\x00artist", true},
		{"featuring in artist", "Song", "Artist feat. Someone", "song\x00artist", true},
		{"empty title", "", "Artist", "", false},
		{"empty artist", "Song", "  ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Key(tt.title, tt.artist)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScore(t *testing.T) {
	mp3128 := candidate(1, "", "", 0, tags.CodecMP3, 128)
	mp3320 := candidate(2, "", "", 0, tags.CodecMP3, 320)
	aac256 := candidate(3, "", "", 0, tags.CodecAAC, 256)
	opus160 := candidate(4, "", "", 0, tags.CodecOpus, 160)
	flac := candidate(5, "", "", 0, tags.CodecFLAC, 900)
	flac.BitDepth = 16
	hires := flac
	hires.SampleRate = 96000
	hires.BitDepth = 24

	assert.Equal(t, 1000+320+441, Score(mp3320))
	assert.Greater(t, Score(mp3320), Score(mp3128))
	assert.Greater(t, Score(aac256), Score(mp3320))
	assert.Greater(t, Score(opus160), Score(aac256))
	assert.Greater(t, Score(flac), Score(opus160))
	assert.Greater(t, Score(hires), Score(flac))
	assert.Equal(t, Score(mp3128), Score(mp3128), "score is a pure function")
	assert.Equal(t, 500, Score(library.DuplicateCandidate{Codec: "WMA"}))
}

func TestGroup_HigherBitratePrimary(t *testing.T) {
	cands := []library.DuplicateCandidate{
		candidate(1, "Song", "Artist", 200_000, tags.CodecMP3, 128),
		candidate(2, "Song", "Artist", 200_000, tags.CodecMP3, 320),
	}

	groups := Group(cands, DefaultTolerance, sequentialIDs())

	require.Len(t, groups, 1)
	assert.Equal(t, int64(2), groups[0].PrimaryID)
	assert.Equal(t, []int64{1}, groups[0].DuplicateIDs)
	assert.Equal(t, "group-1", groups[0].ID)
}

func TestGroup_DurationTolerance(t *testing.T) {
	cands := []library.DuplicateCandidate{
		candidate(1, "Song", "Artist", 200_000, tags.CodecMP3, 128),
		candidate(2, "Song", "Artist", 201_500, tags.CodecMP3, 192),
		// chained through track 2
		candidate(3, "Song", "Artist", 203_000, tags.CodecMP3, 256),
		// live version, much longer
		candidate(4, "Song", "Artist", 260_000, tags.CodecFLAC, 900),
	}

	groups := Group(cands, DefaultTolerance, sequentialIDs())

	require.Len(t, groups, 1)
	assert.Equal(t, int64(3), groups[0].PrimaryID)
	assert.Equal(t, []int64{1, 2}, groups[0].DuplicateIDs)
}

func TestGroup_DifferentKeysNotGrouped(t *testing.T) {
	cands := []library.DuplicateCandidate{
		candidate(1, "Song", "Artist", 200_000, tags.CodecMP3, 128),
		candidate(2, "Other Song", "Artist", 200_000, tags.CodecMP3, 320),
		candidate(3, "Song", "Other Artist", 200_000, tags.CodecMP3, 320),
		candidate(4, "", "Artist", 200_000, tags.CodecMP3, 320),
		candidate(5, "", "Artist", 200_000, tags.CodecMP3, 320),
	}

	assert.Empty(t, Group(cands, DefaultTolerance, sequentialIDs()))
}

func TestGroup_TieBreaks(t *testing.T) {
	a := candidate(1, "Song", "Artist", 200_000, tags.CodecMP3, 320)
	b := candidate(2, "Song", "Artist", 200_000, tags.CodecMP3, 320)
	c := candidate(3, "Song", "Artist", 200_000, tags.CodecMP3, 320)

	groups := Group([]library.DuplicateCandidate{c, b, a}, DefaultTolerance, sequentialIDs())
	require.Len(t, groups, 1)
	assert.Equal(t, int64(1), groups[0].PrimaryID, "lowest id wins a full tie")

	b.FileSize = 9_000_000
	groups = Group([]library.DuplicateCandidate{a, b, c}, DefaultTolerance, sequentialIDs())
	require.Len(t, groups, 1)
	assert.Equal(t, int64(2), groups[0].PrimaryID, "larger file wins an equal score")
}

func TestGroup_Deterministic(t *testing.T) {
	var cands []library.DuplicateCandidate
	for i := range 30 {
		cands = append(cands, candidate(int64(i+1), fmt.Sprintf("Song %d", i%7), "Artist",
			int64(180_000+(i%3)*500), tags.CodecMP3, 128+i*8))
	}

	first := Group(cands, DefaultTolerance, sequentialIDs())
	reversed := make([]library.DuplicateCandidate, len(cands))
	for i, c := range cands {
		reversed[len(cands)-1-i] = c
	}
	second := Group(reversed, DefaultTolerance, sequentialIDs())

	assert.Equal(t, first, second)
}

func TestGroup_ReusesPrimaryGroupID(t *testing.T) {
	a := candidate(1, "Song", "Artist", 200_000, tags.CodecMP3, 128)
	b := candidate(2, "Song", "Artist", 200_000, tags.CodecMP3, 320)
	a.GroupID, b.GroupID = "existing", "existing"

	groups := Group([]library.DuplicateCandidate{a, b}, DefaultTolerance, sequentialIDs())
	require.Len(t, groups, 1)
	assert.Equal(t, "existing", groups[0].ID)
}

func TestGroup_SplitGroupGetsFreshID(t *testing.T) {
	// Two clusters whose primaries both carried the same old group
	cands := []library.DuplicateCandidate{
		candidate(1, "Song", "Artist", 200_000, tags.CodecMP3, 320),
		candidate(2, "Song", "Artist", 200_000, tags.CodecMP3, 128),
		candidate(3, "Song", "Artist", 300_000, tags.CodecMP3, 320),
		candidate(4, "Song", "Artist", 300_000, tags.CodecMP3, 128),
	}
	for i := range cands {
		cands[i].GroupID = "old"
	}

	groups := Group(cands, DefaultTolerance, sequentialIDs())
	require.Len(t, groups, 2)
	assert.Equal(t, "old", groups[0].ID)
	assert.Equal(t, "group-1", groups[1].ID)
}

func setupLibrary(t *testing.T) (*library.Library, library.Folder) {
	t.Helper()
	db, err := dbutil.Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	lib := library.New(db)
	folder, err := lib.AddFolder(context.Background(), "/music", nil)
	require.NoError(t, err)
	return lib, folder
}

func write(path, title, artist string, bitrate int) library.TrackWrite {
	return library.TrackWrite{
		Path:  path,
		Mtime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano(),
		Fields: library.TrackFields{
			Title:      title,
			Artist:     artist,
			Album:      "Album",
			DurationMs: 200_000,
			Bitrate:    bitrate,
			SampleRate: 44100,
			Channels:   2,
			Codec:      tags.CodecMP3,
			FileSize:   5_000_000,
		},
	}
}

func TestRun_MarksLibrary(t *testing.T) {
	ctx := context.Background()
	lib, folder := setupLibrary(t)

	res, err := lib.ApplyBatch(ctx, folder.ID, library.Batch{Writes: []library.TrackWrite{
		write("/music/low.mp3", "Song", "Artist", 128),
		write("/music/high.mp3", "Song", "Artist", 320),
		write("/music/other.mp3", "Other", "Artist", 320),
	}})
	require.NoError(t, err)
	lowID, highID, otherID := res.IDs[0], res.IDs[1], res.IDs[2]

	det := New(lib)
	out, err := det.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Groups: 1, Duplicates: 1}, out)

	low, err := lib.TrackByID(ctx, lowID)
	require.NoError(t, err)
	high, err := lib.TrackByID(ctx, highID)
	require.NoError(t, err)
	other, err := lib.TrackByID(ctx, otherID)
	require.NoError(t, err)

	assert.False(t, high.IsDuplicate)
	assert.True(t, low.IsDuplicate)
	assert.Equal(t, highID, low.PrimaryTrackID)
	assert.NotEmpty(t, high.DuplicateGroupID)
	assert.Equal(t, high.DuplicateGroupID, low.DuplicateGroupID)
	assert.False(t, other.IsDuplicate)
	assert.Empty(t, other.DuplicateGroupID)

	// Second pass keeps the same primary and group
	_, err = det.Run(ctx)
	require.NoError(t, err)
	again, err := lib.TrackByID(ctx, lowID)
	require.NoError(t, err)
	assert.Equal(t, highID, again.PrimaryTrackID)
	assert.Equal(t, low.DuplicateGroupID, again.DuplicateGroupID)
}

func TestRun_ClearsStaleMarkings(t *testing.T) {
	ctx := context.Background()
	lib, folder := setupLibrary(t)

	res, err := lib.ApplyBatch(ctx, folder.ID, library.Batch{Writes: []library.TrackWrite{
		write("/music/a.mp3", "Song", "Artist", 128),
		write("/music/b.mp3", "Song", "Artist", 320),
	}})
	require.NoError(t, err)

	det := New(lib)
	_, err = det.Run(ctx)
	require.NoError(t, err)

	// The 320 kbps copy goes away; the survivor is no longer a duplicate
	_, err = lib.Prune(ctx, folder.ID, []string{"/music/a.mp3"}, nil)
	require.NoError(t, err)
	out, err := det.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, out.Groups)

	a, err := lib.TrackByID(ctx, res.IDs[0])
	require.NoError(t, err)
	assert.False(t, a.IsDuplicate)
	assert.Zero(t, a.PrimaryTrackID)
	assert.Empty(t, a.DuplicateGroupID)
}

type brokenStore struct{}

func (brokenStore) DuplicateCandidates(context.Context) ([]library.DuplicateCandidate, error) {
	return nil, errors.New("disk I/O error")
}

func (brokenStore) ReplaceDuplicateGroups(context.Context, []library.DuplicateGroup) error {
	return nil
}

func TestRun_StoreError(t *testing.T) {
	_, err := New(brokenStore{}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load duplicate candidates")
}
