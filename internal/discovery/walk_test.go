package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultClassifier() *Classifier {
	return NewClassifier(
		[]string{"mp3", "m4a", "flac", "ogg", "opus"},
		[]string{"wma", "ape"},
	)
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func filePaths(res *Result) []string {
	paths := make([]string, 0, len(res.Files))
	for _, f := range res.Files {
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)
	return paths
}

func TestClassify(t *testing.T) {
	c := NewClassifier([]string{".MP3", "flac"}, []string{"wma", "flac"})

	tests := []struct {
		path string
		want Class
	}{
		{"/m/a.mp3", Supported},
		{"/m/a.MP3", Supported},
		{"/m/a.flac", Supported},
		{"/m/a.WMA", Unsupported},
		{"/m/a.txt", Ignored},
		{"/m/noext", Ignored},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.path))
		})
	}
}

func TestWalk_ClassifiesFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "a")
	writeFile(t, filepath.Join(root, "Album", "b.flac"), "bb")
	writeFile(t, filepath.Join(root, "Album", "c.m4a"), "ccc")
	writeFile(t, filepath.Join(root, "old.wma"), "w")
	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")

	res, err := Walk(context.Background(), root, defaultClassifier())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "Album", "b.flac"),
		filepath.Join(root, "Album", "c.m4a"),
		filepath.Join(root, "a.mp3"),
	}, filePaths(res))

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, filepath.Join(root, "old.wma"), res.Skipped[0].Path)
	assert.Equal(t, "WMA", res.Skipped[0].Ext)
	assert.Empty(t, res.Errors)
}

func TestWalk_SkipsHiddenAndBundles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".hidden.mp3"), "x")
	writeFile(t, filepath.Join(root, ".cache", "a.mp3"), "x")
	writeFile(t, filepath.Join(root, "Player.app", "Contents", "jingle.mp3"), "x")
	writeFile(t, filepath.Join(root, "Song.band", "take.mp3"), "x")
	writeFile(t, filepath.Join(root, "visible.mp3"), "x")

	res, err := Walk(context.Background(), root, defaultClassifier())
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "visible.mp3")}, filePaths(res))
}

func TestWalk_DoesNotFollowSymlinks(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	writeFile(t, filepath.Join(other, "linked.mp3"), "x")
	writeFile(t, filepath.Join(root, "real.mp3"), "x")

	if err := os.Symlink(filepath.Join(other, "linked.mp3"), filepath.Join(root, "link.mp3")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	res, err := Walk(context.Background(), root, defaultClassifier())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "real.mp3")}, filePaths(res))
}

func TestWalk_RootInaccessible(t *testing.T) {
	_, err := Walk(context.Background(), filepath.Join(t.TempDir(), "missing"), defaultClassifier())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRootInaccessible))

	file := filepath.Join(t.TempDir(), "a.mp3")
	writeFile(t, file, "x")
	_, err = Walk(context.Background(), file, defaultClassifier())
	assert.True(t, errors.Is(err, ErrRootInaccessible))
}

func TestWalk_UnreadableSubtreeSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok.mp3"), "x")
	locked := filepath.Join(root, "locked")
	writeFile(t, filepath.Join(locked, "hidden.mp3"), "x")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	res, err := Walk(context.Background(), root, defaultClassifier())
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "ok.mp3")}, filePaths(res))
	assert.Len(t, res.Errors, 1)
	assert.Equal(t, []string{locked}, res.Unreadable)
	assert.True(t, res.Covers(filepath.Join(locked, "hidden.mp3")))
	assert.False(t, res.Covers(filepath.Join(root, "ok.mp3")))
}

func TestWithin(t *testing.T) {
	roots := []string{"/music/locked", "/music/single.mp3"}
	tests := []struct {
		path string
		want bool
	}{
		{"/music/locked", true},
		{"/music/locked/a.mp3", true},
		{"/music/locked/deep/b.flac", true},
		{"/music/locked-out/a.mp3", false},
		{"/music/single.mp3", true},
		{"/music/other.mp3", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Within(tt.path, roots))
		})
	}
	assert.False(t, Within("/music/a.mp3", nil))
}

func TestWalk_CoverHints(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "A", "01.mp3"), "x")
	writeFile(t, filepath.Join(root, "A", "folder.png"), "img")
	writeFile(t, filepath.Join(root, "A", "Cover.jpg"), "img")
	writeFile(t, filepath.Join(root, "B", "01.mp3"), "x")
	writeFile(t, filepath.Join(root, "B", "scan.jpg"), "img")

	res, err := Walk(context.Background(), root, defaultClassifier())
	require.NoError(t, err)

	hints := make(map[string]string)
	for _, f := range res.Files {
		hints[f.Path] = f.CoverHint
	}
	assert.Equal(t, filepath.Join(root, "A", "Cover.jpg"), hints[filepath.Join(root, "A", "01.mp3")])
	assert.Empty(t, hints[filepath.Join(root, "B", "01.mp3")])
}

func TestWalk_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Walk(ctx, root, defaultClassifier())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResult_Hash(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "a")
	writeFile(t, filepath.Join(root, "b.mp3"), "b")

	walk := func() string {
		res, err := Walk(context.Background(), root, defaultClassifier())
		require.NoError(t, err)
		return res.Hash()
	}

	first := walk()
	assert.Equal(t, first, walk(), "unchanged folder should hash identically")

	future := time.Now().Add(10 * time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(root, "a.mp3"), future, future))
	touched := walk()
	assert.NotEqual(t, first, touched, "modification time change should alter the hash")

	writeFile(t, filepath.Join(root, "c.mp3"), "c")
	assert.NotEqual(t, touched, walk(), "new file should alter the hash")

	// Unsupported files do not contribute.
	withNew := walk()
	writeFile(t, filepath.Join(root, "x.wma"), "w")
	assert.Equal(t, withNew, walk())
}

func TestResult_SkippedByExt(t *testing.T) {
	res := &Result{Skipped: []Skipped{
		{Path: "/a.wma", Ext: "WMA"},
		{Path: "/b.wma", Ext: "WMA"},
		{Path: "/c.ape", Ext: "APE"},
	}}
	assert.Equal(t, map[string]int{"WMA": 2, "APE": 1}, res.SkippedByExt())
}
