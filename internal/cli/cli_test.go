package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/shelf/internal/tags"
)

// stubExtractor derives tags from the file name: "Artist - Title.mp3".
type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, path, _ string) (*tags.Metadata, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	artist, title, ok := strings.Cut(base, " - ")
	if !ok {
		return nil, errors.New("unreadable")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &tags.Metadata{
		Tag:       tags.Tag{Path: path, Title: title, Artist: artist, Album: "Album"},
		AudioInfo: tags.AudioInfo{Duration: 200 * time.Second, Codec: tags.CodecMP3, Bitrate: 320, SampleRate: 44100, Channels: 2},
		FileSize:  info.Size(),
	}, nil
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "database = \"" + filepath.Join(dir, "library.db") + "\"\n" +
		"[scan]\nauto_scan = \"never\"\n" +
		"[log]\nlevel = \"error\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func musicDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Music")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range []string{"Artist - Alpha.mp3", "Artist - Beta.mp3", "Other - Gamma.flac", "legacy.wma"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("audio"), 0o600))
	}
	return dir
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(WithExtractor(stubExtractor{}))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFoldersList_Empty(t *testing.T) {
	out, err := run(t, writeConfig(t), "folders", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No folders.")
}

func TestFoldersAdd_ScansAndReports(t *testing.T) {
	cfg := writeConfig(t)
	dir := musicDir(t)

	out, err := run(t, cfg, "folders", "add", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Importing 1 folder")
	assert.Contains(t, out, "3 new, 0 updated, 0 unchanged, 0 removed")
	assert.Contains(t, out, "unsupported formats: .WMA (1)")
	assert.Contains(t, out, "Scan complete: 3 files")

	out, err = run(t, cfg, "folders", "list")
	require.NoError(t, err)
	assert.Contains(t, out, dir)
	assert.Regexp(t, `Music\s+3\s+`, out)

	out, err = run(t, cfg, "stats")
	require.NoError(t, err)
	assert.Regexp(t, `Tracks\s+3`, out)
	assert.Regexp(t, `Artists\s+2`, out)

	out, err = run(t, cfg, "search", "Gamma")
	require.NoError(t, err)
	assert.Contains(t, out, "Other")
	assert.Contains(t, out, "3:20")
	assert.NotContains(t, out, "Alpha")
}

func TestScan_Refresh(t *testing.T) {
	cfg := writeConfig(t)
	dir := musicDir(t)
	_, err := run(t, cfg, "folders", "add", dir)
	require.NoError(t, err)

	out, err := run(t, cfg, "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "0 new, 0 updated, 3 unchanged")

	out, err = run(t, cfg, "scan", "--hard", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Scanning (full refresh) 1 folder")
	assert.Contains(t, out, "0 new, 3 updated")
}

func TestFoldersRemove(t *testing.T) {
	cfg := writeConfig(t)
	dir := musicDir(t)
	_, err := run(t, cfg, "folders", "add", dir)
	require.NoError(t, err)

	out, err := run(t, cfg, "folders", "remove", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed folder 'Music' and 3 tracks")

	_, err = run(t, cfg, "folders", "remove", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a library folder")
}

func TestDuplicates(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, cfg, "duplicates")
	require.NoError(t, err)
	assert.Contains(t, out, "No duplicates.")

	dir := filepath.Join(t.TempDir(), "dups")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "copy"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Artist - Song.mp3"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "copy", "Artist - Song.mp3"), []byte("bb"), 0o600))
	_, err = run(t, cfg, "folders", "add", dir)
	require.NoError(t, err)

	out, err = run(t, cfg, "duplicates")
	require.NoError(t, err)
	assert.Contains(t, out, "Artist - Song")
	// Equal score: the larger file is primary
	assert.Contains(t, out, "  * "+filepath.Join(dir, "copy", "Artist - Song.mp3"))
}

func TestMissingConfigFile(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "nope.toml"), "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "3:20", formatDuration(200*time.Second))
	assert.Equal(t, "0:05", formatDuration(4600*time.Millisecond))
	assert.Equal(t, "61:01", formatDuration(61*time.Minute+time.Second))
}
