// Command extract prints what the library scanner reads from audio files.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/shelf/internal/discovery"
	"github.com/llehouerou/shelf/internal/library"
	"github.com/llehouerou/shelf/internal/tags"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: extract <file>...")
		os.Exit(2)
	}

	reader := tags.NewReader()
	ctx := context.Background()
	failed := 0
	for _, path := range os.Args[1:] {
		if err := show(ctx, reader, path); err != nil {
			log.Printf("%s: %v", path, err)
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func show(ctx context.Context, reader *tags.Reader, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	// Use the same cover lookup as a scan of the parent folder
	hint := ""
	if res, err := discovery.Walk(ctx, filepath.Dir(abs), discovery.NewClassifier([]string{filepath.Ext(abs)}, nil)); err == nil {
		for _, f := range res.Files {
			if f.Path == abs {
				hint = f.CoverHint
			}
		}
	}

	m, err := reader.Extract(ctx, abs, hint)
	if err != nil {
		return err
	}
	fields, err := library.FieldsFromMetadata(m)
	if err != nil {
		return err
	}

	fmt.Println(abs)
	row := func(name string, value any) {
		if s := fmt.Sprint(value); s != "" && s != "0" {
			fmt.Printf("  %-14s %s\n", name, s)
		}
	}
	row("Title", fields.Title)
	row("Artist", fields.Artist)
	row("Album", fields.Album)
	row("Album artist", fields.AlbumArtist)
	row("Composer", fields.Composer)
	row("Genre", fields.Genre)
	row("Year", fields.Year)
	row("Track", trackPosition(fields.TrackNumber, fields.TrackTotal))
	row("Disc", trackPosition(fields.DiscNumber, fields.DiscTotal))
	row("Duration", fields.Duration().Round(time.Millisecond))
	row("Codec", fields.Codec)
	row("Bitrate", kbps(fields.Bitrate))
	row("Sample rate", fields.SampleRate)
	row("Bit depth", fields.BitDepth)
	row("Channels", fields.Channels)
	row("Size", humanize.Bytes(uint64(max(fields.FileSize, 0)))) //nolint:gosec // clamped above
	if m.HasArtwork() {
		row("Artwork", fmt.Sprintf("%s, %s", m.ArtworkMIME, humanize.Bytes(uint64(len(m.Artwork)))))
	}
	if hint != "" {
		row("Cover file", hint)
	}

	extra, err := fields.ExtraFields()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		row(k, extra[k])
	}
	return nil
}

func trackPosition(n, total int) string {
	switch {
	case n == 0:
		return ""
	case total == 0:
		return fmt.Sprint(n)
	default:
		return fmt.Sprintf("%d/%d", n, total)
	}
}

func kbps(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("%d kbps", n)
}
