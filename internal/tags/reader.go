package tags

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Reader is the default metadata extractor. It is safe for concurrent use.
type Reader struct{}

// NewReader returns a Reader.
func NewReader() *Reader {
	return &Reader{}
}

// Extract reads tags, stream properties and artwork of the file at path.
// artworkHint names a folder image used when the file has no embedded art.
//
// A file is reported as failed only when neither its tags nor its stream
// properties can be read.
func (r *Reader) Extract(ctx context.Context, path, artworkHint string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", path)
	}

	t, tagErr := Read(path)
	audio, audioErr := ReadAudioInfo(path)
	if tagErr != nil && audioErr != nil {
		return nil, fmt.Errorf("unreadable audio file: %w", errors.Join(tagErr, audioErr))
	}
	if t == nil {
		t = &Tag{Path: path}
	}
	if audio == nil {
		audio = &AudioInfo{Codec: codecFromExt(strings.ToLower(filepath.Ext(path)))}
	}
	if t.Title == "" {
		t.Title = titleFromFilename(path)
	}

	m := &Metadata{
		Tag:       *t,
		AudioInfo: *audio,
		FileSize:  fi.Size(),
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if data, mimeType, err := ExtractEmbeddedArt(path); err == nil && data != nil {
		m.Artwork, m.ArtworkMIME = data, mimeType
	} else if artworkHint != "" {
		if data, mimeType, err := ReadImageFile(artworkHint); err == nil {
			m.Artwork, m.ArtworkMIME = data, mimeType
		}
	}

	return m, nil
}

// titleFromFilename is the display title of an untagged file.
func titleFromFilename(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
