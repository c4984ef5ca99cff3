package tags

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

// fallbacks are used when dhowden/tag rejects a file. It misreads some
// UTF-16 ID3 frames, chokes on ffmpeg-muxed containers and has no WAV or
// AIFF support.
var fallbacks = map[string]func(string) (*Tag, error){
	ExtMP3:  readMP3WithID3v2Fallback,
	ExtM4A:  readWithTaglib,
	ExtM4B:  readWithTaglib,
	ExtMP4:  readWithTaglib,
	ExtALAC: readWithTaglib,
	ExtFLAC: readWithTaglib,
	ExtOPUS: readWithTaglib,
	ExtOGG:  readWithTaglib,
	ExtOGA:  readWithTaglib,
	ExtWAV:  readWithTaglib,
	ExtAIF:  readWithTaglib,
	ExtAIFF: readWithTaglib,
}

// Read returns the text metadata of a music file. Stream properties are
// read separately by ReadAudioInfo.
func Read(path string) (*Tag, error) {
	ext := strings.ToLower(filepath.Ext(path))

	t, err := readCommon(path)
	if err != nil {
		if fb, ok := fallbacks[ext]; ok {
			return fb(path)
		}
		return nil, err
	}

	switch ext {
	case ExtMP3:
		readMP3ExtendedTags(path, t)
	case ExtFLAC:
		readFLACExtendedTags(path, t)
	default:
		readTaglibExtendedTags(path, t)
	}
	return t, nil
}

func readCommon(path string) (*Tag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}

	t := &Tag{Path: path, Lyrics: m.Lyrics()}
	for dst, v := range map[*string]string{
		&t.Title:       m.Title(),
		&t.Artist:      m.Artist(),
		&t.AlbumArtist: m.AlbumArtist(),
		&t.Album:       m.Album(),
		&t.Composer:    m.Composer(),
		&t.Genre:       m.Genre(),
		&t.Comment:     m.Comment(),
	} {
		*dst = strings.TrimSpace(v)
	}
	t.TrackNumber, t.TotalTracks = m.Track()
	t.DiscNumber, t.TotalDiscs = m.Disc()
	if y := m.Year(); y != 0 {
		t.Date = strconv.Itoa(y)
	}
	return t, nil
}
