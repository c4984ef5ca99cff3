package library

import (
	"encoding/json"
	"time"

	"github.com/llehouerou/shelf/internal/tags"
)

// TrackFields are the track attributes read from a file. The struct is
// comparable: two extractions of an unchanged file produce equal values.
type TrackFields struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Composer    string
	Genre       string
	Year        int
	TrackNumber int
	TrackTotal  int
	DiscNumber  int
	DiscTotal   int

	DurationMs int64
	Bitrate    int // kbps
	SampleRate int
	BitDepth   int
	Channels   int
	Codec      string
	FileSize   int64
	HasArtwork bool

	// Extra is a canonical JSON object of open-ended string fields, or
	// empty when there are none.
	Extra string
}

// FieldsFromMetadata converts extracted metadata to track fields.
func FieldsFromMetadata(m *tags.Metadata) (TrackFields, error) {
	extra, err := encodeExtra(m.Extra())
	if err != nil {
		return TrackFields{}, err
	}
	return TrackFields{
		Title:       m.Title,
		Artist:      m.Artist,
		Album:       m.Album,
		AlbumArtist: m.AlbumArtist,
		Composer:    m.Composer,
		Genre:       m.Genre,
		Year:        m.Year(),
		TrackNumber: m.TrackNumber,
		TrackTotal:  m.TotalTracks,
		DiscNumber:  m.DiscNumber,
		DiscTotal:   m.TotalDiscs,
		DurationMs:  m.Duration.Milliseconds(),
		Bitrate:     m.Bitrate,
		SampleRate:  m.SampleRate,
		BitDepth:    m.BitDepth,
		Channels:    m.Channels,
		Codec:       m.Codec,
		FileSize:    m.FileSize,
		HasArtwork:  m.HasArtwork(),
		Extra:       extra,
	}, nil
}

// Duration returns the track length.
func (f TrackFields) Duration() time.Duration {
	return time.Duration(f.DurationMs) * time.Millisecond
}

// ExtraFields decodes the Extra blob.
func (f TrackFields) ExtraFields() (map[string]string, error) {
	if f.Extra == "" {
		return map[string]string{}, nil
	}
	out := map[string]string{}
	if err := json.Unmarshal([]byte(f.Extra), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// encodeExtra marshals fields with sorted keys so equal maps encode to
// equal strings.
func encodeExtra(fields map[string]string) (string, error) {
	if len(fields) == 0 {
		return "", nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// albumArtistName is the artist an album is filed under.
func (f TrackFields) albumArtistName() string {
	if f.AlbumArtist != "" {
		return f.AlbumArtist
	}
	return PrimaryArtist(f.Artist)
}
