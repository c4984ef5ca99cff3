// Package tags reads audio metadata and stream properties from music files.
// It is the default metadata extractor of the library scanner.
package tags

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// File extensions handled by format-specific readers.
const (
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
	ExtOPUS = ".opus"
	ExtOGG  = ".ogg"
	ExtOGA  = ".oga"
	ExtM4A  = ".m4a"
	ExtM4B  = ".m4b"
	ExtMP4  = ".mp4"
	ExtALAC = ".alac"
	ExtAAC  = ".aac"
	ExtWAV  = ".wav"
	ExtAIF  = ".aif"
	ExtAIFF = ".aiff"
)

// Codec names reported in AudioInfo.Codec.
const (
	CodecMP3    = "MP3"
	CodecFLAC   = "FLAC"
	CodecALAC   = "ALAC"
	CodecAAC    = "AAC"
	CodecOpus   = "OPUS"
	CodecVorbis = "VORBIS"
	CodecWAV    = "WAV"
	CodecAIFF   = "AIFF"
	CodecM4A    = "M4A" // MP4 container with an unrecognized codec
)

// id3Magic is the magic bytes for ID3v2 header detection.
const id3Magic = "ID3"

// IsLossless reports whether codec stores audio without loss.
func IsLossless(codec string) bool {
	switch codec {
	case CodecFLAC, CodecALAC, CodecWAV, CodecAIFF:
		return true
	}
	return false
}

// Tag contains the text metadata of a music file.
type Tag struct {
	Path        string
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	Composer    string
	Genre       string

	TrackNumber int
	TotalTracks int
	DiscNumber  int
	TotalDiscs  int

	Date         string // Release date (YYYY-MM-DD or YYYY)
	OriginalDate string

	ArtistSortName string
	Comment        string
	Lyrics         string

	Label         string
	CatalogNumber string
	Barcode       string
	Media         string
	ReleaseStatus string
	ReleaseType   string
	Script        string
	Country       string

	ISRC string

	MBArtistID       string
	MBReleaseID      string
	MBReleaseGroupID string
	MBRecordingID    string
	MBTrackID        string
}

// Year derives the year from the Date field.
// Returns 0 if Date is empty or cannot be parsed.
func (t *Tag) Year() int {
	if t.Date == "" {
		return 0
	}
	year := t.Date
	if len(year) > 4 {
		year = year[:4]
	}
	y, _ := strconv.Atoi(year)
	return y
}

// AudioInfo contains audio stream properties (not tags).
type AudioInfo struct {
	Duration   time.Duration
	Codec      string
	Bitrate    int // kbps
	SampleRate int
	BitDepth   int // 0 for lossy codecs
	Channels   int
}

// Metadata is everything the scanner stores about one file.
type Metadata struct {
	Tag
	AudioInfo

	FileSize int64

	// Artwork is the embedded picture, or the folder cover when the file
	// has none.
	Artwork     []byte
	ArtworkMIME string
}

// HasArtwork reports whether any artwork was found for the file.
func (m *Metadata) HasArtwork() bool {
	return len(m.Artwork) > 0
}

// Extra returns the open-ended fields that have no dedicated column.
// Keys with empty values are omitted.
func (m *Metadata) Extra() map[string]string {
	fields := map[string]string{
		"artist_sort":                  m.ArtistSortName,
		"barcode":                      m.Barcode,
		"catalog_number":               m.CatalogNumber,
		"comment":                      m.Comment,
		"country":                      m.Country,
		"isrc":                         m.ISRC,
		"label":                        m.Label,
		"lyrics":                       m.Lyrics,
		"media":                        m.Media,
		"musicbrainz_album_id":         m.MBReleaseID,
		"musicbrainz_artist_id":        m.MBArtistID,
		"musicbrainz_recording_id":     m.MBRecordingID,
		"musicbrainz_release_group_id": m.MBReleaseGroupID,
		"musicbrainz_track_id":         m.MBTrackID,
		"original_date":                m.OriginalDate,
		"release_date":                 m.Date,
		"release_status":               m.ReleaseStatus,
		"release_type":                 m.ReleaseType,
		"script":                       m.Script,
	}
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	return fields
}

// IsMusicFile returns true if the path has an extension this package can read.
func IsMusicFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtMP3, ExtFLAC, ExtOPUS, ExtOGG, ExtOGA, ExtM4A, ExtM4B, ExtMP4,
		ExtALAC, ExtAAC, ExtWAV, ExtAIF, ExtAIFF:
		return true
	}
	return false
}

// taglibTags wraps a taglib result map with helper methods.
type taglibTags map[string][]string

// get returns the first value for any of the given keys, or empty string if not found.
func (t taglibTags) get(keys ...string) string {
	for _, key := range keys {
		if values, ok := t[key]; ok && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// getInt returns the first value as an integer, or 0 if not found or invalid.
func (t taglibTags) getInt(key string) int {
	if values, ok := t[key]; ok && len(values) > 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(values[0])); err == nil {
			return n
		}
	}
	return 0
}

// parseNumberPair parses a track/disc number that may be "N" or "N/M" format.
func (t taglibTags) parseNumberPair(key string) (num, total int) {
	return parseTrackNumber(t.get(key))
}

// parseTrackNumber parses a track number string like "5" or "5/10".
func parseTrackNumber(s string) (num, total int) {
	if s == "" {
		return 0, 0
	}
	parts := strings.SplitN(s, "/", 2)
	num, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	if len(parts) == 2 {
		total, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return num, total
}
