package tags

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"
)

// parseFLAC parses a FLAC file, skipping an ID3v2 tag some taggers prepend.
func parseFLAC(path string) (*goflac.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := skipID3v2(f); err != nil {
		return nil, err
	}
	return goflac.ParseBytes(f)
}

// readFLACExtendedTags reads extended Vorbis comments from a FLAC file.
func readFLACExtendedTags(path string, t *Tag) {
	f, err := parseFLAC(path)
	if err != nil {
		return
	}

	comments := flacComments(f)
	if comments == nil {
		return
	}
	applyVorbisComments(comments, t)
}

// flacComments returns the Vorbis comments of a parsed FLAC file keyed by
// upper-case field name, or nil when the file has no comment block.
func flacComments(f *goflac.File) map[string]string {
	for _, meta := range f.Meta {
		if meta.Type != goflac.VorbisComment {
			continue
		}
		block, err := flacvorbis.ParseFromMetaDataBlock(*meta)
		if err != nil {
			return nil
		}
		comments := make(map[string]string, len(block.Comments))
		for _, c := range block.Comments {
			key, value, ok := strings.Cut(c, "=")
			if !ok || key == "" {
				continue
			}
			key = strings.ToUpper(key)
			if _, seen := comments[key]; !seen {
				comments[key] = value
			}
		}
		return comments
	}
	return nil
}

// applyVorbisComments fills extended fields from Vorbis comments.
func applyVorbisComments(comments map[string]string, t *Tag) {
	t.Date = comments["DATE"]
	if t.Date == "" {
		t.Date = comments["YEAR"]
	}
	t.OriginalDate = comments["ORIGINALDATE"]
	if t.OriginalDate == "" {
		t.OriginalDate = comments["ORIGINALYEAR"]
	}

	if t.Composer == "" {
		t.Composer = comments["COMPOSER"]
	}
	if t.Lyrics == "" {
		t.Lyrics = comments["LYRICS"]
		if t.Lyrics == "" {
			t.Lyrics = comments["UNSYNCEDLYRICS"]
		}
	}

	t.ArtistSortName = comments["ARTISTSORT"]
	t.Label = comments["LABEL"]
	t.CatalogNumber = comments["CATALOGNUMBER"]
	t.Barcode = comments["BARCODE"]
	t.Media = comments["MEDIA"]
	t.ReleaseStatus = comments["RELEASESTATUS"]
	t.ReleaseType = comments["RELEASETYPE"]
	t.Script = comments["SCRIPT"]
	t.Country = comments["RELEASECOUNTRY"]
	t.ISRC = comments["ISRC"]

	t.MBArtistID = comments["MUSICBRAINZ_ARTISTID"]
	t.MBReleaseID = comments["MUSICBRAINZ_ALBUMID"]
	t.MBReleaseGroupID = comments["MUSICBRAINZ_RELEASEGROUPID"]
	t.MBRecordingID = comments["MUSICBRAINZ_TRACKID"]
	t.MBTrackID = comments["MUSICBRAINZ_RELEASETRACKID"]

	// Track/disc totals (dhowden/tag may not return these)
	if t.TotalTracks == 0 {
		if n, err := strconv.Atoi(comments["TOTALTRACKS"]); err == nil {
			t.TotalTracks = n
		}
	}
	if t.TotalDiscs == 0 {
		if n, err := strconv.Atoi(comments["TOTALDISCS"]); err == nil {
			t.TotalDiscs = n
		}
	}
}

// flacFrontCover returns the best embedded picture of a parsed FLAC file:
// the front cover when present, otherwise the first picture.
func flacFrontCover(f *goflac.File) (data []byte, mimeType string) {
	for _, meta := range f.Meta {
		if meta.Type != goflac.Picture {
			continue
		}
		pic, err := flacpicture.ParseFromMetaDataBlock(*meta)
		if err != nil || len(pic.ImageData) == 0 {
			continue
		}
		if pic.PictureType == flacpicture.PictureTypeFrontCover {
			return pic.ImageData, pic.MIME
		}
		if data == nil {
			data, mimeType = pic.ImageData, pic.MIME
		}
	}
	return data, mimeType
}

// flacStreamInfo decodes the STREAMINFO block of a parsed FLAC file.
func flacStreamInfo(f *goflac.File) (info AudioInfo, ok bool) {
	for _, meta := range f.Meta {
		if meta.Type != goflac.StreamInfo || len(meta.Data) < 18 {
			continue
		}
		data := meta.Data

		// Bytes 10-13: sample rate (20 bits), channels (3 bits), bits per sample (5 bits)
		sampleRate := int(data[10])<<12 | int(data[11])<<4 | int(data[12])>>4
		channels := int(data[12]>>1)&0x07 + 1
		bitsPerSample := (int(data[12])&0x01)<<4 | int(data[13])>>4 + 1

		// Total samples: 36 bits starting at the low nibble of byte 13
		totalSamples := int64(data[13]&0x0F)<<32 | int64(data[14])<<24 | int64(data[15])<<16 | int64(data[16])<<8 | int64(data[17])

		info = AudioInfo{
			Codec:      CodecFLAC,
			SampleRate: sampleRate,
			BitDepth:   bitsPerSample,
			Channels:   channels,
		}
		if sampleRate > 0 {
			info.Duration = samplesToDuration(totalSamples, sampleRate)
		}
		return info, true
	}
	return AudioInfo{}, false
}
