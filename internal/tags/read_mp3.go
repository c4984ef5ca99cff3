package tags

import (
	"errors"

	"github.com/bogem/id3v2/v2"
)

var errNoID3Tag = errors.New("no ID3v2 tag")

// readMP3ExtendedTags reads extended ID3v2 tags from an MP3 file.
func readMP3ExtendedTags(path string, t *Tag) {
	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return
	}
	defer id3tag.Close()

	applyID3ExtendedTags(id3tag, t)
}

func applyID3ExtendedTags(id3tag *id3v2.Tag, t *Tag) {
	// Read date frames - try ID3v2.4 first, then fall back to ID3v2.3
	if date := getID3TextFrame(id3tag, "TDRC"); date != "" {
		t.Date = date
	} else if year := getID3TextFrame(id3tag, "TYER"); year != "" {
		t.Date = year
		// TDAT is DDMM
		if tdat := getID3TextFrame(id3tag, "TDAT"); len(tdat) == 4 {
			t.Date = year + "-" + tdat[2:4] + "-" + tdat[0:2]
		}
	}

	t.OriginalDate = getID3TextFrame(id3tag, "TDOR")
	if t.OriginalDate == "" {
		t.OriginalDate = getID3TextFrame(id3tag, "TORY")
	}
	if t.OriginalDate == "" {
		t.OriginalDate = getID3TXXXFrame(id3tag, "ORIGINALYEAR")
	}

	if t.Composer == "" {
		t.Composer = getID3TextFrame(id3tag, "TCOM")
	}
	for _, frame := range id3tag.GetFrames(id3tag.CommonID("Unsynchronised lyrics/text transcription")) {
		if uslt, ok := frame.(id3v2.UnsynchronisedLyricsFrame); ok && t.Lyrics == "" {
			t.Lyrics = uslt.Lyrics
		}
	}
	for _, frame := range id3tag.GetFrames(id3tag.CommonID("Comments")) {
		if comm, ok := frame.(id3v2.CommentFrame); ok && t.Comment == "" {
			t.Comment = comm.Text
		}
	}

	for id, dst := range map[string]*string{
		"TSOP": &t.ArtistSortName,
		"TPUB": &t.Label,
		"TMED": &t.Media,
		"TSRC": &t.ISRC,
	} {
		*dst = getID3TextFrame(id3tag, id)
	}
	for desc, dst := range map[string]*string{
		"MusicBrainz Artist Id":             &t.MBArtistID,
		"MusicBrainz Album Id":              &t.MBReleaseID,
		"MusicBrainz Release Group Id":      &t.MBReleaseGroupID,
		"MusicBrainz Release Track Id":      &t.MBTrackID,
		"MusicBrainz Album Status":          &t.ReleaseStatus,
		"MusicBrainz Album Type":            &t.ReleaseType,
		"MusicBrainz Album Release Country": &t.Country,
		"CATALOGNUMBER":                     &t.CatalogNumber,
		"BARCODE":                           &t.Barcode,
		"SCRIPT":                            &t.Script,
	} {
		*dst = getID3TXXXFrame(id3tag, desc)
	}

	// UFID frame carries the MusicBrainz Recording ID
	for _, frame := range id3tag.GetFrames("UFID") {
		if ufid, ok := frame.(id3v2.UFIDFrame); ok && ufid.OwnerIdentifier == "http://musicbrainz.org" {
			t.MBRecordingID = string(ufid.Identifier)
			break
		}
	}
}

// readMP3WithID3v2Fallback reads MP3 metadata using only the id3v2 library.
// This is used as a fallback when dhowden/tag fails (e.g., on some UTF-16 encoded tags).
func readMP3WithID3v2Fallback(path string) (*Tag, error) {
	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, err
	}
	defer id3tag.Close()

	if id3tag.Count() == 0 {
		return nil, errNoID3Tag
	}

	track, totalTracks := parseTrackNumber(getID3TextFrame(id3tag, "TRCK"))
	disc, totalDiscs := parseTrackNumber(getID3TextFrame(id3tag, "TPOS"))

	date := ""
	if yearStr := id3tag.Year(); len(yearStr) >= 4 {
		date = yearStr[:4]
	}

	t := &Tag{
		Path:        path,
		Title:       id3tag.Title(),
		Artist:      id3tag.Artist(),
		AlbumArtist: getID3TextFrame(id3tag, "TPE2"),
		Album:       id3tag.Album(),
		Date:        date,
		TrackNumber: track,
		TotalTracks: totalTracks,
		DiscNumber:  disc,
		TotalDiscs:  totalDiscs,
		Genre:       id3tag.Genre(),
	}

	applyID3ExtendedTags(id3tag, t)

	return t, nil
}

// getID3TextFrame reads a text frame value from an ID3v2 tag.
func getID3TextFrame(id3tag *id3v2.Tag, frameID string) string {
	frames := id3tag.GetFrames(frameID)
	if len(frames) == 0 {
		return ""
	}
	if tf, ok := frames[0].(id3v2.TextFrame); ok {
		return tf.Text
	}
	return ""
}

// getID3TXXXFrame reads a user-defined text frame (TXXX) value.
func getID3TXXXFrame(id3tag *id3v2.Tag, description string) string {
	for _, frame := range id3tag.GetFrames("TXXX") {
		if txxx, ok := frame.(id3v2.UserDefinedTextFrame); ok && txxx.Description == description {
			return txxx.Value
		}
	}
	return ""
}
