package tags

import (
	"go.senan.xyz/taglib"
)

// readWithTaglib reads metadata using TagLib as fallback when dhowden/tag fails.
func readWithTaglib(path string) (*Tag, error) {
	rawTags, err := taglib.ReadTags(path)
	if err != nil {
		return nil, err
	}
	tags := taglibTags(rawTags)

	trackNum, trackTotal := tags.parseNumberPair(taglib.TrackNumber)
	discNum, discTotal := tags.parseNumberPair(taglib.DiscNumber)

	t := &Tag{
		Path:        path,
		Title:       tags.get(taglib.Title),
		Artist:      tags.get(taglib.Artist),
		AlbumArtist: tags.get(taglib.AlbumArtist),
		Album:       tags.get(taglib.Album),
		Composer:    tags.get(taglib.Composer),
		Genre:       tags.get(taglib.Genre),
		Comment:     tags.get(taglib.Comment),
		TrackNumber: trackNum,
		TotalTracks: trackTotal,
		DiscNumber:  discNum,
		TotalDiscs:  discTotal,
	}

	applyTaglibExtendedTags(tags, t)

	return t, nil
}

// readTaglibExtendedTags reads extended tags using TagLib.
func readTaglibExtendedTags(path string, t *Tag) {
	rawTags, err := taglib.ReadTags(path)
	if err != nil {
		return
	}
	applyTaglibExtendedTags(taglibTags(rawTags), t)
}

func applyTaglibExtendedTags(tags taglibTags, t *Tag) {
	if date := tags.get(taglib.Date); date != "" {
		t.Date = date
	}
	t.OriginalDate = tags.get(taglib.OriginalDate, "ORIGINALYEAR")

	if t.Composer == "" {
		t.Composer = tags.get(taglib.Composer)
	}
	if t.Lyrics == "" {
		t.Lyrics = tags.get(taglib.Lyrics, "UNSYNCEDLYRICS")
	}

	t.ArtistSortName = tags.get(taglib.ArtistSort)
	t.Label = tags.get(taglib.Label, "LABEL")
	t.CatalogNumber = tags.get(taglib.CatalogNumber, "CATALOGNUMBER")
	t.Barcode = tags.get(taglib.Barcode, "BARCODE")
	t.Media = tags.get(taglib.Media, "MEDIA")
	t.ReleaseStatus = tags.get(taglib.ReleaseStatus, "RELEASESTATUS")
	t.ReleaseType = tags.get(taglib.ReleaseType, "RELEASETYPE")
	t.Script = tags.get(taglib.Script, "SCRIPT")
	t.Country = tags.get(taglib.ReleaseCountry, "RELEASECOUNTRY")
	t.ISRC = tags.get(taglib.ISRC, "ISRC")

	// MusicBrainz IDs - TagLib underscore keys first, then the spaced
	// variants written by some MP4 taggers
	t.MBArtistID = tags.get(
		taglib.MusicBrainzArtistID,
		"MUSICBRAINZ ARTIST ID",
		"MusicBrainz Artist Id",
	)
	t.MBReleaseID = tags.get(
		taglib.MusicBrainzAlbumID,
		"MUSICBRAINZ ALBUM ID",
		"MusicBrainz Album Id",
	)
	t.MBReleaseGroupID = tags.get(
		taglib.MusicBrainzReleaseGroupID,
		"MUSICBRAINZ RELEASE GROUP ID",
		"MusicBrainz Release Group Id",
	)
	t.MBRecordingID = tags.get(
		taglib.MusicBrainzTrackID,
		"MUSICBRAINZ TRACK ID",
		"MusicBrainz Track Id",
	)
	t.MBTrackID = tags.get(
		taglib.MusicBrainzReleaseTrackID,
		"MUSICBRAINZ RELEASE TRACK ID",
		"MusicBrainz Release Track Id",
	)

	if t.TotalTracks == 0 {
		t.TotalTracks = tags.getInt("TOTALTRACKS")
	}
	if t.TotalDiscs == 0 {
		t.TotalDiscs = tags.getInt("TOTALDISCS")
	}
}
