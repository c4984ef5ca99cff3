package library

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	punctuationRe   = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	multipleSpaceRe = regexp.MustCompile(`\s+`)

	// "feat." style separators between primary and featured artists
	featuringRe = regexp.MustCompile(`(?i)\s+[\(\[]?(?:feat\.?|ft\.?|featuring|with)\s+`)

	// "(feat. X)" qualifiers and trailing "feat. X" in titles
	titleFeatBracketRe = regexp.MustCompile(`(?i)\s*[\(\[](?:feat\.?|ft\.?|featuring)\s[^\)\]]*[\)\]]`)
	titleFeatTrailRe   = regexp.MustCompile(`(?i)\s+(?:feat\.?|ft\.?|featuring)\s.*$`)

	featuredSplitRe = regexp.MustCompile(`\s*(?:,|&|;)\s*`)
	genreSplitRe    = regexp.MustCompile(`\s*[;,/]\s*`)
)

// NormalizeName normalizes a title or name for identity comparison:
// compatibility decomposition with combining marks removed, lowercase,
// punctuation replaced with spaces and whitespace collapsed.
//
// Names made only of punctuation ("!!!") normalize to their lowercase
// trimmed form so they keep an identity.
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = punctuationRe.ReplaceAllString(folded, " ")
	folded = multipleSpaceRe.ReplaceAllString(folded, " ")
	folded = strings.TrimSpace(folded)
	if folded == "" {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return folded
}

// StripFeaturing removes featured-artist qualifiers from a title.
func StripFeaturing(title string) string {
	title = titleFeatBracketRe.ReplaceAllString(title, "")
	title = titleFeatTrailRe.ReplaceAllString(title, "")
	return strings.TrimSpace(title)
}

// Artist credit roles.
const (
	RolePrimary  = "primary"
	RoleFeatured = "featured"
)

// Credit is one artist named in an artist tag.
type Credit struct {
	Name string
	Role string
}

// ParseArtistCredits splits an artist tag into primary and featured
// credits. "A; B feat. C & D" yields primary A and B, featured C and D.
// Names are deduplicated by their normalized form, first role wins.
func ParseArtistCredits(s string) []Credit {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	primaryPart, featuredPart := s, ""
	if loc := featuringRe.FindStringIndex(s); loc != nil && loc[0] > 0 {
		primaryPart = s[:loc[0]]
		featuredPart = strings.TrimRight(s[loc[1]:], ")] ")
	}

	var credits []Credit
	seen := make(map[string]bool)
	add := func(name, role string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := NormalizeName(name)
		if seen[key] {
			return
		}
		seen[key] = true
		credits = append(credits, Credit{Name: name, Role: role})
	}

	for name := range strings.SplitSeq(primaryPart, ";") {
		add(name, RolePrimary)
	}
	for _, name := range featuredSplitRe.Split(featuredPart, -1) {
		add(name, RoleFeatured)
	}
	return credits
}

// PrimaryArtist returns the first primary credit of an artist tag.
func PrimaryArtist(s string) string {
	for _, c := range ParseArtistCredits(s) {
		if c.Role == RolePrimary {
			return c.Name
		}
	}
	return strings.TrimSpace(s)
}

// SplitGenres splits a genre tag on ";", "," and "/".
// Duplicates are removed case-insensitively.
func SplitGenres(s string) []string {
	var genres []string
	seen := make(map[string]bool)
	for _, g := range genreSplitRe.Split(strings.TrimSpace(s), -1) {
		g = strings.TrimSpace(g)
		if g == "" || seen[strings.ToLower(g)] {
			continue
		}
		seen[strings.ToLower(g)] = true
		genres = append(genres, g)
	}
	return genres
}
