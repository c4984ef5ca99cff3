package library

import (
	"reflect"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Basic cases
		{"Abbey Road", "abbey road"},
		{"THRILLER", "thriller"},

		// Punctuation replaced with space (then normalized)
		{"Abbey Road: Remaster", "abbey road remaster"},
		{"What's Going On", "what s going on"},
		{"Hello-World", "hello world"},

		// Diacritics and compatibility forms
		{"Björk", "bjork"},
		{"Beyoncé", "beyonce"},
		{"Ｆｕｌｌｗｉｄｔｈ", "fullwidth"},
		{"Sigur Rós", "sigur ros"},

		// Multiple spaces normalized
		{"Abbey  Road", "abbey road"},
		{"  Thriller  ", "thriller"},

		// Punctuation-only names keep an identity
		{"!!!", "!!!"},

		// Empty and edge cases
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeName(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStripFeaturing(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Song", "Song"},
		{"Song (feat. Someone)", "Song"},
		{"Song [ft. Someone]", "Song"},
		{"Song feat. Someone", "Song"},
		{"Song (Featuring A & B) (Remix)", "Song (Remix)"},
		{"Feather", "Feather"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := StripFeaturing(tt.input); got != tt.expected {
				t.Errorf("StripFeaturing(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseArtistCredits(t *testing.T) {
	tests := []struct {
		input    string
		expected []Credit
	}{
		{"", nil},
		{"Radiohead", []Credit{{"Radiohead", RolePrimary}}},
		{"Simon & Garfunkel", []Credit{{"Simon & Garfunkel", RolePrimary}}},
		{"A; B", []Credit{{"A", RolePrimary}, {"B", RolePrimary}}},
		{"A feat. B", []Credit{{"A", RolePrimary}, {"B", RoleFeatured}}},
		{"A ft. B, C & D", []Credit{
			{"A", RolePrimary}, {"B", RoleFeatured}, {"C", RoleFeatured}, {"D", RoleFeatured},
		}},
		{"A (featuring B)", []Credit{{"A", RolePrimary}, {"B", RoleFeatured}}},
		{"A with B", []Credit{{"A", RolePrimary}, {"B", RoleFeatured}}},
		{"A feat. a", []Credit{{"A", RolePrimary}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseArtistCredits(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ParseArtistCredits(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPrimaryArtist(t *testing.T) {
	if got := PrimaryArtist("Daft Punk feat. Pharrell Williams"); got != "Daft Punk" {
		t.Errorf("PrimaryArtist = %q, want %q", got, "Daft Punk")
	}
	if got := PrimaryArtist("  "); got != "" {
		t.Errorf("PrimaryArtist(blank) = %q, want empty", got)
	}
}

func TestSplitGenres(t *testing.T) {
	got := SplitGenres("Rock; Indie/Alt, rock")
	want := []string{"Rock", "Indie", "Alt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitGenres = %v, want %v", got, want)
	}
	if got := SplitGenres(""); got != nil {
		t.Errorf("SplitGenres(\"\") = %v, want nil", got)
	}
}
