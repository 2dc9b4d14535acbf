package domain

import "testing"

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trim spaces", input: "  Heat  ", want: "heat"},
		{name: "lowercase", input: "The Thing", want: "the thing"},
		{name: "compress multiple spaces", input: "Blade   Runner", want: "blade runner"},
		{name: "tabs inside", input: "Blade\t\tRunner", want: "blade runner"},
		{name: "diacritics preserved", input: "Amélie", want: "amélie"},
		{name: "hyphens preserved", input: "Spider-Man", want: "spider-man"},
		{name: "apostrophes preserved", input: "Schindler's List", want: "schindler's list"},
		{name: "empty string", input: "", want: ""},
		{name: "only spaces", input: "   ", want: ""},
		{name: "tabs and spaces", input: "\t Heat \t", want: "heat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeTitle(tt.input); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeDedupeKey(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://letterboxd.com/film/heat/":     "letterboxd.com/film/heat",
		"  http://www.Letterboxd.com/film/Heat": "letterboxd.com/film/heat",
		"HTTPS://LETTERBOXD.COM/film/heat//":    "letterboxd.com/film/heat",
		"letterboxd.com/film/heat":              "letterboxd.com/film/heat",
	}
	for in, want := range tests {
		if got := NormalizeDedupeKey(in); got != want {
			t.Errorf("NormalizeDedupeKey(%q) = %q, want %q", in, got, want)
		}
	}
}
