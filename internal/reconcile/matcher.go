package reconcile

import (
	"github.com/pmezard/go-difflib/difflib"

	"github.com/osm-versailles/internal/normalize"
	"github.com/osm-versailles/internal/reference"
)

// BestMatch picks the reference spelling of city among the names listed
// for postcode.
//
// With a city, every listed name is scored against the title-cased city
// and the best scoring name is returned. With no city, the first listed
// name is returned. An unknown postcode yields "" either way.
func BestMatch(postcode, city string, table *reference.Table) string {
	names := table.Cities(postcode)

	if city == "" {
		if len(names) == 0 {
			return ""
		}
		return names[0]
	}

	candidate := normalize.Title(city)

	bestName := ""
	bestRatio := 0.0
	for _, name := range names {
		ratio := Similarity(name, candidate)
		// Ties go to the later name, and a best of exactly zero is always
		// replaced, so when nothing scores above zero the last name wins.
		// This looks unintended (">" was probably meant) but existing
		// exports depend on it; do not change without re-running them.
		if ratio >= bestRatio || bestRatio == 0.0 {
			bestName = name
			bestRatio = ratio
		}
	}
	return bestName
}

// Similarity is the difflib SequenceMatcher ratio of a and b compared rune
// by rune: 2*M / (len(a)+len(b)) where M is the number of runes in the
// matching blocks. Two empty strings score 1.
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
