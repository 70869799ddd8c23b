package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// French postcode: exactly five digits, nothing else.
var rePostcode = regexp.MustCompile(`^\d{5}$`)

// ParseFloat converts string to float64, ignoring surrounding whitespace
func ParseFloat(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	return strconv.ParseFloat(trimmed, 64)
}

// IsNumber reports whether s can be read as a float
func IsNumber(s string) bool {
	_, err := ParseFloat(s)
	return err == nil
}

// IsPostcode reports whether s follows the five digit French convention.
// The value is not trimmed; callers decide whether whitespace is an error.
func IsPostcode(s string) bool {
	return rePostcode.MatchString(s)
}

// Text returns s in Unicode NFC form so that decomposed accents coming
// from OSM editors compare equal to the precomposed spellings used in the
// curated tables.
func Text(s string) string {
	return norm.NFC.String(s)
}

// Title upper-cases the first cased letter of every word and lower-cases
// the rest. A word starts after any rune that has no case, so hyphens,
// apostrophes, spaces and digits all begin a new word:
//
//	"SAINT-CYR-L'ECOLE" -> "Saint-Cyr-L'Ecole"
//	"le chesnay"        -> "Le Chesnay"
//
// Letters use the full Unicode case mappings, so one rune may become
// several ("ßaint" -> "Ssaint"). Mappings are applied rune by rune, so
// context rules such as the Greek final sigma are not.
//
// golang.org/x/text/cases.Title segments on Unicode word boundaries
// instead, which keeps "l'ecole" as one word; it is only used here to
// case one rune at a time.
func Title(s string) string {
	upper := cases.Title(language.Und, cases.NoLower)
	lower := cases.Lower(language.Und)

	var b strings.Builder
	b.Grow(len(s))

	prevCased := false
	for _, r := range s {
		switch {
		case !isCased(r):
			b.WriteRune(r)
		case prevCased:
			b.WriteString(lower.String(string(r)))
		default:
			b.WriteString(upper.String(string(r)))
		}
		prevCased = isCased(r)
	}
	return b.String()
}

func isCased(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
}
