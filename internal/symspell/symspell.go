// Package symspell implements the SymSpell spelling correction algorithm
// over a small dictionary of terms, such as French street types.
//
// SymSpell pre-computes every deletion of each dictionary term within the
// maximum edit distance, so a lookup only generates the deletions of the
// input and checks them against the index. Terms are matched case
// insensitively on runes, so accents count as one character.
package symspell

import (
	"sort"
	"strings"
)

// Config holds SymSpell parameters.
type Config struct {
	// MaxEditDistance is the maximum Damerau-Levenshtein distance for corrections.
	MaxEditDistance int

	// MinTermLength is the minimum term length, in runes, to index or look up.
	MinTermLength int
}

// DefaultConfig returns a distance of 2 and a minimum length of 3.
func DefaultConfig() Config {
	return Config{
		MaxEditDistance: 2,
		MinTermLength:   3,
	}
}

// Suggestion is a dictionary term close to the input.
type Suggestion struct {
	// Term is the dictionary spelling of the suggestion.
	Term string

	// Distance is the edit distance from the input to this suggestion.
	Distance int

	// Frequency is the weight the term was added with. Higher frequency
	// terms are preferred when distances are equal.
	Frequency int64
}

// SymSpell implements the Symmetric Delete spelling correction algorithm.
type SymSpell struct {
	// terms maps folded keys to their dictionary spelling
	terms map[string]string

	frequencies map[string]int64

	// deletes maps delete variants to the keys they came from
	deletes map[string][]string

	config Config
}

// New creates an empty dictionary.
func New(config Config) *SymSpell {
	return &SymSpell{
		terms:       make(map[string]string),
		frequencies: make(map[string]int64),
		deletes:     make(map[string][]string),
		config:      config,
	}
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// AddTerm adds a term with its frequency. Adding a term again adds to its
// frequency and keeps the first spelling.
func (s *SymSpell) AddTerm(term string, frequency int64) {
	key := fold(term)
	if len([]rune(key)) < s.config.MinTermLength {
		return
	}

	if _, ok := s.terms[key]; ok {
		s.frequencies[key] += frequency
		return
	}
	s.terms[key] = strings.TrimSpace(term)
	s.frequencies[key] = frequency

	for del := range deletes([]rune(key), s.config.MaxEditDistance) {
		s.deletes[del] = append(s.deletes[del], key)
	}
}

// Len is the number of distinct terms.
func (s *SymSpell) Len() int {
	return len(s.terms)
}

// Contains checks if a term exists in the dictionary, ignoring case.
func (s *SymSpell) Contains(term string) bool {
	_, ok := s.terms[fold(term)]
	return ok
}

// Lookup finds the terms within maxDistance of input, sorted by distance,
// then frequency (descending), then term.
func (s *SymSpell) Lookup(input string, maxDistance int) []Suggestion {
	key := fold(input)
	if len([]rune(key)) < s.config.MinTermLength {
		return nil
	}
	maxDistance = min(maxDistance, s.config.MaxEditDistance)

	if term, ok := s.terms[key]; ok {
		return []Suggestion{{Term: term, Distance: 0, Frequency: s.frequencies[key]}}
	}

	in := []rune(key)
	seen := make(map[string]bool)
	var candidates []Suggestion

	consider := func(k string) {
		if seen[k] {
			return
		}
		seen[k] = true
		if d := distance(in, []rune(k), maxDistance); d >= 0 {
			candidates = append(candidates, Suggestion{
				Term:      s.terms[k],
				Distance:  d,
				Frequency: s.frequencies[k],
			})
		}
	}

	variants := deletes(in, maxDistance)
	variants[key] = struct{}{}
	for del := range variants {
		for _, k := range s.deletes[del] {
			consider(k)
		}
		// the input has extra characters
		if _, ok := s.terms[del]; ok {
			consider(del)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Term < b.Term
	})
	return candidates
}

// LookupBest returns the single best suggestion, or nil if none found.
func (s *SymSpell) LookupBest(input string, maxDistance int) *Suggestion {
	suggestions := s.Lookup(input, maxDistance)
	if len(suggestions) == 0 {
		return nil
	}
	return &suggestions[0]
}

// deletes returns every string obtained by removing up to maxDistance runes
// from term.
func deletes(term []rune, maxDistance int) map[string]struct{} {
	out := make(map[string]struct{})
	var walk func(t []rune, left int)
	walk = func(t []rune, left int) {
		if left <= 0 || len(t) <= 1 {
			return
		}
		for i := range t {
			del := make([]rune, 0, len(t)-1)
			del = append(del, t[:i]...)
			del = append(del, t[i+1:]...)
			key := string(del)
			if _, ok := out[key]; ok {
				continue
			}
			out[key] = struct{}{}
			walk(del, left-1)
		}
	}
	walk(term, maxDistance)
	return out
}

// distance is the optimal string alignment (restricted Damerau-Levenshtein)
// distance between a and b, or -1 if it exceeds maxDistance.
func distance(a, b []rune, maxDistance int) int {
	if abs(len(a)-len(b)) > maxDistance {
		return -1
	}

	prevPrev := make([]int, len(b)+1)
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		rowMin := i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				curr[j] = min(curr[j], prevPrev[j-2]+1)
			}
			rowMin = min(rowMin, curr[j])
		}
		if rowMin > maxDistance {
			return -1
		}
		prevPrev, prev, curr = prev, curr, prevPrev
	}

	if prev[len(b)] > maxDistance {
		return -1
	}
	return prev[len(b)]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
