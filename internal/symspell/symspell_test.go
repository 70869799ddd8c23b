package symspell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test dictionary of French street types
func buildTestDictionary() *SymSpell {
	s := New(DefaultConfig())
	for term, freq := range map[string]int64{
		"rue":       500,
		"avenue":    200,
		"allée":     150,
		"boulevard": 100,
		"impasse":   80,
		"place":     60,
		"chemin":    40,
		"résidence": 30,
		"route":     20,
	} {
		s.AddTerm(term, freq)
	}
	return s
}

func TestSymSpellLookup(t *testing.T) {
	symspell := buildTestDictionary()

	tests := []struct {
		name         string
		input        string
		wantTerm     string
		wantDistance int
	}{
		{name: "exact match ignores case", input: "Rue", wantTerm: "rue", wantDistance: 0},
		{name: "missing accent", input: "Allee", wantTerm: "allée", wantDistance: 1},
		{name: "transposition", input: "Avneue", wantTerm: "avenue", wantDistance: 1},
		{name: "missing letter", input: "Boulvard", wantTerm: "boulevard", wantDistance: 1},
		{name: "extra letter", input: "Impasses", wantTerm: "impasse", wantDistance: 1},
		{name: "two edits", input: "Residense", wantTerm: "résidence", wantDistance: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := symspell.LookupBest(tt.input, 2)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantTerm, got.Term)
			assert.Equal(t, tt.wantDistance, got.Distance)
		})
	}
}

func TestSymSpellNoSuggestion(t *testing.T) {
	symspell := buildTestDictionary()

	tests := []struct {
		name  string
		input string
		max   int
	}{
		{name: "too far", input: "Parc", max: 2},
		{name: "too short", input: "Av", max: 2},
		{name: "blank", input: "   ", max: 2},
		{name: "distance capped", input: "Residense", max: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, symspell.LookupBest(tt.input, tt.max))
		})
	}
}

func TestSymSpellOrdering(t *testing.T) {
	s := New(DefaultConfig())
	s.AddTerm("route", 10)
	s.AddTerm("rote", 5)
	s.AddTerm("roue", 50)

	got := s.Lookup("rote", 2)
	require.Len(t, got, 1, "exact match only")
	assert.Equal(t, "rote", got[0].Term)

	got = s.Lookup("rotue", 2)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"roue", "route", "rote"}, []string{got[0].Term, got[1].Term, got[2].Term})
}

func TestAddTerm(t *testing.T) {
	s := New(DefaultConfig())
	s.AddTerm("Allée", 1)
	s.AddTerm("allée", 2)
	s.AddTerm("av", 1)

	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains("ALLÉE"))
	assert.False(t, s.Contains("av"))

	got := s.LookupBest("allée", 0)
	require.NotNil(t, got)
	assert.Equal(t, Suggestion{Term: "Allée", Distance: 0, Frequency: 3}, *got)
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		max  int
		want int
	}{
		{"abc", "abc", 2, 0},
		{"abc", "acb", 2, 1},
		{"allée", "allee", 2, 1},
		{"", "abc", 3, 3},
		{"kitten", "sitting", 3, 3},
		{"kitten", "sitting", 2, -1},
		{"a", "abcd", 2, -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, distance([]rune(tt.a), []rune(tt.b), tt.max))
		})
	}
}
