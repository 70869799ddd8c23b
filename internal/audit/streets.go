package audit

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/osm-versailles/internal/osm"
	"github.com/osm-versailles/internal/symspell"
)

// First run of non-space characters: the street type in French addresses
// ("Rue de la Paroisse", "Avenue de Paris").
var reStreetType = regexp.MustCompile(`^\S+\.?`)

// ExpectedStreetTypes are the lower-case street types accepted as is.
var ExpectedStreetTypes = []string{
	"rue", "avenue", "boulevard",
	"route", "place", "villa",
	"impasse", "passage", "voie",
	"square", "sentier", "ruelle",
	"allée", "chemin",
	"rond-point", "cours",
	"parc", "promenade", "résidence",
	"domaine", "quai", "cour", "clos",
	"autoroute", "route nationale",
	"route départementale",
	"route communale", "hameau",
}

// StreetTypes collects street names whose first word is not an expected
// street type, grouped by that word.
type StreetTypes struct {
	expected   map[string]bool
	unexpected map[string]map[string]struct{}
	index      *symspell.SymSpell
}

// NewStreetTypes creates a street type audit against expected.
func NewStreetTypes(expected []string) *StreetTypes {
	s := &StreetTypes{
		expected:   make(map[string]bool, len(expected)),
		unexpected: make(map[string]map[string]struct{}),
	}
	s.index = symspell.New(symspell.DefaultConfig())
	for _, e := range expected {
		s.expected[strings.ToLower(e)] = true
		s.index.AddTerm(strings.ToLower(e), 1)
	}
	return s
}

func (s *StreetTypes) Observe(el *osm.Element) {
	if !el.IsNodeOrWay() {
		return
	}
	for _, tag := range el.Tags {
		if tag.Key == keyStreet {
			s.Add(tag.Value)
		}
	}
}

// Add audits a single street name.
func (s *StreetTypes) Add(street string) {
	streetType := reStreetType.FindString(street)
	if streetType == "" || s.expected[strings.ToLower(streetType)] {
		return
	}
	names, ok := s.unexpected[streetType]
	if !ok {
		names = make(map[string]struct{})
		s.unexpected[streetType] = names
	}
	names[street] = struct{}{}
}

// Unexpected returns each unexpected street type with its sorted street names.
func (s *StreetTypes) Unexpected() map[string][]string {
	out := make(map[string][]string, len(s.unexpected))
	for streetType, names := range s.unexpected {
		list := make([]string, 0, len(names))
		for name := range names {
			list = append(list, name)
		}
		sort.Strings(list)
		out[streetType] = list
	}
	return out
}

// Types returns the unexpected street types, sorted.
func (s *StreetTypes) Types() []string {
	out := make([]string, 0, len(s.unexpected))
	for streetType := range s.unexpected {
		out = append(out, streetType)
	}
	sort.Strings(out)
	return out
}

// Suggestions maps each unexpected street type to the closest expected
// type within two edits, ignoring a trailing period. Types with no close
// expected type are left out.
func (s *StreetTypes) Suggestions() map[string]string {
	out := make(map[string]string)
	for streetType := range s.unexpected {
		if best := s.index.LookupBest(strings.TrimSuffix(streetType, "."), 2); best != nil {
			out[streetType] = best.Term
		}
	}
	return out
}

// Replacement rewrites a street name prefix.
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// DefaultStreetReplacements fixes the misspelled or abbreviated street
// types found in the Versailles extract. Order matters: longer prefixes
// come before the prefixes they contain.
var DefaultStreetReplacements = []Replacement{
	{From: "allee", To: "Allée"},
	{From: "Allee", To: "Allée"},
	{From: "hameau", To: "Hameau"},
	{From: "Residence", To: "Résidence"},
	{From: "résidence", To: "Résidence"},
	{From: "Centre Commercial Régional", To: "Centre Commercial"},
	{From: "Centre commercial", To: "Centre Commercial"},
	{From: "C.C.", To: "Centre Commercial"},
	{From: "CCR", To: "Centre Commercial"},
	{From: "Élysée 2", To: "Résidence Élysée 2"},
	{From: "Aérodrome - ", To: ""},
	{From: "Otis", To: "Avenue Otis"},
	{From: "Jean Macé", To: "Rue Jean Macé"},
	{From: "Guyancourt", To: "Rue Louis Breguet"},
}

// LoadStreetReplacements reads an ordered list of replacements:
//
//	- from: allee
//	  to: Allée
func LoadStreetReplacements(path string) ([]Replacement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read street replacements: %w", err)
	}

	var out []Replacement
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse street replacements %s: %w", path, err)
	}
	for i, r := range out {
		if r.From == "" {
			return nil, fmt.Errorf("street replacement %d in %s has no \"from\"", i+1, path)
		}
	}
	return out, nil
}

type streetRule struct {
	re *regexp.Regexp
	to string
}

// StreetMapper applies prefix replacements to street names.
type StreetMapper struct {
	rules []streetRule
}

// NewStreetMapper compiles replacements. They are applied in order, each
// to the output of the previous one.
func NewStreetMapper(replacements []Replacement) *StreetMapper {
	m := &StreetMapper{rules: make([]streetRule, 0, len(replacements))}
	for _, r := range replacements {
		m.rules = append(m.rules, streetRule{
			re: regexp.MustCompile("^" + regexp.QuoteMeta(r.From)),
			to: r.To,
		})
	}
	return m
}

// Update returns the corrected street name. Only the matching prefix is
// replaced; the rest of the name is kept.
func (m *StreetMapper) Update(street string) string {
	for _, rule := range m.rules {
		street = rule.re.ReplaceAllLiteralString(street, rule.to)
	}
	return street
}
