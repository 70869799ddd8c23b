// Package overrides holds the curated exceptions the reference table
// cannot answer: postcodes for cities tagged without one, and city names
// for special delivery postcodes La Poste does not list.
package overrides

import (
	"bytes"
	"fmt"
	"maps"
	"os"

	"github.com/goccy/go-yaml"
)

// Tables is the pair of curated mappings. Keys are matched exactly.
type Tables struct {
	CityToPostcode map[string]string `yaml:"city_to_postcode"`
	PostcodeToCity map[string]string `yaml:"postcode_to_city"`
}

// Cities found in the Versailles extract with no addr:postcode tag.
// Spelling variants are listed separately because lookups are exact.
var defaultCityToPostcode = map[string]string{
	"78170":                  "78170",
	"Bougival":               "78380",
	"Buc":                    "78530",
	"Croissy-sur-Seine":      "78290",
	"Guyancourt":             "78280",
	"La Celle-Saint-Cloud":   "78170",
	"Le Chesnay":             "78150",
	"le Chesnay":             "78150",
	"Le Vésinet":             "78110",
	"Marly-le-Roi":           "78160",
	"Montesson":              "78360",
	"Montigny-le-Bretonneux": "78180",
	"Noisy-le-Roi":           "78590",
	"Roquencourt":            "78150",
	"Saint-Cyr-l'École":      "78210",
	"Saint-Germain-en-Laye":  "78100",
	"Versailles":             "78000",
	"Viroflay":               "78220",
}

// CEDEX and company delivery codes.
var defaultPostcodeToCity = map[string]string{
	"78103": "St Germain En Laye",
	"78101": "St Germain En Laye",
	"78884": "St Quentin En Yvelines",
	"92852": "Rueil Malmaison",
}

// Default returns a fresh copy of the built-in tables.
func Default() Tables {
	return Tables{
		CityToPostcode: maps.Clone(defaultCityToPostcode),
		PostcodeToCity: maps.Clone(defaultPostcodeToCity),
	}
}

// LoadFile reads tables from a YAML file. A section missing from the file
// keeps its built-in default; a section present replaces it entirely.
//
//	city_to_postcode:
//	  Versailles: "78000"
//	postcode_to_city:
//	  "78103": St Germain En Laye
func LoadFile(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read overrides %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML override data. See LoadFile.
func Parse(data []byte) (Tables, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Default(), nil
	}

	var file Tables
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Tables{}, fmt.Errorf("parse overrides: %w", err)
	}

	tables := Default()
	if file.CityToPostcode != nil {
		tables.CityToPostcode = file.CityToPostcode
	}
	if file.PostcodeToCity != nil {
		tables.PostcodeToCity = file.PostcodeToCity
	}
	return tables, nil
}

// Clone returns a deep copy, so callers can hold tables that nobody else
// can modify.
func (t Tables) Clone() Tables {
	return Tables{
		CityToPostcode: maps.Clone(t.CityToPostcode),
		PostcodeToCity: maps.Clone(t.PostcodeToCity),
	}
}

// PostcodeFor returns the curated postcode of city.
func (t Tables) PostcodeFor(city string) (string, bool) {
	postcode, ok := t.CityToPostcode[city]
	return postcode, ok
}

// CityFor returns the curated city of a special postcode.
func (t Tables) CityFor(postcode string) (string, bool) {
	city, ok := t.PostcodeToCity[postcode]
	return city, ok
}
