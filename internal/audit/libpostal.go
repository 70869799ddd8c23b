//go:build libpostal

package audit

import (
	postal "github.com/openvenues/gopostal/parser"
)

// LibpostalAvailable reports whether ParseStreet is backed by libpostal.
const LibpostalAvailable = true

// ParseStreet runs libpostal's address parser on a street name and returns
// the labelled components (road, house_number, suburb, ...).
func ParseStreet(street string) (map[string]string, error) {
	components := postal.ParseAddressOptions(street, postal.ParserOptions{
		Language: "fr",
		Country:  "fr",
	})

	out := make(map[string]string, len(components))
	for _, c := range components {
		out[c.Label] = c.Value
	}
	return out, nil
}
