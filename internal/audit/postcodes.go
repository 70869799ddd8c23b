package audit

import (
	"strings"

	"github.com/osm-versailles/internal/normalize"
	"github.com/osm-versailles/internal/osm"
)

const (
	keyPostcode = "addr:postcode"
	keyCity     = "addr:city"
	keyStreet   = "addr:street"
)

// PostcodeCounts classifies addr:postcode tags on nodes.
type PostcodeCounts struct {
	Null      int `json:"Null"`
	Empty     int `json:"Empty"`
	Incorrect int `json:"Incorrect"`
	Correct   int `json:"Correct"`
}

// Postcodes checks that node postcodes are five digits.
type Postcodes struct {
	Counts PostcodeCounts
	// Incorrect values seen, with their number of occurrences.
	Invalid map[string]int
}

// NewPostcodes creates a postcode format audit.
func NewPostcodes() *Postcodes {
	return &Postcodes{Invalid: make(map[string]int)}
}

func (p *Postcodes) Observe(el *osm.Element) {
	if el.Kind != osm.KindNode {
		return
	}

	// every addr:postcode tag counts, not only the first
	for _, tag := range el.Tags {
		if tag.Key != keyPostcode {
			continue
		}
		value := strings.TrimSpace(tag.Value)
		switch {
		case !tag.HasValue:
			p.Counts.Null++
		case value == "":
			p.Counts.Empty++
		case !normalize.IsPostcode(value):
			p.Counts.Incorrect++
			p.Invalid[value]++
		default:
			p.Counts.Correct++
		}
	}
}
