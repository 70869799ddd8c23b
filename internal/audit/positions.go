package audit

import (
	"strconv"
	"strings"

	"github.com/osm-versailles/internal/osm"
)

// PositionCounts classifies node coordinates. Each node lands in exactly
// one bucket, checked in field order.
type PositionCounts struct {
	Null        int `json:"Null"`
	Empty       int `json:"Empty"`
	NonNumber   int `json:"Non_number"`
	OutOfBounds int `json:"Out_of_bounds"`
	Correct     int `json:"Correct"`
}

// Positions audits lat/lon of every node against a bounding box.
type Positions struct {
	Bounds osm.Bounds
	Counts PositionCounts
}

// NewPositions creates a positions audit for bounds.
func NewPositions(bounds osm.Bounds) *Positions {
	return &Positions{Bounds: bounds}
}

func (p *Positions) Observe(el *osm.Element) {
	if el.Kind != osm.KindNode {
		return
	}

	lat, hasLat := el.Attr("lat")
	lon, hasLon := el.Attr("lon")
	lat = strings.TrimSpace(lat)
	lon = strings.TrimSpace(lon)

	switch {
	case !hasLat || !hasLon:
		p.Counts.Null++
	case lat == "" || lon == "":
		p.Counts.Empty++
	default:
		latF, latErr := strconv.ParseFloat(lat, 64)
		lonF, lonErr := strconv.ParseFloat(lon, 64)
		switch {
		case latErr != nil || lonErr != nil:
			p.Counts.NonNumber++
		case !p.Bounds.Contains(latF, lonF):
			p.Counts.OutOfBounds++
		default:
			p.Counts.Correct++
		}
	}
}
