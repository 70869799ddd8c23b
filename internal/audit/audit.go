// Package audit checks the quality of an OSM extract before it is cleaned:
// coordinates, postcode format, street types and postcode/city pairs.
package audit

import (
	"context"
	"io"

	"github.com/osm-versailles/internal/debug"
	"github.com/osm-versailles/internal/osm"
)

// Collector accumulates one audit over a stream of elements.
type Collector interface {
	Observe(el *osm.Element)
}

// Run streams r once and feeds every element to all collectors.
func Run(ctx context.Context, localDebug bool, r io.Reader, collectors ...Collector) error {
	done := debug.DebugTiming(localDebug, "audit scan")
	defer done()

	elements := 0
	err := osm.Scan(ctx, r, func(el *osm.Element) error {
		elements++
		for _, c := range collectors {
			c.Observe(el)
		}
		return nil
	})
	debug.DebugOutput(localDebug, "audited %d elements with %d collectors", elements, len(collectors))
	return err
}
