// Package queries answers the fixed set of analytical questions asked of a
// cleaned extract: document counts, contributors, cities and points of
// interest around the Château de Versailles.
package queries

import (
	"context"

	"github.com/osm-versailles/internal/osm"
)

// Filter selects documents. Paths are dotted ("address.city"); zero
// fields select everything.
type Filter struct {
	// Type restricts to "node" or "way".
	Type string

	// Exists requires every path to be present, null included.
	Exists []string

	// NotNull requires every path to be present and not null.
	NotNull []string

	// Equals requires path == value.
	Equals map[string]string

	// In requires the value at path to be one of the listed strings.
	In map[string][]string

	// Box requires numeric lat/lon inside the box.
	Box *osm.Bounds
}

// Group is one row of a grouped query: the values of the group-by paths
// in order ("" for missing or null) and the number of documents.
type Group struct {
	Key   []string `json:"key"`
	Count int      `json:"count"`
}

// Store is a queryable collection of shaped documents.
type Store interface {
	// Count returns the number of documents matching f.
	Count(ctx context.Context, f Filter) (int, error)

	// Group groups the documents matching f by the values at paths,
	// sorted by count descending then key ascending. limit <= 0 returns
	// every group.
	Group(ctx context.Context, f Filter, paths []string, limit int) ([]Group, error)

	// Values returns the value at path of every document matching f, in
	// insertion order.
	Values(ctx context.Context, f Filter, path string) ([]string, error)
}
