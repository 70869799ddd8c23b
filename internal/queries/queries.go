package queries

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/osm-versailles/internal/osm"
)

// ErrUnknownQuery is returned by Lookup and Run for names not in the registry.
var ErrUnknownQuery = errors.New("unknown query")

// ChateauBox surrounds the Château de Versailles and its gardens.
var ChateauBox = osm.Bounds{MinLat: 48.801217, MaxLat: 48.828209, MinLon: 2.079505, MaxLon: 2.123966}

// TopN is the size of the "top" rankings.
const TopN = 10

// Result is the answer to one query. Exactly one of Count, Groups and
// Values is set.
type Result struct {
	Query  string   `json:"query"`
	Count  *int     `json:"count,omitempty"`
	Groups []Group  `json:"groups,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Query is a named analytical query.
type Query struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	run func(ctx context.Context, s Store) (*Result, error)
}

// Run executes q against s.
func (q Query) Run(ctx context.Context, s Store) (*Result, error) {
	res, err := q.run(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Name, err)
	}
	res.Query = q.Name
	return res, nil
}

var (
	cityExists = []string{"address.city"}
	inChateau  = &ChateauBox
)

var registry = []Query{
	{
		Name:        "doc_count",
		Description: "Number of documents",
		run:         count(Filter{}),
	},
	{
		Name:        "node_count",
		Description: "Number of nodes",
		run:         count(Filter{Type: osm.KindNode}),
	},
	{
		Name:        "way_count",
		Description: "Number of ways",
		run:         count(Filter{Type: osm.KindWay}),
	},
	{
		Name:        "unique_users",
		Description: "Number of distinct user ids who edited the data",
		run: func(ctx context.Context, s Store) (*Result, error) {
			groups, err := s.Group(ctx, Filter{}, []string{"created.uid"}, 0)
			if err != nil {
				return nil, err
			}
			n := len(groups)
			return &Result{Count: &n}, nil
		},
	},
	{
		Name:        "top_users",
		Description: "Top 10 contributors",
		run:         group(Filter{}, []string{"created.user"}, TopN),
	},
	{
		Name:        "top_cities",
		Description: "Number of documents per city (top 10)",
		run:         group(Filter{Exists: cityExists}, []string{"address.city"}, TopN),
	},
	{
		Name:        "top_city_contributors",
		Description: "Top 10 contributors among documents with a city",
		run:         group(Filter{Exists: cityExists}, []string{"created.user"}, TopN),
	},
	{
		Name:        "cities_by_user",
		Description: "Contributions of the top 10 city contributors, by city",
		run:         citiesByUser,
	},
	{
		Name:        "tourism_spots",
		Description: "Tourist points of interest around the Château, by kind",
		run:         group(Filter{Box: inChateau, Exists: []string{"tourism"}}, []string{"tourism"}, 0),
	},
	{
		Name:        "attractions",
		Description: "Names of the attractions around the Château",
		run: func(ctx context.Context, s Store) (*Result, error) {
			names, err := s.Values(ctx, Filter{Box: inChateau, Equals: map[string]string{"tourism": "attraction"}}, "name")
			if err != nil {
				return nil, err
			}
			return &Result{Values: names}, nil
		},
	},
	{
		Name:        "artworks",
		Description: "Artworks around the Château, by artwork type",
		run:         group(Filter{Box: inChateau, Equals: map[string]string{"tourism": "artwork"}}, []string{"artwork_type"}, 0),
	},
	{
		Name:        "fountains",
		Description: "Number of fountains around the Château",
		run:         group(Filter{Box: inChateau, Equals: map[string]string{"amenity": "fountain"}}, []string{"amenity"}, 0),
	},
}

func count(f Filter) func(context.Context, Store) (*Result, error) {
	return func(ctx context.Context, s Store) (*Result, error) {
		n, err := s.Count(ctx, f)
		if err != nil {
			return nil, err
		}
		return &Result{Count: &n}, nil
	}
}

func group(f Filter, paths []string, limit int) func(context.Context, Store) (*Result, error) {
	return func(ctx context.Context, s Store) (*Result, error) {
		groups, err := s.Group(ctx, f, paths, limit)
		if err != nil {
			return nil, err
		}
		return &Result{Groups: groups}, nil
	}
}

// citiesByUser takes the top contributors of documents carrying a city,
// then counts their non-null cities, sorted by user then city.
func citiesByUser(ctx context.Context, s Store) (*Result, error) {
	top, err := s.Group(ctx, Filter{Exists: cityExists}, []string{"created.user"}, TopN)
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(top))
	for _, g := range top {
		users = append(users, g.Key[0])
	}
	if len(users) == 0 {
		return &Result{Groups: []Group{}}, nil
	}

	groups, err := s.Group(ctx, Filter{
		NotNull: cityExists,
		In:      map[string][]string{"created.user": users},
	}, []string{"created.user", "address.city"}, 0)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Key[0] != groups[j].Key[0] {
			return groups[i].Key[0] < groups[j].Key[0]
		}
		return groups[i].Key[1] < groups[j].Key[1]
	})
	return &Result{Groups: groups}, nil
}

// All returns the registered queries in presentation order.
func All() []Query {
	out := make([]Query, len(registry))
	copy(out, registry)
	return out
}

// Names returns the registered query names in presentation order.
func Names() []string {
	names := make([]string, len(registry))
	for i, q := range registry {
		names[i] = q.Name
	}
	return names
}

// Lookup finds a query by name.
func Lookup(name string) (Query, error) {
	for _, q := range registry {
		if q.Name == name {
			return q, nil
		}
	}
	return Query{}, fmt.Errorf("%w: %q", ErrUnknownQuery, name)
}

// Run looks up and executes the named query.
func Run(ctx context.Context, s Store, name string) (*Result, error) {
	q, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return q.Run(ctx, s)
}
