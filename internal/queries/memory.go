package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/osm-versailles/internal/shape"
)

// Memory is an in-memory Store. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs []shape.Document
}

// NewMemory creates a store holding docs.
func NewMemory(docs ...shape.Document) *Memory {
	m := &Memory{}
	m.Add(docs...)
	return m
}

// Add appends documents.
func (m *Memory) Add(docs ...shape.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, docs...)
}

// Len is the number of documents held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// LoadJSONLinesFile reads a file written by the cleaning pipeline.
func LoadJSONLinesFile(path string) (*Memory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open documents: %w", err)
	}
	defer file.Close()

	return LoadJSONLines(file)
}

// LoadJSONLines reads one JSON document per line. Pretty printed output
// (documents spanning several lines) is accepted as well.
func LoadJSONLines(r io.Reader) (*Memory, error) {
	dec := json.NewDecoder(r)
	m := &Memory{}

	for n := 1; ; n++ {
		var doc shape.Document
		err := dec.Decode(&doc)
		if err == io.EOF {
			return m, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode document %d: %w", n, err)
		}
		m.docs = append(m.docs, doc)
	}
}

func (m *Memory) Count(ctx context.Context, f Filter) (int, error) {
	n := 0
	err := m.each(ctx, f, func(shape.Document) { n++ })
	return n, err
}

func (m *Memory) Group(ctx context.Context, f Filter, paths []string, limit int) ([]Group, error) {
	counts := make(map[string]*Group)
	var order []*Group

	err := m.each(ctx, f, func(doc shape.Document) {
		key := make([]string, len(paths))
		for i, p := range paths {
			key[i] = doc.String(p)
		}
		id := strings.Join(key, "\x00")
		g, ok := counts[id]
		if !ok {
			g = &Group{Key: key}
			counts[id] = g
			order = append(order, g)
		}
		g.Count++
	})
	if err != nil {
		return nil, err
	}

	out := make([]Group, 0, len(order))
	for _, g := range order {
		out = append(out, *g)
	}
	SortGroups(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Values(ctx context.Context, f Filter, path string) ([]string, error) {
	var out []string
	err := m.each(ctx, f, func(doc shape.Document) {
		out = append(out, doc.String(path))
	})
	return out, err
}

func (m *Memory) each(ctx context.Context, f Filter, fn func(shape.Document)) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, doc := range m.docs {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if f.Match(doc) {
			fn(doc)
		}
	}
	return nil
}

// Match reports whether doc satisfies every condition of f.
func (f Filter) Match(doc shape.Document) bool {
	if f.Type != "" && doc.Type() != f.Type {
		return false
	}
	for _, p := range f.Exists {
		if _, ok := doc.Lookup(p); !ok {
			return false
		}
	}
	for _, p := range f.NotNull {
		if v, ok := doc.Lookup(p); !ok || v == nil {
			return false
		}
	}
	for p, want := range f.Equals {
		v, ok := doc.Lookup(p)
		if s, isString := v.(string); !ok || !isString || s != want {
			return false
		}
	}
	for p, allowed := range f.In {
		v, ok := doc.Lookup(p)
		if s, isString := v.(string); !ok || !isString || !slices.Contains(allowed, s) {
			return false
		}
	}
	if f.Box != nil {
		lat, okLat := doc.Float(shape.KeyLat)
		lon, okLon := doc.Float(shape.KeyLon)
		if !okLat || !okLon || !f.Box.Contains(lat, lon) {
			return false
		}
	}
	return true
}

// SortGroups orders groups by count descending, then key ascending.
func SortGroups(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return slices.Compare(groups[i].Key, groups[j].Key) < 0
	})
}
