package audit

import (
	"sort"

	"github.com/osm-versailles/internal/osm"
	"github.com/osm-versailles/internal/reconcile"
)

// Pairs collects the distinct postcode/city combinations tagged on nodes
// and ways. Only the first addr:postcode and addr:city tag of an element
// are read; elements with neither are ignored.
type Pairs struct {
	seen map[reconcile.Pair]int
}

// NewPairs creates a postcode/city pair audit.
func NewPairs() *Pairs {
	return &Pairs{seen: make(map[reconcile.Pair]int)}
}

func (p *Pairs) Observe(el *osm.Element) {
	if !el.IsNodeOrWay() {
		return
	}
	pair, ok := ElementPair(el)
	if !ok {
		return
	}
	p.seen[pair]++
}

// ElementPair extracts the raw postcode/city pair of an element. ok is
// false when the element has neither tag.
func ElementPair(el *osm.Element) (reconcile.Pair, bool) {
	var pair reconcile.Pair
	if tag, found := el.Find(keyPostcode); found {
		pair.Postcode = tag.Value
	}
	if tag, found := el.Find(keyCity); found {
		pair.City = tag.Value
	}
	return pair, !pair.IsEmpty()
}

// List returns the distinct pairs sorted by postcode then city.
func (p *Pairs) List() []reconcile.Pair {
	out := make([]reconcile.Pair, 0, len(p.seen))
	for pair := range p.seen {
		out = append(out, pair)
	}
	sortPairs(out)
	return out
}

// Count is the number of elements that carried pair.
func (p *Pairs) Count(pair reconcile.Pair) int {
	return p.seen[pair]
}

// Correction is the outcome of reconciling one distinct pair.
type Correction struct {
	Raw       reconcile.Pair `json:"raw"`
	Corrected reconcile.Pair `json:"corrected"`
	Err       error          `json:"-"`
}

// Changed reports whether reconciliation modified the pair.
func (c Correction) Changed() bool {
	return c.Err == nil && c.Raw != c.Corrected
}

// Correct reconciles every distinct pair. Pairs that fail keep their error
// in the result instead of stopping the audit, so one report shows every
// city missing from the curated table.
func (p *Pairs) Correct(r *reconcile.Reconciler) []Correction {
	pairs := p.List()
	out := make([]Correction, 0, len(pairs))
	for _, raw := range pairs {
		corrected, err := r.ReconcilePair(raw)
		out = append(out, Correction{Raw: raw, Corrected: corrected, Err: err})
	}
	return out
}

// Distinct returns the distinct corrected pairs of successful corrections.
func Distinct(corrections []Correction) []reconcile.Pair {
	set := make(map[reconcile.Pair]struct{})
	for _, c := range corrections {
		if c.Err == nil {
			set[c.Corrected] = struct{}{}
		}
	}
	out := make([]reconcile.Pair, 0, len(set))
	for pair := range set {
		out = append(out, pair)
	}
	sortPairs(out)
	return out
}

func sortPairs(pairs []reconcile.Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Postcode != pairs[j].Postcode {
			return pairs[i].Postcode < pairs[j].Postcode
		}
		return pairs[i].City < pairs[j].City
	})
}
