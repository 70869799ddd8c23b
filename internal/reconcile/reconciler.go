// Package reconcile turns the postcode and city tagged on an OSM element
// into one consistent pair, using the La Poste reference table and the
// curated override tables.
package reconcile

import (
	"errors"
	"fmt"

	"github.com/osm-versailles/internal/overrides"
	"github.com/osm-versailles/internal/reference"
)

// ErrUnresolvableCity is matched by UnresolvableCityError via errors.Is.
var ErrUnresolvableCity = errors.New("no curated postcode for city")

// UnresolvableCityError means a record had a city but no postcode, and the
// city is not in the curated city->postcode table. The table has to be
// extended; there is no fallback postcode.
type UnresolvableCityError struct {
	City string
}

func (e *UnresolvableCityError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnresolvableCity, e.City)
}

func (e *UnresolvableCityError) Is(target error) bool {
	return target == ErrUnresolvableCity
}

// Pair is a postcode and a city. An empty string means the value is absent.
type Pair struct {
	Postcode string `json:"postcode"`
	City     string `json:"city"`
}

// IsEmpty reports whether neither value is present.
func (p Pair) IsEmpty() bool {
	return p.Postcode == "" && p.City == ""
}

// Known transposition in the source data: Jouy-en-Josas tagged with Buc's postcode.
const (
	typoPostcode  = "78530"
	typoCity      = "Jouy-en-Josas"
	typoCorrected = "78350"
)

// Reconciler resolves postcode/city pairs. It holds its own copies of the
// override tables and never modifies the reference table, so one value can
// be used from any number of goroutines.
type Reconciler struct {
	table     *reference.Table
	overrides overrides.Tables
}

// New creates a reconciler over table and a private copy of tables.
func New(table *reference.Table, tables overrides.Tables) *Reconciler {
	return &Reconciler{
		table:     table,
		overrides: tables.Clone(),
	}
}

// Reconcile returns the corrected pair for a raw postcode and city.
//
// Callers must not pass two empty values; records without either tag are
// filtered out before reconciliation.
//
// The three steps run in order and each uses the previous one's result:
//  1. resolve the postcode, from the curated city table when it is missing
//  2. pick the city spelling from the reference names of that postcode
//  3. for special delivery postcodes, replace the city with the curated one
func (r *Reconciler) Reconcile(postcode, city string) (Pair, error) {
	resolved, err := r.resolvePostcode(postcode, city)
	if err != nil {
		return Pair{}, err
	}

	corrected := BestMatch(resolved, city, r.table)

	if special, ok := r.overrides.CityFor(resolved); ok {
		corrected = special
	}

	return Pair{Postcode: resolved, City: corrected}, nil
}

// ReconcilePair is Reconcile for a Pair.
func (r *Reconciler) ReconcilePair(p Pair) (Pair, error) {
	return r.Reconcile(p.Postcode, p.City)
}

func (r *Reconciler) resolvePostcode(postcode, city string) (string, error) {
	if postcode == "" {
		resolved, ok := r.overrides.PostcodeFor(city)
		if !ok {
			return "", &UnresolvableCityError{City: city}
		}
		return resolved, nil
	}

	if postcode == typoPostcode && city == typoCity {
		return typoCorrected, nil
	}
	return postcode, nil
}
