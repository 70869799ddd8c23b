// Package reference loads the La Poste postcode/commune table and exposes
// it as a read-only postcode -> city names lookup.
package reference

import (
	"errors"
	"fmt"
	"sort"
)

// ErrLoad is matched by every LoadError via errors.Is.
var ErrLoad = errors.New("reference table load failed")

// LoadError reports a missing, unreadable or malformed reference source.
// The process cannot continue without the table, so callers treat it as fatal.
type LoadError struct {
	Path string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("load reference %s line %d: %v", e.Path, e.Line, e.Err)
	case e.Path != "":
		return fmt.Sprintf("load reference %s: %v", e.Path, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("load reference line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("load reference: %v", e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// Table maps a postcode to the city names La Poste lists for it, in source
// row order. Duplicates are kept. A Table is never modified after loading
// and may be shared between goroutines.
type Table struct {
	cities map[string][]string
	rows   int
}

// FromMap builds a Table from already-cased data. The map is copied.
func FromMap(m map[string][]string) *Table {
	t := &Table{cities: make(map[string][]string, len(m))}
	for postcode, names := range m {
		t.cities[postcode] = append([]string(nil), names...)
		t.rows += len(names)
	}
	return t
}

// Cities returns the city names for postcode, or nil when the postcode is
// unknown. The returned slice must not be modified.
func (t *Table) Cities(postcode string) []string {
	if t == nil {
		return nil
	}
	return t.cities[postcode]
}

// Has reports whether the postcode has at least one city.
func (t *Table) Has(postcode string) bool {
	return len(t.Cities(postcode)) > 0
}

// Len is the number of distinct postcodes.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.cities)
}

// Rows is the number of data rows the table was built from.
func (t *Table) Rows() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// Postcodes returns every known postcode in ascending order.
func (t *Table) Postcodes() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.cities))
	for postcode := range t.cities {
		out = append(out, postcode)
	}
	sort.Strings(out)
	return out
}

func (t *Table) add(postcode, city string) {
	t.cities[postcode] = append(t.cities[postcode], city)
	t.rows++
}
