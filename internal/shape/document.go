package shape

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/osm-versailles/internal/reconcile"
)

// Document is a shaped node or way. Values are strings, float64
// coordinates, nil, nested map[string]any and the node_refs list.
type Document map[string]any

// ID is the element id, "" when missing.
func (d Document) ID() string {
	return d.String(KeyID)
}

// Type is "node" or "way".
func (d Document) Type() string {
	return d.String(KeyType)
}

// Lookup follows a dotted path ("address.city") through nested maps.
func (d Document) Lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the value at path as text: "" when missing or null,
// numbers formatted the way Postgres' ->> operator does.
func (d Document) String(path string) string {
	v, ok := d.Lookup(path)
	if !ok {
		return ""
	}
	return text(v)
}

// Float returns the numeric value at path.
func (d Document) Float(path string) (float64, bool) {
	v, ok := d.Lookup(path)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func text(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Address returns the nested address map, nil when the document has none.
func (d Document) Address() map[string]any {
	addr, _ := d[KeyAddress].(map[string]any)
	return addr
}

// AddressPair returns the raw postcode/city pair. ok is false when the
// document has neither; such documents must not be reconciled.
func (d Document) AddressPair() (reconcile.Pair, bool) {
	addr := d.Address()
	if addr == nil {
		return reconcile.Pair{}, false
	}
	pair := reconcile.Pair{
		Postcode: text(addr["postcode"]),
		City:     text(addr["city"]),
	}
	return pair, !pair.IsEmpty()
}

// SetAddressPair writes a reconciled pair back. An empty city is stored
// as null.
func (d Document) SetAddressPair(pair reconcile.Pair) {
	addr := d.Address()
	if addr == nil {
		addr = make(map[string]any)
		d[KeyAddress] = addr
	}
	addr["postcode"] = pair.Postcode
	if pair.City == "" {
		addr["city"] = nil
	} else {
		addr["city"] = pair.City
	}
}

// Street returns address.street.
func (d Document) Street() (string, bool) {
	street, ok := d.Address()["street"].(string)
	return street, ok
}

// SetStreet replaces address.street.
func (d Document) SetStreet(street string) {
	if addr := d.Address(); addr != nil {
		addr["street"] = street
	}
}
