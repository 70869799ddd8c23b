// Package osm streams elements out of an OpenStreetMap XML export.
package osm

// Element kinds carried by an OSM export.
const (
	KindNode     = "node"
	KindWay      = "way"
	KindRelation = "relation"
)

// Tag is one <tag k="" v=""/> child. HasValue is false when the v
// attribute is missing altogether.
type Tag struct {
	Key      string
	Value    string
	HasValue bool
}

// Element is a node, way or relation with its tags and node references.
type Element struct {
	Kind  string
	Attrs map[string]string
	Tags  []Tag
	Refs  []string
}

// Attr returns an attribute and whether it was present.
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// ID is the id attribute.
func (e *Element) ID() string {
	return e.Attrs["id"]
}

// Find returns the first tag with key k, like an XPath ./tag[@k=...] query.
func (e *Element) Find(k string) (Tag, bool) {
	for _, tag := range e.Tags {
		if tag.Key == k {
			return tag, true
		}
	}
	return Tag{}, false
}

// IsNodeOrWay reports whether the element carries addresses: relations
// are not audited or exported.
func (e *Element) IsNodeOrWay() bool {
	return e.Kind == KindNode || e.Kind == KindWay
}

// Bounds is a latitude/longitude box, edges included.
type Bounds struct {
	MinLat float64 `json:"min_lat" mapstructure:"min_lat"`
	MaxLat float64 `json:"max_lat" mapstructure:"max_lat"`
	MinLon float64 `json:"min_lon" mapstructure:"min_lon"`
	MaxLon float64 `json:"max_lon" mapstructure:"max_lon"`
}

// Versailles is the area the extract was cut to.
var Versailles = Bounds{MinLat: 48.7582257, MaxLat: 48.9188896, MinLon: 2.0190811, MaxLon: 2.1783828}

// Contains reports whether lat/lon lies inside the box.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}
