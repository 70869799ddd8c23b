// Package shape converts OSM elements into the JSON documents written by
// the cleaning pipeline:
//
//	{
//	  "id": "2406124091", "type": "node", "visible": "true",
//	  "created": {"version": "2", "changeset": "17206049",
//	              "timestamp": "2013-08-03T16:43:42Z",
//	              "user": "linuxUser16", "uid": "1219059"},
//	  "lat": 48.8049, "lon": 2.1204,
//	  "address": {"housenumber": "5", "postcode": "78000", "city": "Versailles"},
//	  "amenity": "cafe",
//	  "node_refs": ["1", "2"]
//	}
package shape

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/osm-versailles/internal/osm"
)

var (
	// Two runs of lower-case letters or underscores around one colon.
	reLowerColon = regexp.MustCompile(`^([a-z]|_)*:([a-z]|_)*$`)

	// Keys starting with one of these characters are dropped.
	reProblemChars = regexp.MustCompile(`^[=\+/&<>;'"\?%#$@\,\. \t\r\n]`)
)

// createdAttrs are the element attributes grouped under "created".
var createdAttrs = []string{"version", "changeset", "timestamp", "user", "uid"}

// Top level document keys.
const (
	KeyID       = "id"
	KeyType     = "type"
	KeyVisible  = "visible"
	KeyCreated  = "created"
	KeyLat      = "lat"
	KeyLon      = "lon"
	KeyAddress  = "address"
	KeyNodeRefs = "node_refs"
)

// Shape converts a node or way into a Document. Relations and other
// elements return nil.
//
// Coordinates are float64 when both lat and lon parse. Otherwise both keep
// their raw attribute value, nil when missing (ways have no coordinates).
// Missing attributes are nil as well.
func Shape(el *osm.Element) Document {
	if el == nil || !el.IsNodeOrWay() {
		return nil
	}

	doc := Document{
		KeyID:      attrOrNil(el, "id"),
		KeyType:    el.Kind,
		KeyVisible: attrOrNil(el, "visible"),
	}

	created := make(map[string]any, len(createdAttrs))
	for _, name := range createdAttrs {
		created[name] = attrOrNil(el, name)
	}
	doc[KeyCreated] = created

	doc[KeyLat], doc[KeyLon] = coordinates(el)

	for _, tag := range el.Tags {
		addTag(doc, tag)
	}

	if len(el.Refs) > 0 {
		refs := make([]string, len(el.Refs))
		copy(refs, el.Refs)
		doc[KeyNodeRefs] = refs
	}

	return doc
}

func attrOrNil(el *osm.Element, name string) any {
	if v, ok := el.Attr(name); ok {
		return v
	}
	return nil
}

func coordinates(el *osm.Element) (any, any) {
	lat, hasLat := el.Attr("lat")
	lon, hasLon := el.Attr("lon")
	if hasLat && hasLon {
		latF, latErr := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		lonF, lonErr := strconv.ParseFloat(strings.TrimSpace(lon), 64)
		if latErr == nil && lonErr == nil && finite(latF) && finite(lonF) {
			return latF, lonF
		}
	}
	return attrOrNil(el, "lat"), attrOrNil(el, "lon")
}

// finite rejects NaN and infinities, which JSON cannot carry.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// addTag stores one tag. Keys with a problem character up front or more
// than one colon are dropped. "prefix:key" keys in lower case are nested
// under prefix ("addr" becomes "address"); a nested map replaces any
// scalar already stored under prefix. Every other key is stored at the
// top level, overwriting what was there.
func addTag(doc Document, tag osm.Tag) {
	if reProblemChars.MatchString(tag.Key) || strings.Count(tag.Key, ":") > 1 {
		return
	}

	k := strings.TrimSpace(tag.Key)
	v := strings.TrimSpace(tag.Value)

	if !reLowerColon.MatchString(k) {
		doc[k] = v
		return
	}

	prefix, key, _ := strings.Cut(k, ":")
	if prefix == "addr" {
		prefix = KeyAddress
	}
	nested, ok := doc[prefix].(map[string]any)
	if !ok {
		nested = make(map[string]any)
		doc[prefix] = nested
	}
	nested[key] = v
}
