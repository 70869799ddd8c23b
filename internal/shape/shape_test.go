package shape

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osm-versailles/internal/osm"
	"github.com/osm-versailles/internal/reconcile"
)

const shapeOSM = `<osm>
 <node id="2406124091" visible="true" version="2" changeset="17206049" timestamp="2013-08-03T16:43:42Z" user="linuxUser16" uid="1219059" lat="48.8049" lon="2.1204">
  <tag k="addr:housenumber" v="5"/>
  <tag k="addr:postcode" v="78000"/>
  <tag k="addr:city" v=" Versailles "/>
  <tag k="addr:street" v="allee des Pins"/>
  <tag k="amenity" v="cafe"/>
  <tag k="name:fr" v="Le Cafe"/>
  <tag k="name:FR" v="Upper"/>
  <tag k="addr:street:name" v="dropped"/>
  <tag k="?bad" v="dropped"/>
  <tag k="bad key" v="kept"/>
 </node>
 <way id="10" version="3" user="bob" uid="42">
  <nd ref="1"/>
  <nd ref="2"/>
  <tag k="highway" v="residential"/>
  <tag k="building" v="yes"/>
  <tag k="building:levels" v="4"/>
 </way>
 <node id="3" lat="abc" lon="2.1"/>
 <relation id="20">
  <tag k="type" v="multipolygon"/>
 </relation>
</osm>`

func scanElements(t *testing.T, data string) []*osm.Element {
	t.Helper()
	var elements []*osm.Element
	require.NoError(t, osm.Scan(context.Background(), strings.NewReader(data), func(el *osm.Element) error {
		elements = append(elements, el)
		return nil
	}))
	return elements
}

func TestShapeGolden(t *testing.T) {
	elements := scanElements(t, shapeOSM)
	require.Len(t, elements, 4)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	tests := []struct {
		name string
		el   *osm.Element
	}{
		{"node_address", elements[0]},
		{"way_refs", elements[1]},
		{"node_bad_coordinates", elements[2]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Shape(tt.el)
			require.NotNil(t, doc)

			out, err := json.MarshalIndent(doc, "", "  ")
			require.NoError(t, err)
			g.Assert(t, tt.name, append(out, '\n'))
		})
	}
}

func TestShapeSkipsRelations(t *testing.T) {
	elements := scanElements(t, shapeOSM)
	assert.Nil(t, Shape(elements[3]))
	assert.Nil(t, Shape(nil))
}

func TestShapeCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		attrs   map[string]string
		wantLat any
		wantLon any
	}{
		{"parsed", map[string]string{"lat": "48.8", "lon": "2.1"}, 48.8, 2.1},
		{"padded", map[string]string{"lat": " 48.8 ", "lon": "2.1"}, 48.8, 2.1},
		{"missing lon keeps raw lat", map[string]string{"lat": "48.8"}, "48.8", nil},
		{"missing both", map[string]string{}, nil, nil},
		{"not a number", map[string]string{"lat": "north", "lon": "2.1"}, "north", "2.1"},
		{"nan", map[string]string{"lat": "NaN", "lon": "2.1"}, "NaN", "2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Shape(&osm.Element{Kind: osm.KindNode, Attrs: tt.attrs})
			assert.Equal(t, tt.wantLat, doc[KeyLat])
			assert.Equal(t, tt.wantLon, doc[KeyLon])
		})
	}
}

func TestShapeTags(t *testing.T) {
	tag := func(k, v string) osm.Tag { return osm.Tag{Key: k, Value: v, HasValue: true} }

	tests := []struct {
		name string
		tags []osm.Tag
		want map[string]any
	}{
		{
			name: "nested prefix replaces scalar",
			tags: []osm.Tag{tag("building", "yes"), tag("building:levels", "4")},
			want: map[string]any{"building": map[string]any{"levels": "4"}},
		},
		{
			name: "scalar replaces nested prefix",
			tags: []osm.Tag{tag("addr:city", "Buc"), tag("address", "somewhere")},
			want: map[string]any{"address": "somewhere"},
		},
		{
			name: "upper case keys stay top level",
			tags: []osm.Tag{tag("ref:INSEE", "78646")},
			want: map[string]any{"ref:INSEE": "78646"},
		},
		{
			name: "key and value are trimmed",
			tags: []osm.Tag{tag("name ", " Grand Trianon ")},
			want: map[string]any{"name": "Grand Trianon"},
		},
		{
			name: "problem character only matters up front",
			tags: []osm.Tag{tag(".hidden", "x"), tag(" lead", "x"), tag("opening_hours", "24/7")},
			want: map[string]any{"opening_hours": "24/7"},
		},
		{
			name: "two colons are dropped",
			tags: []osm.Tag{tag("addr:street:name", "x")},
			want: map[string]any{},
		},
		{
			name: "missing value is empty",
			tags: []osm.Tag{{Key: "addr:postcode"}},
			want: map[string]any{"address": map[string]any{"postcode": ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Shape(&osm.Element{Kind: osm.KindNode, Attrs: map[string]string{}, Tags: tt.tags})
			for k, v := range tt.want {
				assert.Equal(t, v, doc[k], k)
			}
			extra := len(doc) - len(tt.want)
			assert.Equal(t, 6, extra, "only id, type, visible, created, lat and lon besides tags")
		})
	}
}

func TestAddressPair(t *testing.T) {
	tests := []struct {
		name   string
		doc    Document
		want   reconcile.Pair
		wantOK bool
	}{
		{"no address", Document{}, reconcile.Pair{}, false},
		{"address without pair", Document{KeyAddress: map[string]any{"street": "Rue de Satory"}}, reconcile.Pair{}, false},
		{"address is a scalar", Document{KeyAddress: "somewhere"}, reconcile.Pair{}, false},
		{"empty values", Document{KeyAddress: map[string]any{"postcode": "", "city": nil}}, reconcile.Pair{}, false},
		{"postcode only", Document{KeyAddress: map[string]any{"postcode": "78000"}}, reconcile.Pair{Postcode: "78000"}, true},
		{"city only", Document{KeyAddress: map[string]any{"city": "Buc"}}, reconcile.Pair{City: "Buc"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.doc.AddressPair()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetAddressPair(t *testing.T) {
	doc := Document{KeyAddress: map[string]any{"street": "Rue de Satory", "city": "versailles"}}

	doc.SetAddressPair(reconcile.Pair{Postcode: "78000", City: "Versailles"})
	assert.Equal(t, map[string]any{"street": "Rue de Satory", "postcode": "78000", "city": "Versailles"}, doc.Address())

	doc.SetAddressPair(reconcile.Pair{Postcode: "78999"})
	assert.Nil(t, doc.Address()["city"])
	assert.Contains(t, doc.Address(), "city")

	empty := Document{}
	empty.SetAddressPair(reconcile.Pair{Postcode: "78000", City: "Versailles"})
	assert.Equal(t, "Versailles", empty.String("address.city"))
}

func TestStreet(t *testing.T) {
	doc := Document{KeyAddress: map[string]any{"street": "allee des Pins"}}
	street, ok := doc.Street()
	assert.True(t, ok)
	assert.Equal(t, "allee des Pins", street)

	doc.SetStreet("Allée des Pins")
	assert.Equal(t, "Allée des Pins", doc.String("address.street"))

	_, ok = Document{}.Street()
	assert.False(t, ok)
	Document{}.SetStreet("ignored")
}

func TestLookupAndString(t *testing.T) {
	doc := Document{
		KeyID:      "1",
		KeyType:    "node",
		KeyLat:     48.8049,
		KeyCreated: map[string]any{"user": "bob", "uid": nil},
	}

	assert.Equal(t, "1", doc.ID())
	assert.Equal(t, "node", doc.Type())
	assert.Equal(t, "bob", doc.String("created.user"))
	assert.Equal(t, "", doc.String("created.uid"))
	assert.Equal(t, "48.8049", doc.String("lat"))

	_, ok := doc.Lookup("created.uid")
	assert.True(t, ok, "null values exist")
	_, ok = doc.Lookup("created.user.name")
	assert.False(t, ok)
	_, ok = doc.Lookup("address.city")
	assert.False(t, ok)

	lat, ok := doc.Float("lat")
	assert.True(t, ok)
	assert.Equal(t, 48.8049, lat)
	_, ok = doc.Float("created.user")
	assert.False(t, ok)
}
