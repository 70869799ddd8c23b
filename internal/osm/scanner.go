package osm

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/osm-versailles/internal/normalize"
)

// ErrNotOSM is returned when the document root is not <osm>.
var ErrNotOSM = errors.New("not an OSM XML document")

// how often Scan looks at ctx
const cancelCheckEvery = 1000

// Scan decodes r and calls fn once per node, way and relation, after the
// element and all its children have been read. Elements are delivered in
// document order. Tag values are NFC normalised. A non-nil error from fn
// stops the scan and is returned unchanged.
func Scan(ctx context.Context, r io.Reader, fn func(*Element) error) error {
	dec := newDecoder(r)

	var (
		current  *Element
		seenRoot bool
		count    int
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if !seenRoot {
				return ErrNotOSM
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode osm xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !seenRoot {
				if t.Name.Local != "osm" {
					return fmt.Errorf("%w: root element <%s>", ErrNotOSM, t.Name.Local)
				}
				seenRoot = true
				continue
			}

			switch t.Name.Local {
			case KindNode, KindWay, KindRelation:
				current = &Element{Kind: t.Name.Local, Attrs: attrMap(t.Attr)}
			case "tag":
				if current != nil {
					current.Tags = append(current.Tags, readTag(t.Attr))
				}
			case "nd":
				if current != nil {
					if ref, ok := attrValue(t.Attr, "ref"); ok {
						current.Refs = append(current.Refs, ref)
					}
				}
			}

		case xml.EndElement:
			if current == nil || t.Name.Local != current.Kind {
				continue
			}
			el := current
			current = nil

			if err := fn(el); err != nil {
				return err
			}

			count++
			if count%cancelCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
	}
}

// CountTags counts every XML element by name, root included.
func CountTags(ctx context.Context, r io.Reader) (map[string]int, error) {
	dec := newDecoder(r)
	counts := make(map[string]int)

	total := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return counts, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode osm xml: %w", err)
		}

		if t, ok := tok.(xml.StartElement); ok {
			counts[t.Name.Local]++
			total++
			if total%cancelCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
		}
	}
}

func newDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	return dec
}

// Some older extracts declare a Latin-1 encoding in the XML prolog.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("unsupported charset %q", label)
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}

func attrValue(attrs []xml.Attr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func readTag(attrs []xml.Attr) Tag {
	var tag Tag
	for _, a := range attrs {
		switch a.Name.Local {
		case "k":
			tag.Key = a.Value
		case "v":
			tag.Value = normalize.Text(a.Value)
			tag.HasValue = true
		}
	}
	return tag
}
