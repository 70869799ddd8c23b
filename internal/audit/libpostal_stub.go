//go:build !libpostal

package audit

import "errors"

// ErrNoLibpostal is returned by ParseStreet in builds without the
// libpostal tag; libpostal is a C library and is not always installed.
var ErrNoLibpostal = errors.New("built without libpostal (use -tags libpostal)")

// LibpostalAvailable reports whether ParseStreet is backed by libpostal.
const LibpostalAvailable = false

// ParseStreet needs libpostal; see the libpostal build tag.
func ParseStreet(string) (map[string]string, error) {
	return nil, ErrNoLibpostal
}
