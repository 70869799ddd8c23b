package reference

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/osm-versailles/internal/normalize"
)

// Column layout of laposte_hexasmal.csv:
// Code_commune_INSEE;Nom_commune;Code_postal;Ligne_5;Libellé_d_acheminement
const (
	colCity     = 1
	colPostcode = 2
	minColumns  = 3
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadFile opens and parses the reference file at path.
func LoadFile(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer file.Close()

	table, err := Load(file)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	return table, nil
}

// Load parses a semicolon separated reference source. The first row is a
// header and is discarded; every other row contributes its title-cased
// city name to the list of its postcode. Rows must all have the same
// number of fields and at least three of them.
//
// Sources that are not valid UTF-8 are decoded as ISO-8859-1.
func Load(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("read source: %w", err)}
	}
	data, err = toUTF8(data)
	if err != nil {
		return nil, &LoadError{Err: err}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = ';'
	reader.FieldsPerRecord = 0 // header fixes the column count

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, &LoadError{Line: 1, Err: errors.New("missing header row")}
		}
		return nil, &LoadError{Line: 1, Err: fmt.Errorf("read header: %w", err)}
	}

	table := &Table{cities: make(map[string][]string)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			le := &LoadError{Err: err}
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				le.Line = pe.Line
			}
			return nil, le
		}
		line, _ := reader.FieldPos(0)
		if len(record) < minColumns {
			return nil, &LoadError{
				Line: line,
				Err:  fmt.Errorf("expected at least %d columns, got %d", minColumns, len(record)),
			}
		}

		table.add(record[colPostcode], normalize.Title(record[colCity]))
	}

	return table, nil
}

func toUTF8(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode latin-1 source: %w", err)
	}
	return decoded, nil
}
