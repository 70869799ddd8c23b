package db

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/osm-versailles/internal/queries"
)

// where renders a filter as SQL conditions over the doc column. Paths
// and values are bound as numbered parameters in the order they appear.
type where struct {
	conds []string
	args  []any
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return "TRUE"
	}
	return strings.Join(w.conds, " AND ")
}

// jsonPath converts "address.city" into a text[] path for #> and #>>.
func jsonPath(path string) any {
	return pq.Array(strings.Split(path, "."))
}

func buildWhere(w *where, f queries.Filter) {
	if f.Type != "" {
		w.add(fmt.Sprintf("doc->>'type' = %s", w.arg(f.Type)))
	}
	for _, p := range f.Exists {
		w.add(fmt.Sprintf("doc #> %s IS NOT NULL", w.arg(jsonPath(p))))
	}
	for _, p := range f.NotNull {
		w.add(fmt.Sprintf("doc #>> %s IS NOT NULL", w.arg(jsonPath(p))))
	}
	for _, p := range sortedKeys(f.Equals) {
		path := w.arg(jsonPath(p))
		w.add(fmt.Sprintf("jsonb_typeof(doc #> %s) = 'string' AND doc #>> %s = %s", path, path, w.arg(f.Equals[p])))
	}
	for _, p := range sortedKeys(f.In) {
		path := w.arg(jsonPath(p))
		w.add(fmt.Sprintf("jsonb_typeof(doc #> %s) = 'string' AND doc #>> %s = ANY(%s)", path, path, w.arg(pq.Array(f.In[p]))))
	}
	if f.Box != nil {
		w.add(fmt.Sprintf("%s BETWEEN %s AND %s", numeric("lat"), w.arg(f.Box.MinLat), w.arg(f.Box.MaxLat)))
		w.add(fmt.Sprintf("%s BETWEEN %s AND %s", numeric("lon"), w.arg(f.Box.MinLon), w.arg(f.Box.MaxLon)))
	}
}

// numeric casts a top level key to float8, NULL unless it is a JSON
// number (raw coordinate strings are kept in the documents).
func numeric(key string) string {
	return fmt.Sprintf("(CASE WHEN jsonb_typeof(doc->'%[1]s') = 'number' THEN (doc->>'%[1]s')::float8 END)", key)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
