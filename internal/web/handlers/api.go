package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/osm-versailles/internal/cache"
	"github.com/osm-versailles/internal/logging"
	"github.com/osm-versailles/internal/metrics"
	"github.com/osm-versailles/internal/queries"
)

// QueryHandler serves the analytical queries over the cleaned documents.
type QueryHandler struct {
	Store   queries.Store
	Cache   *cache.QueryCache
	Metrics *metrics.Metrics
}

// StatsResponse summarises the document store.
type StatsResponse struct {
	Documents   int `json:"documents"`
	Nodes       int `json:"nodes"`
	Ways        int `json:"ways"`
	UniqueUsers int `json:"unique_users"`
}

// ListQueries returns the names and descriptions of the available queries.
func (h *QueryHandler) ListQueries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, queries.All())
}

// RunQuery runs the query named in the URL, serving it from the cache when
// possible.
func (h *QueryHandler) RunQuery(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	q, err := queries.Lookup(name)
	if errors.Is(err, queries.ErrUnknownQuery) {
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	}

	res, err := h.run(r, q)
	if err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Str("query", name).Msg("query failed")
		writeError(w, r, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// GetStats runs the counting queries in one request.
func (h *QueryHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	var stats StatsResponse
	targets := []struct {
		name string
		dst  *int
	}{
		{"doc_count", &stats.Documents},
		{"node_count", &stats.Nodes},
		{"way_count", &stats.Ways},
		{"unique_users", &stats.UniqueUsers},
	}

	for _, t := range targets {
		q, err := queries.Lookup(t.name)
		if err == nil {
			var res *queries.Result
			if res, err = h.run(r, q); err == nil && res.Count != nil {
				*t.dst = *res.Count
			}
		}
		if err != nil {
			logging.FromContext(r.Context()).Error().Err(err).Str("query", t.name).Msg("stats query failed")
			writeError(w, r, http.StatusInternalServerError, "query failed")
			return
		}
	}

	writeJSON(w, r, http.StatusOK, stats)
}

func (h *QueryHandler) run(r *http.Request, q queries.Query) (*queries.Result, error) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Cache != nil {
		res, hit, err := h.Cache.Get(ctx, q.Name)
		if err != nil {
			logger.Warn().Err(err).Str("query", q.Name).Msg("cache read failed")
		}
		h.Metrics.IncrementCacheLookup(hit)
		if hit {
			return res, nil
		}
	}

	res, err := q.Run(ctx, h.Store)
	if err != nil {
		return nil, err
	}

	if h.Cache != nil {
		if err := h.Cache.Set(ctx, res); err != nil {
			logger.Warn().Err(err).Str("query", q.Name).Msg("cache write failed")
		}
	}
	return res, nil
}
