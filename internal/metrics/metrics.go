package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reconciliation outcomes.
const (
	OutcomeChanged      = "changed"
	OutcomeUnchanged    = "unchanged"
	OutcomeUnresolvable = "unresolvable"
)

// Metrics provides observability for the cleaning pipeline and the query
// API. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Documents written by element type
	Documents *prometheus.CounterVec

	// Postcode/city reconciliations by outcome
	Reconciliations *prometheus.CounterVec

	// Street names rewritten by the street mapper
	StreetCorrections prometheus.Counter

	// Full processing run duration
	ProcessDuration prometheus.Histogram

	// HTTP requests by route and status code
	Requests *prometheus.CounterVec

	// HTTP latency by route
	RequestLatency *prometheus.HistogramVec

	// Query cache lookups by result (hit, miss)
	CacheLookups *prometheus.CounterVec
}

// New registers the metrics with the default Prometheus registry. It must
// be called at most once per process.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Documents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "osmclean_documents_total",
			Help: "Documents written by element type",
		}, []string{"type"}),

		Reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "osmclean_reconciliations_total",
			Help: "Postcode/city reconciliations by outcome",
		}, []string{"outcome"}), // outcome: "changed", "unchanged", "unresolvable"

		StreetCorrections: factory.NewCounter(prometheus.CounterOpts{
			Name: "osmclean_street_corrections_total",
			Help: "Street names rewritten during cleaning",
		}),

		ProcessDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "osmclean_process_duration_seconds",
			Help:    "Duration of a full OSM extract cleaning run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),

		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "osmclean_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),

		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "osmclean_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"route"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "osmclean_query_cache_lookups_total",
			Help: "Query result cache lookups by result",
		}, []string{"result"}),
	}
}

// IncrementDocument records a written document.
func (m *Metrics) IncrementDocument(docType string) {
	if m != nil {
		m.Documents.WithLabelValues(docType).Inc()
	}
}

// IncrementReconciliation records a reconciliation outcome.
func (m *Metrics) IncrementReconciliation(outcome string) {
	if m != nil {
		m.Reconciliations.WithLabelValues(outcome).Inc()
	}
}

// IncrementStreetCorrection records a rewritten street name.
func (m *Metrics) IncrementStreetCorrection() {
	if m != nil {
		m.StreetCorrections.Inc()
	}
}

// ObserveProcessDuration records the duration of a processing run.
func (m *Metrics) ObserveProcessDuration(d time.Duration) {
	if m != nil {
		m.ProcessDuration.Observe(d.Seconds())
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, code string, d time.Duration) {
	if m != nil {
		m.Requests.WithLabelValues(route, code).Inc()
		m.RequestLatency.WithLabelValues(route).Observe(d.Seconds())
	}
}

// IncrementCacheLookup records a cache hit or miss.
func (m *Metrics) IncrementCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}
