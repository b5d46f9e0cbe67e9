// Package metrics provides Prometheus metrics for index builds and queries.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcomes used as the "result" label.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultNotReady = "not_ready"
	ResultError    = "error"
)

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	BuildsTotal   *prometheus.CounterVec
	BuildDuration prometheus.Histogram
	IndexUnits    prometheus.Gauge
	Orphans       prometheus.Gauge

	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// Default registers the collectors with the default registry once.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New creates collectors registered with reg. A nil reg leaves them
// unregistered.
//
// Metrics:
//   - hsindex_builds_total{result}
//   - hsindex_build_duration_seconds
//   - hsindex_index_units
//   - hsindex_hierarchy_orphans
//   - hsindex_queries_total{kind,result}
//   - hsindex_query_duration_seconds{kind}
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BuildsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hsindex_builds_total",
			Help: "Snapshot builds by result",
		}, []string{"result"}),
		BuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hsindex_build_duration_seconds",
			Help:    "Time to load sources and build or restore the index",
			Buckets: []float64{.1, .5, 1, 5, 15, 60, 300, 900},
		}),
		IndexUnits: f.NewGauge(prometheus.GaugeOpts{
			Name: "hsindex_index_units",
			Help: "Units in the published index",
		}),
		Orphans: f.NewGauge(prometheus.GaugeOpts{
			Name: "hsindex_hierarchy_orphans",
			Help: "Sub-codes whose 6-digit parent is missing",
		}),
		QueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hsindex_queries_total",
			Help: "Queries by kind and result",
		}, []string{"kind", "result"}),
		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hsindex_query_duration_seconds",
			Help:    "Query latency by kind",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

// Build records a finished build.
func (m *Metrics) Build(err error, took time.Duration, units, orphans int) {
	if m == nil {
		return
	}
	if err != nil {
		m.BuildsTotal.WithLabelValues(ResultError).Inc()
		return
	}
	m.BuildsTotal.WithLabelValues(ResultOK).Inc()
	m.BuildDuration.Observe(took.Seconds())
	m.IndexUnits.Set(float64(units))
	m.Orphans.Set(float64(orphans))
}

// Query records one query.
func (m *Metrics) Query(kind, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(kind, result).Inc()
	m.QueryDuration.WithLabelValues(kind).Observe(took.Seconds())
}
