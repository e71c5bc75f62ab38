package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the lead adapter and the tracking flow.
type Metrics struct {
	Operations       *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	SkippedUpdates   *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	TrackingLookups  *prometheus.CounterVec
}

// New registers the lead metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadtrack_lead_operations_total",
			Help: "Lead store operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadtrack_lead_operation_duration_seconds",
			Help:    "Duration of lead store operations including the store round trip",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		SkippedUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadtrack_lead_updates_skipped_total",
			Help: "Writes accepted but not persisted as given because the table layout lacks the column",
		}, []string{"field"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadtrack_lead_cache_lookups_total",
			Help: "Lead cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		TrackingLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadtrack_tracking_lookups_total",
			Help: "Tracking lookups by source (store, synthesized_not_found, synthesized_error)",
		}, []string{"source"}),
	}
}

// ObserveOperation records the outcome and duration of a store operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(op, outcome string, start time.Time) {
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementSkippedUpdate(field string) {
	m.SkippedUpdates.WithLabelValues(field).Inc()
}

func (m *Metrics) IncrementCacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementTrackingLookup(source string) {
	m.TrackingLookups.WithLabelValues(source).Inc()
}
