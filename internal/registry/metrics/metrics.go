// Package metrics provides observability for the registry query surface.
// All methods are nil-safe so callers can run without metrics in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks query outcomes and statement issuance latency.
type Metrics struct {
	RecognitionQueries   *prometheus.CounterVec
	AuthorizationQueries *prometheus.CounterVec
	IssuanceDuration     prometheus.Histogram
}

// New creates a Metrics instance with all registry metrics registered on the
// default registerer. Construct at most once per process.
func New() *Metrics {
	return &Metrics{
		RecognitionQueries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fedreg_recognition_queries_total",
			Help: "Total recognition queries by outcome",
		}, []string{"outcome"}),
		AuthorizationQueries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fedreg_authorization_queries_total",
			Help: "Total authorization queries by outcome",
		}, []string{"outcome"}),
		IssuanceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fedreg_statement_issuance_duration_seconds",
			Help:    "Duration of entity statement issuance including signing",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementRecognition records a recognition query outcome.
func (m *Metrics) IncrementRecognition(recognized bool) {
	if m == nil {
		return
	}
	m.RecognitionQueries.WithLabelValues(outcome(recognized)).Inc()
}

// IncrementAuthorization records an authorization query outcome.
func (m *Metrics) IncrementAuthorization(verified bool) {
	if m == nil {
		return
	}
	m.AuthorizationQueries.WithLabelValues(outcome(verified)).Inc()
}

// ObserveIssuance records the duration of a statement issuance.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveIssuance(start time.Time) {
	if m == nil {
		return
	}
	m.IssuanceDuration.Observe(time.Since(start).Seconds())
}

func outcome(positive bool) string {
	if positive {
		return "positive"
	}
	return "negative"
}
