package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for monitoring admission and ingest
var (
	AdmissionOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meteo_admission_outcomes_total",
			Help: "Admission decisions by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	PointsWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meteo_points_written_total",
			Help: "Total number of metric points appended to the series store",
		},
	)

	RelayPublishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meteo_relay_publish_failures_total",
			Help: "Total number of accepted readings the MQTT relay failed to publish",
		},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meteo_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)

	registerOnce sync.Once
)

// Register registers all Prometheus metrics with the default registry.
// Calling it more than once is a no-op.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(AdmissionOutcomesTotal)
		prometheus.MustRegister(PointsWrittenTotal)
		prometheus.MustRegister(RelayPublishFailuresTotal)
		prometheus.MustRegister(RequestDuration)
	})
}

// RecordOutcome counts one admission decision
func RecordOutcome(operation, outcome string) {
	AdmissionOutcomesTotal.WithLabelValues(operation, outcome).Inc()
}
