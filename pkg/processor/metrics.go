package processor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processorCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_calls_total",
			Help: "Total number of payment processor API calls",
		},
		[]string{"operation", "outcome"},
	)

	processorCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processor_call_duration_seconds",
			Help:    "Duration of payment processor API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// observe records one processor call; outcome is the processor error code when there is one
func observe(operation string, start time.Time, err error) {
	processorCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if code, _ := ErrorDetails(err); code != "" {
			outcome = code
		}
	}
	processorCallsTotal.WithLabelValues(operation, outcome).Inc()
}
