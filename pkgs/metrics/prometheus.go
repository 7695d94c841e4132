package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fingerprint_verifier"

var (
	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Verification runs by outcome: match, mismatch, failed, cancelled or invalid",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each verification stage, display delay excluded",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage", "status"})

	ContractCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contract_calls_total",
		Help:      "Read-only record store calls by result",
	}, []string{"method", "result"})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "record_cache_lookups_total",
		Help:      "Record cache lookups by tier and result",
	}, []string{"tier", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status code",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
)

// ObserveStage records how long a stage took.
func ObserveStage(stage, status string, started time.Time) {
	StageDuration.WithLabelValues(stage, status).Observe(time.Since(started).Seconds())
}
