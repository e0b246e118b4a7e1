// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"sync"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// ModerationVerdicts counts classifier verdicts by content kind and outcome.
	ModerationVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_moderation_verdicts_total",
		Help: "Total moderation verdicts by content kind and outcome",
	}, []string{"kind", "outcome"})

	// ModerationLatency records classifier round-trip latency.
	ModerationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "murmur_moderation_latency_seconds",
		Help:    "Moderation classifier latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// LikeConflicts counts like transactions that were no-ops because the
	// like record already existed (or was already gone on unlike).
	LikeConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_like_noop_total",
		Help: "Like/unlike operations that were idempotent no-ops",
	}, []string{"op"})
)

// Moderation verdict outcomes.
const (
	VerdictClean       = "clean"
	VerdictFlagged     = "flagged"
	VerdictUnavailable = "unavailable"
)

// ObserveModeration records a classifier call outcome and latency.
func ObserveModeration(kind, outcome string, start time.Time) {
	ModerationVerdicts.WithLabelValues(kind, outcome).Inc()
	ModerationLatency.Observe(time.Since(start).Seconds())
}

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics creates the fiberprometheus middleware for HTTP metrics. The
// underlying collectors register in the default Prometheus registry, which
// rejects duplicates, so the middleware is created once per process.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}
