// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EncodeDuration tracks wall time of encoder invocations by stage.
	EncodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reelforge_encode_duration_seconds",
		Help:    "Duration of encoder invocations",
		Buckets: prometheus.ExponentialBuckets(0.05, 2.0, 14), // 50ms to ~7min
	}, []string{"stage"})

	// EncodeOutcomes counts encoder invocations by stage and outcome.
	EncodeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelforge_encode_total",
		Help: "Encoder invocations by outcome (ok, failed, timeout, stalled, canceled)",
	}, []string{"stage", "outcome"})

	procTerminate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelforge_proc_terminate_total",
		Help: "Signals sent to encoder process groups",
	}, []string{"signal", "result"})

	procWait = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelforge_proc_wait_total",
		Help: "Encoder process exits observed during termination",
	}, []string{"result"})

	// InspectCache counts metadata lookups by cache tier.
	InspectCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelforge_inspect_cache_total",
		Help: "Metadata lookups by source (memory, store, probe, error)",
	}, []string{"source"})
)

// ObserveEncode records one encoder invocation.
func ObserveEncode(stage, outcome string, seconds float64) {
	EncodeOutcomes.WithLabelValues(stage, outcome).Inc()
	EncodeDuration.WithLabelValues(stage).Observe(seconds)
}

// IncProcTerminate records a termination signal delivery.
func IncProcTerminate(signal, result string) {
	procTerminate.WithLabelValues(signal, result).Inc()
}

// IncProcWait records how a terminated process exited.
func IncProcWait(result string) {
	procWait.WithLabelValues(result).Inc()
}
