package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobTransitions counts job status changes.
	JobTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelforge_job_transitions_total",
		Help: "Job status transitions by kind and target status",
	}, []string{"kind", "status"})

	// JobsRejected counts submissions refused at admission.
	JobsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelforge_jobs_rejected_total",
		Help: "Job submissions rejected by reason",
	}, []string{"reason"})

	// JobsInFlight is the number of jobs currently holding a worker slot.
	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reelforge_jobs_in_flight",
		Help: "Jobs currently running on a worker",
	})

	// LadderBuilds counts adaptive ladder builds by result.
	LadderBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelforge_ladder_builds_total",
		Help: "HLS ladder builds by result",
	}, []string{"result"})
)

// RecordTransition records a job status change.
func RecordTransition(kind, status string) {
	JobTransitions.WithLabelValues(kind, status).Inc()
}
