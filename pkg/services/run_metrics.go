package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
	"github.com/ekaya-inc/ekaya-datatools/pkg/services/workqueue"
)

var (
	runsSubmittedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datatools",
		Name:      "runs_submitted_total",
		Help:      "Runs accepted for execution, by kind.",
	}, []string{"kind"})
	runsFinishedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datatools",
		Name:      "runs_finished_total",
		Help:      "Runs that reached a terminal status, by kind and status.",
	}, []string{"kind", "status"})
	runDurationMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "datatools",
		Name:      "run_duration_seconds",
		Help:      "Execution time of runs, by kind.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 16),
	}, []string{"kind"})
	runsExpiredMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "datatools",
		Name:      "runs_expired_total",
		Help:      "Pending runs failed by the stale run sweep.",
	})
	runQueueDepthMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "datatools",
		Name:      "run_queue_depth",
		Help:      "Runs waiting for or holding an execution slot.",
	})
)

func observeSubmitted(kind models.RunKind) {
	runsSubmittedMetric.WithLabelValues(string(kind)).Inc()
}

func observeFinished(kind models.RunKind, status models.RunStatus, elapsed time.Duration) {
	runsFinishedMetric.WithLabelValues(string(kind), string(status)).Inc()
	if elapsed > 0 {
		runDurationMetric.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
	}
}

// ObserveQueueProgress publishes queue depth. Pass it to workqueue.WithOnUpdate.
func ObserveQueueProgress(p workqueue.Progress) {
	runQueueDepthMetric.Set(float64(p.Depth()))
}
