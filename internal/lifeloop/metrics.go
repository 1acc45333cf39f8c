package lifeloop

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for experimentsTotal.
const (
	outcomeRecorded   = "recorded"
	outcomeAborted    = "aborted"
	outcomeRecordLost = "record_lost"
)

var (
	// experimentsTotal counts finished experiments.
	// Labels: outcome (recorded, aborted, record_lost)
	experimentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eme",
		Subsystem: "lifeloop",
		Name:      "experiments_total",
		Help:      "Experiments by outcome",
	}, []string{"outcome"})

	// verdictsTotal counts causality verdicts of recorded experiments.
	// Labels: reason
	verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eme",
		Subsystem: "lifeloop",
		Name:      "verdicts_total",
		Help:      "Causality verdicts by reason",
	}, []string{"reason"})

	// stageDuration measures wall time spent per stage.
	// Labels: stage
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eme",
		Subsystem: "lifeloop",
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each experiment stage",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"stage"})

	// actionFailuresTotal counts dispatches whose action failed.
	actionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eme",
		Subsystem: "lifeloop",
		Name:      "action_failures_total",
		Help:      "Dispatched actions that returned an error or panicked",
	})
)

func observeStage(stage Stage, since time.Time) {
	stageDuration.WithLabelValues(string(stage)).Observe(time.Since(since).Seconds())
}
