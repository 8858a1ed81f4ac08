package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK          = "ok"
	resultCached      = "cached"
	resultInvalid     = "invalid"
	resultUnavailable = "unavailable"
	resultError       = "error"
)

var runsMetrics = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loan_risk_simulation_runs_total",
		Help: "Simulation runs by result",
	},
	[]string{"result"},
)

var trialsMetrics = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "loan_risk_simulation_trials_total",
		Help: "Monte Carlo trials executed, cache hits excluded",
	},
)

var runDurationMetrics = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "loan_risk_simulation_duration_seconds",
		Help:    "The histogram of simulation run latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4.4min
	},
)

var cacheHitMetrics = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "loan_risk_summary_cache_hits_total",
		Help: "Seeded runs answered from the summary cache",
	},
)
