package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProposalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phylodag_proposals_total",
		Help: "Total number of MCMC proposals, labelled by move kind and outcome.",
	}, []string{"move", "outcome"})

	RunsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phylodag_runs_submitted_total",
		Help: "Total number of run requests accepted by the engine.",
	})

	RunsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phylodag_runs_rejected_total",
		Help: "Total number of run requests rejected due to a full queue.",
	})

	ChainsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phylodag_chains_started_total",
		Help: "Total number of chains started.",
	})

	ChainsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phylodag_chains_completed_total",
		Help: "Total number of chains that ran all their generations.",
	})

	ChainsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phylodag_chains_failed_total",
		Help: "Total number of chains that stopped on an error or cancellation.",
	})

	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "phylodag_generation_duration_us",
		Help:    "Latency of a single MCMC generation in microseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	})

	LnPosterior = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "phylodag_ln_posterior",
		Help: "Log posterior at the last logged generation, labelled by chain.",
	}, []string{"chain"})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "phylodag_queue_utilization_ratio",
		Help: "Current chain queue utilization (0-1).",
	})
)
