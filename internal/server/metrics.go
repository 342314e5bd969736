package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evolvekit_runs_started_total",
		Help: "Number of evolution runs accepted.",
	})

	runsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evolvekit_runs_finished_total",
		Help: "Number of evolution runs finished, by terminal status.",
	}, []string{"status"})

	generationsEvolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evolvekit_generations_total",
		Help: "Number of generations evolved across all runs.",
	})

	engineRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evolvekit_engine_rebuilds_total",
		Help: "Number of engine rebuilds triggered by the variance policy.",
	})
)
