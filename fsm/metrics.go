package fsm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric definitions with appropriate labels.
var (
	// stepsTotal tracks per-Instance step outcomes per tick.
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_steps_total",
		Help: "Total number of instance steps by group, definition, and outcome (success or fault)",
	}, []string{"group", "definition", "outcome"})

	// transitionsTotal tracks state transitions, forced or tick-driven.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_transitions_total",
		Help: "Total number of state transitions by group, definition, from_state, and to_state",
	}, []string{"group", "definition", "from_state", "to_state"})

	// faultsTotal tracks caught runtime faults.
	faultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_faults_total",
		Help: "Total number of caught runtime action faults by group and definition",
	}, []string{"group", "definition"})

	// evictionsTotal tracks safe-point instance removals.
	evictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_evictions_total",
		Help: "Total number of instances removed at a safe point by group, definition, and reason",
	}, []string{"group", "definition", "reason"})

	// tickDuration tracks wall-clock duration of whole group ticks.
	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fsm_tick_duration_seconds",
		Help:    "Duration of scheduler ticks by group",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"group"})

	// tickBudgetExceeded counts ticks that blew their configured budget.
	tickBudgetExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_tick_budget_exceeded_total",
		Help: "Total number of ticks exceeding the configured time budget by group",
	}, []string{"group"})

	// deferredEditsQueued counts structural edits that had to wait for a
	// safe point.
	deferredEditsQueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_deferred_edits_queued_total",
		Help: "Total number of structural definition edits deferred to a safe point by group and definition",
	}, []string{"group", "definition"})

	// liveInstancesGauge tracks currently bound instances.
	liveInstancesGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fsm_live_instances",
		Help: "Number of live instances by group and definition",
	}, []string{"group", "definition"})
)
