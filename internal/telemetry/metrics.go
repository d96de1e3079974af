// Package telemetry exposes the Prometheus metrics surface for the reflex
// core, following the same promauto var-block convention the rest of the
// control plane uses for its scheduler and storage metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheRequests tracks world-state cache lookups by outcome.
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_worldstate_cache_requests_total",
		Help: "World-state cache lookups by outcome (hit, fetch, joined, unavailable)",
	}, []string{"outcome"})

	// TickDuration tracks how long a full registry tick takes.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reflex_tick_duration_seconds",
		Help:    "Duration of one reflex registry tick",
		Buckets: prometheus.DefBuckets,
	})

	// ReflexFires tracks how often each reflex produces a candidate.
	ReflexFires = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_fires_total",
		Help: "Number of times a reflex's evaluate returned a non-nil result",
	}, []string{"reflex"})

	// ReflexErrors tracks evaluate() panics/errors caught by the registry.
	ReflexErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_evaluate_errors_total",
		Help: "Number of evaluate() calls that errored or panicked, by reflex",
	}, []string{"reflex"})

	// EnqueueOutcomes tracks enqueue helper terminal outcomes.
	EnqueueOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_enqueue_outcomes_total",
		Help: "Enqueue helper outcomes by kind and reason",
	}, []string{"kind", "reason"})

	// LifecycleEvents tracks lifecycle events emitted, by type.
	LifecycleEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_lifecycle_events_total",
		Help: "Lifecycle events emitted by type",
	}, []string{"type"})

	// ProofVerifications tracks proof-bundle verification outcomes.
	ProofVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_proof_verifications_total",
		Help: "Proof bundle verification outcomes by reason",
	}, []string{"reason", "verified"})

	// PriorValue exposes the current learned prior for each rule.
	PriorValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reflex_credit_prior",
		Help: "Current clamped EMA prior for a rule",
	}, []string{"rule_id"})

	// AccumulatorMapSize tracks per-reflex accumulator map occupancy.
	AccumulatorMapSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reflex_accumulator_map_size",
		Help: "Number of live proof accumulators held by a reflex",
	}, []string{"reflex"})
)
