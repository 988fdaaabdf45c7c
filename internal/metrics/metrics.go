// Package metrics exposes prometheus counters for the simulator core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts completed generation turns by nesting level.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "threadsim",
		Name:      "turns_total",
		Help:      "Completed generation turns by nesting level.",
	}, []string{"level"})

	// TurnErrorsTotal counts turns that failed during generation.
	TurnErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "threadsim",
		Name:      "turn_errors_total",
		Help:      "Turns that failed during generation.",
	})

	// LLMRequestsTotal counts upstream model calls by purpose.
	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "threadsim",
		Name:      "llm_requests_total",
		Help:      "Upstream model calls by purpose (select, generate, sentiment, persona_fields, image).",
	}, []string{"purpose"})

	// SelectorFallbacksTotal counts persona selections that fell back past
	// the model's parsed answer.
	SelectorFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "threadsim",
		Name:      "selector_fallbacks_total",
		Help:      "Persona selections resolved by a fallback strategy (previous_speaker, random).",
	}, []string{"strategy"})

	// AutoChainsTotal counts auto-chain decisions by outcome.
	AutoChainsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "threadsim",
		Name:      "auto_chains_total",
		Help:      "Auto-chain decisions by outcome (triggered, gate_skipped, no_persona, addressed_user, depth_capped).",
	}, []string{"outcome"})

	// VotesTotal counts vote increments by direction and origin.
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "threadsim",
		Name:      "votes_total",
		Help:      "Vote increments by direction (up, down) and origin (user, sentiment).",
	}, []string{"direction", "origin"})
)
