// Package metrics exposes the coordinator's Prometheus instruments on the
// default registry; the router serves them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WaitingPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_lobby_waiting_players",
		Help: "Players currently waiting in the matchmaking lobby.",
	})

	ActiveBattles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_active_battles",
		Help: "Battle sessions currently in progress.",
	})

	MatchesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_matches_started_total",
		Help: "Battle sessions successfully created from the lobby.",
	})

	MatchesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_matches_completed_total",
		Help: "Battle sessions that reached a terminal state.",
	})

	PromotionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_promotion_failures_total",
		Help: "Lobby promotions that failed during session bootstrap.",
	})

	TurnTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_turn_timeouts_total",
		Help: "Turns resolved by the auto-action fallback.",
	})
)
