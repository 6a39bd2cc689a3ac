package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the game session server.
//
// Naming convention: namespace_subsystem_name
// - namespace: jobwars (application-level grouping)
// - subsystem: websocket, room, matchmaking, store (feature-level grouping)
//
// Metric Types:
// - Gauge: current state (connections, rooms, queue depth)
// - Counter: cumulative events (frames processed, kicks, store writes)

var (
	// ActiveConnections tracks the current number of live websocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "jobwars",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of live WebSocket connections",
	})

	// ActiveRooms tracks the current number of live rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "jobwars",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of live rooms",
	})

	// QueueDepth tracks the number of players parked in the matchmaking queue.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "jobwars",
		Subsystem: "matchmaking",
		Name:      "queue_depth",
		Help:      "Players currently waiting in the matchmaking queue",
	})

	// Frames tracks the total number of inbound frames processed by tag and outcome.
	Frames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobwars",
		Subsystem: "websocket",
		Name:      "frames_total",
		Help:      "Total inbound WebSocket frames processed",
	}, []string{"type", "status"})

	// ActionsRateLimited counts game actions rejected by the sliding window.
	ActionsRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "jobwars",
		Subsystem: "room",
		Name:      "actions_rate_limited_total",
		Help:      "Game actions rejected by the per-player rate limit",
	})

	// PlayersKicked counts connections force-closed for repeated violations.
	PlayersKicked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "jobwars",
		Subsystem: "room",
		Name:      "players_kicked_total",
		Help:      "Players kicked for repeated rate-limit violations",
	})

	// MatchesRecorded counts match-history writes by outcome.
	MatchesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobwars",
		Subsystem: "store",
		Name:      "matches_recorded_total",
		Help:      "Match-history store writes",
	}, []string{"status"})

	// CircuitBreakerState reports breaker state per backend
	// (0=closed, 1=open, 2=half-open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "jobwars",
		Subsystem: "store",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"backend"})

	// RateLimitRequests counts HTTP requests that passed the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobwars",
		Subsystem: "ratelimit",
		Name:      "requests_total",
		Help:      "Requests checked by the HTTP rate limiter",
	}, []string{"endpoint"})

	// RateLimitExceeded counts requests rejected by the rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobwars",
		Subsystem: "ratelimit",
		Name:      "exceeded_total",
		Help:      "Requests rejected by the HTTP rate limiter",
	}, []string{"endpoint", "limit_type"})
)

func IncConnection() {
	ActiveConnections.Inc()
}

func DecConnection() {
	ActiveConnections.Dec()
}
