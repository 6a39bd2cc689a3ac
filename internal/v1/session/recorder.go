package session

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/jobwars/server/internal/v1/logging"
	"github.com/jobwars/server/internal/v1/metrics"
	"github.com/jobwars/server/internal/v1/store"
)

// MatchStore is the slice of the history store the recorder needs.
type MatchStore interface {
	RecordMatch(ctx context.Context, rec store.MatchRecord) (int64, error)
}

// MatchWriter persists finished matches off the hot path. Writes go through
// a circuit breaker so a broken database cannot pile up goroutines, and
// failures are logged and dropped: a lost history row must never take a
// game down with it.
type MatchWriter struct {
	store MatchStore
	cb    *gobreaker.CircuitBreaker
}

// NewMatchWriter wraps s in a circuit breaker.
func NewMatchWriter(s MatchStore) *MatchWriter {
	st := gobreaker.Settings{
		Name:        "match-history",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("sqlite").Set(stateVal)
			logging.Warn(context.Background(), "match store circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &MatchWriter{store: s, cb: gobreaker.NewCircuitBreaker(st)}
}

// Record writes rec asynchronously. Safe to call with the registry lock
// held; the write happens on its own goroutine.
func (w *MatchWriter) Record(rec store.MatchRecord) {
	if w == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := w.cb.Execute(func() (interface{}, error) {
			return w.store.RecordMatch(ctx, rec)
		})
		if err != nil {
			metrics.MatchesRecorded.WithLabelValues("error").Inc()
			logging.Error(ctx, "failed to record match",
				zap.Error(err),
				zap.String("player1_id", rec.Player1ID),
				zap.String("player2_id", rec.Player2ID))
			return
		}
		metrics.MatchesRecorded.WithLabelValues("ok").Inc()
	}()
}
