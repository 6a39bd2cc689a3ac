package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/jobwars/server/internal/v1/logging"
	"github.com/jobwars/server/internal/v1/protocol"
)

// startTurn hands the turn to playerID and arms the turn clock. Caller
// holds the registry lock.
func (r *Registry) startTurn(room *Room, playerID string) {
	if room.turnTimer != nil {
		room.turnTimer.Stop()
	}

	now := time.Now()
	room.CurrentTurnPlayerID = playerID
	room.CurrentTurnStart = now

	r.broadcast(room, protocol.TurnStart(playerID, r.opts.TurnDuration.Milliseconds()))

	code := room.Code
	room.turnTimer = time.AfterFunc(r.opts.TurnDuration, func() {
		r.onTurnTimeout(code, playerID)
	})
}

// onTurnTimeout fires when a turn clock runs out. The turn may have been
// ended or the game finished between arming and firing, so everything is
// re-checked under the lock before the forced pass.
func (r *Registry) onTurnTimeout(roomCode, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	room, ok := r.rooms[roomCode]
	if !ok || room.Status != StatusPlaying || room.CurrentTurnPlayerID != playerID {
		return
	}

	logging.Info(playerCtx(roomCode, playerID), "turn timer expired, forcing end of turn",
		zap.Duration("turn_duration", r.opts.TurnDuration))

	r.broadcast(room, protocol.AutoEndTurn(playerID, time.Now().UnixMilli()))

	next := playerID
	if opp := room.opponentOf(playerID); opp != nil {
		next = opp.ID
	}
	r.startTurn(room, next)
}
