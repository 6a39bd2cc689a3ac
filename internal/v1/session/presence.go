package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/jobwars/server/internal/v1/logging"
	"github.com/jobwars/server/internal/v1/protocol"
)

// holdSeat marks a mid-game player as disconnected and keeps their seat for
// the reconnect window. Caller holds the registry lock.
func (r *Registry) holdSeat(room *Room, player *Player) {
	now := time.Now()
	deadline := now.Add(r.opts.ReconnectTimeout)

	player.conn = nil
	player.disconnectedAt = now
	room.DisconnectDeadline = deadline

	r.broadcastOthers(room, player.ID, protocol.PlayerDisconnected(player.ID, deadline.UnixMilli()))

	code, playerID := room.Code, player.ID
	if player.reconnectTimer != nil {
		player.reconnectTimer.Stop()
	}
	player.reconnectTimer = time.AfterFunc(r.opts.ReconnectTimeout, func() {
		r.onReconnectTimeout(code, playerID)
	})

	logging.Info(playerCtx(code, playerID), "player disconnected mid-game, holding seat",
		zap.Time("reconnect_deadline", deadline))
}

// onReconnectTimeout evicts a player whose grace window expired. A player
// who reconnected in time has a zero disconnectedAt and is left alone.
func (r *Registry) onReconnectTimeout(roomCode, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	room, ok := r.rooms[roomCode]
	if !ok {
		return
	}
	player := room.playerByID(playerID)
	if player == nil || player.Connected() {
		return
	}

	logging.Info(playerCtx(roomCode, playerID), "reconnect window expired, removing player")
	r.departRoom(room, player)
}
