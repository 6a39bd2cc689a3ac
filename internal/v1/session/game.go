package session

import (
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/ptr"

	"github.com/jobwars/server/internal/v1/logging"
	"github.com/jobwars/server/internal/v1/metrics"
	"github.com/jobwars/server/internal/v1/protocol"
	"github.com/jobwars/server/internal/v1/store"
)

// actionWindow is the sliding-window span for the per-player action limit.
const actionWindow = time.Second

// actionHistoryCap bounds the per-room audit trail of accepted actions.
const actionHistoryCap = 100

// kickThreshold is the number of rate-limit breaches after which the
// connection is force-closed instead of warned.
const kickThreshold = 5

// Actions that are legal before turn ownership is established and during
// the opponent's turn.
func turnExempt(actionType string) bool {
	return actionType == "mulligan" || actionType == "keep_hand"
}

func (r *Registry) handleGameAction(conn Conn, env *protocol.Envelope) *protocol.ErrorCode {
	room, player, ok := r.boundRoom(conn)
	if !ok {
		return refuse(conn, protocol.ErrNotInRoom, "not in a room")
	}

	now := time.Now()
	if code := r.checkActionRate(room, player, now); code != nil {
		return code
	}

	actionType := protocol.ActionType(env.Action)

	// Out-of-turn actions still spend window budget, so spamming them
	// cannot dodge the kick.
	room.actionHistory = append(room.actionHistory, actionEvent{
		playerID:   player.ID,
		actionType: actionType,
		at:         now,
	})
	if n := len(room.actionHistory); n > actionHistoryCap {
		room.actionHistory = room.actionHistory[n-actionHistoryCap:]
	}

	if !turnExempt(actionType) &&
		room.CurrentTurnPlayerID != "" && room.CurrentTurnPlayerID != player.ID {
		return refuse(conn, protocol.ErrNotYourTurn, "not your turn")
	}

	if env.HasGameState() {
		room.GameState = env.GameState
	}

	r.broadcastOthers(room, player.ID, protocol.GameAction(player.ID, env.Action, now.UnixMilli()))

	switch actionType {
	case "keep_hand":
		// The first keep_hand with no turn running resolves the mulligan:
		// the clock starts and the host takes the opening turn. A finished
		// room never restarts its clock.
		if room.Status == StatusPlaying &&
			room.CurrentTurnPlayerID == "" && room.turnTimer == nil && len(room.Players) > 0 {
			room.GameStartTime = now
			r.startTurn(room, room.Players[0].ID)
		}
	case "end_turn":
		if opp := room.opponentOf(player.ID); opp != nil {
			r.startTurn(room, opp.ID)
		}
	}
	return nil
}

// checkActionRate enforces the sliding one-second window. A breach is
// warned with RATE_LIMIT; repeated breaches get the connection kicked.
// Rejected actions never enter the window.
func (r *Registry) checkActionRate(room *Room, player *Player, now time.Time) *protocol.ErrorCode {
	cutoff := now.Add(-actionWindow)
	kept := room.actionHistory[:0]
	for _, ev := range room.actionHistory {
		if ev.at.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	room.actionHistory = kept

	recent := 0
	for _, ev := range room.actionHistory {
		if ev.playerID == player.ID {
			recent++
		}
	}
	if recent < r.opts.MaxActionsPerSecond {
		return nil
	}

	room.SuspiciousActivity++
	metrics.ActionsRateLimited.Inc()

	if room.SuspiciousActivity > kickThreshold {
		metrics.PlayersKicked.Inc()
		logging.Warn(playerCtx(room.Code, player.ID), "kicking player for repeated rate-limit violations",
			zap.Int("suspicious_activity", room.SuspiciousActivity))
		code := protocol.ErrKicked
		if player.conn != nil {
			player.conn.Send(protocol.Error(code, "kicked for excessive actions"))
			player.conn.Close()
		}
		return &code
	}

	logging.Warn(playerCtx(room.Code, player.ID), "action rate limit exceeded",
		zap.Int("suspicious_activity", room.SuspiciousActivity))
	code := protocol.ErrRateLimit
	if player.conn != nil {
		player.conn.Send(protocol.Error(code, "too many actions"))
	}
	return &code
}

func (r *Registry) handleChat(conn Conn, env *protocol.Envelope) *protocol.ErrorCode {
	room, player, ok := r.boundRoom(conn)
	if !ok {
		return refuse(conn, protocol.ErrNotInRoom, "not in a room")
	}
	// Chat echoes back to the sender too, so every client renders the same
	// transcript in the same order.
	r.broadcast(room, protocol.Chat(player.ID, player.Name, env.Message))
	return nil
}

func (r *Registry) handleEmote(conn Conn, env *protocol.Envelope) *protocol.ErrorCode {
	room, player, ok := r.boundRoom(conn)
	if !ok {
		return refuse(conn, protocol.ErrNotInRoom, "not in a room")
	}
	r.broadcast(room, protocol.Emote(player.ID, player.Name, env.EmoteID))
	return nil
}

func (r *Registry) handleGameEnd(conn Conn, env *protocol.Envelope) *protocol.ErrorCode {
	room, player, ok := r.boundRoom(conn)
	if !ok {
		return refuse(conn, protocol.ErrNotInRoom, "not in a room")
	}

	if room.turnTimer != nil {
		room.turnTimer.Stop()
		room.turnTimer = nil
	}
	room.Status = StatusFinished

	logging.Info(playerCtx(room.Code, player.ID), "game ended",
		zap.String("winner_id", ptr.Deref(env.WinnerID, "draw")),
		zap.Int("turn_count", env.TurnCount))

	// A game abandoned before the second player arrived has no history row.
	if len(room.Players) != 2 {
		return nil
	}

	start := room.GameStartTime
	if start.IsZero() {
		start = room.CreatedAt
	}
	p1, p2 := room.Players[0], room.Players[1]
	r.recorder.Record(store.MatchRecord{
		Player1ID:   p1.ID,
		Player1Name: p1.Name,
		Deck1ID:     p1.DeckID,
		Player2ID:   p2.ID,
		Player2Name: p2.Name,
		Deck2ID:     p2.DeckID,
		WinnerID:    env.WinnerID,
		StartedAt:   start,
		EndedAt:     time.Now(),
		TurnCount:   env.TurnCount,
	})
	return nil
}
