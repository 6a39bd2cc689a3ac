package session

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a room.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Conn is the transport handle the session layer writes to. Implementations
// must preserve FIFO order per connection and must not block: Send enqueues
// and returns an error only when the connection is already closed.
//
// Conn values are used as map keys, so each live connection must be a
// distinct comparable value (the websocket client pointer in production).
type Conn interface {
	Send(data []byte) error
	Close()
}

// Player is one seat in a room. All fields are guarded by the registry lock.
type Player struct {
	ID     string
	Name   string
	DeckID string

	conn Conn

	// disconnectedAt is non-zero while the player's transport is gone and
	// their seat is held open. The stale conn must not be written to.
	disconnectedAt time.Time

	// reconnectTimer evicts the player when the grace window expires.
	reconnectTimer *time.Timer
}

// Connected reports whether the player has a live transport.
func (p *Player) Connected() bool {
	return p.disconnectedAt.IsZero()
}

// actionEvent is one entry of a room's sliding rate-limit window.
type actionEvent struct {
	playerID   string
	actionType string
	at         time.Time
}

// Room is one 1-v-1 session. All fields are guarded by the registry lock;
// the timer callbacks re-acquire it and re-check state before acting.
type Room struct {
	Code      string
	Players   []*Player // index 0 is the host / first to join
	Status    Status
	CreatedAt time.Time

	// GameState is the latest snapshot relayed by the clients. The server
	// treats it as an opaque blob and echoes it verbatim on reconnect.
	GameState json.RawMessage

	GameStartTime time.Time

	// Turn ownership. Empty CurrentTurnPlayerID means the mulligan phase is
	// still running.
	CurrentTurnPlayerID string
	CurrentTurnStart    time.Time
	turnTimer           *time.Timer

	// Policing.
	actionHistory      []actionEvent
	SuspiciousActivity int

	// DisconnectDeadline is advisory: the wall-clock time at which a stalled
	// game may be abandoned. Set on disconnect, cleared on reconnect.
	DisconnectDeadline time.Time
}

// opponentOf returns the other seat, or nil for a single-player room.
func (r *Room) opponentOf(playerID string) *Player {
	for _, p := range r.Players {
		if p.ID != playerID {
			return p
		}
	}
	return nil
}

// playerByID returns the member with the given id, or nil.
func (r *Room) playerByID(playerID string) *Player {
	for _, p := range r.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// WaitingRoomInfo is the lobby-browser view of a joinable room.
type WaitingRoomInfo struct {
	Code         string `json:"code"`
	HostName     string `json:"hostName"`
	HostDeckID   string `json:"hostDeckId"`
	CreatedAt    int64  `json:"createdAt"`
	PlayersCount int    `json:"playersCount"`
}
