package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobwars/server/internal/v1/logging"
	"github.com/jobwars/server/internal/v1/metrics"
	"github.com/jobwars/server/internal/v1/protocol"
)

// refuse sends a structured error frame and returns the code for metrics.
func refuse(conn Conn, code protocol.ErrorCode, msg string) *protocol.ErrorCode {
	conn.Send(protocol.Error(code, msg))
	return &code
}

// boundRoom resolves conn to its room seat. Queued connections do not count
// as being in a room.
func (r *Registry) boundRoom(conn Conn) (*Room, *Player, bool) {
	b, ok := r.bindings[conn]
	if !ok || b.roomCode == queueSentinel {
		return nil, nil, false
	}
	room, ok := r.rooms[b.roomCode]
	if !ok {
		return nil, nil, false
	}
	player := room.playerByID(b.playerID)
	if player == nil {
		return nil, nil, false
	}
	return room, player, true
}

// unbind detaches conn from whatever seat it holds so it can take a new
// one. A deliberate re-lobby always counts as leaving, even mid-game.
func (r *Registry) unbind(conn Conn) {
	b, ok := r.bindings[conn]
	if !ok {
		return
	}
	delete(r.bindings, conn)

	if b.roomCode == queueSentinel {
		r.removeFromQueue(b.playerID)
		return
	}
	if room, ok := r.rooms[b.roomCode]; ok {
		if player := room.playerByID(b.playerID); player != nil {
			r.departRoom(room, player)
		}
	}
}

func newPlayer(conn Conn, name, deckID string) *Player {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Player"
	}
	return &Player{
		ID:     uuid.NewString(),
		Name:   name,
		DeckID: deckID,
		conn:   conn,
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *Registry) handleCreateRoom(conn Conn, env *protocol.Envelope) *protocol.ErrorCode {
	r.unbind(conn)

	code, err := uniqueRoomCode(r.rooms)
	if err != nil {
		logging.Error(playerCtx("", ""), "room code generation failed", zap.Error(err))
		return refuse(conn, protocol.ErrParse, "could not create room")
	}

	player := newPlayer(conn, env.PlayerName, env.DeckID)
	room := &Room{
		Code:      code,
		Players:   []*Player{player},
		Status:    StatusWaiting,
		CreatedAt: time.Now(),
	}
	r.rooms[code] = room
	r.bindings[conn] = binding{playerID: player.ID, roomCode: code}
	metrics.ActiveRooms.Set(float64(len(r.rooms)))

	conn.Send(protocol.RoomCreated(code, player.ID))
	logging.Info(playerCtx(code, player.ID), "room created",
		zap.String("player_name", player.Name))
	return nil
}

func (r *Registry) handleJoinRoom(conn Conn, env *protocol.Envelope) *protocol.ErrorCode {
	// Unbind first so a host cannot end up seated twice in its own room.
	r.unbind(conn)

	code := normalizeCode(env.RoomCode)
	room, ok := r.rooms[code]
	if !ok {
		return refuse(conn, protocol.ErrRoomNotFound, "room not found")
	}
	if room.Status != StatusWaiting {
		return refuse(conn, protocol.ErrGameInProgress, "game already in progress")
	}
	if len(room.Players) >= 2 {
		return refuse(conn, protocol.ErrRoomFull, "room is full")
	}

	player := newPlayer(conn, env.PlayerName, env.DeckID)
	room.Players = append(room.Players, player)
	r.bindings[conn] = binding{playerID: player.ID, roomCode: code}

	r.broadcast(room, protocol.PlayerJoined(player.ID, player.Name))
	r.startGame(room)
	return nil
}

func (r *Registry) handleFindMatch(conn Conn, env *protocol.Envelope) *protocol.ErrorCode {
	r.unbind(conn)

	player := newPlayer(conn, env.PlayerName, env.DeckID)

	if len(r.queue) == 0 {
		r.queue = append(r.queue, player)
		r.bindings[conn] = binding{playerID: player.ID, roomCode: queueSentinel}
		metrics.QueueDepth.Set(float64(len(r.queue)))
		logging.Info(playerCtx("", player.ID), "player queued for matchmaking",
			zap.String("player_name", player.Name))
		return nil
	}

	opponent := r.queue[0]
	r.queue = r.queue[1:]
	metrics.QueueDepth.Set(float64(len(r.queue)))

	code, err := uniqueRoomCode(r.rooms)
	if err != nil {
		// Put the opponent back; neither player got a room.
		r.queue = append([]*Player{opponent}, r.queue...)
		metrics.QueueDepth.Set(float64(len(r.queue)))
		logging.Error(playerCtx("", ""), "room code generation failed", zap.Error(err))
		return refuse(conn, protocol.ErrParse, "could not create room")
	}

	room := &Room{
		Code:      code,
		Players:   []*Player{opponent, player},
		Status:    StatusWaiting,
		CreatedAt: time.Now(),
	}
	r.rooms[code] = room
	r.bindings[opponent.conn] = binding{playerID: opponent.ID, roomCode: code}
	r.bindings[conn] = binding{playerID: player.ID, roomCode: code}
	metrics.ActiveRooms.Set(float64(len(r.rooms)))

	// Matched players learn their code and id the same way direct creators
	// do; reconnect needs both.
	if opponent.conn != nil {
		opponent.conn.Send(protocol.RoomCreated(code, opponent.ID))
	}
	conn.Send(protocol.RoomCreated(code, player.ID))

	r.startGame(room)
	return nil
}

// startGame flips a full room to playing and deals each player their own
// view of the game_start frame. Turn timers stay unarmed until the mulligan
// resolves.
func (r *Registry) startGame(room *Room) {
	room.Status = StatusPlaying

	p1, p2 := room.Players[0], room.Players[1]
	info1 := protocol.PlayerInfo{ID: p1.ID, Name: p1.Name, DeckID: p1.DeckID}
	info2 := protocol.PlayerInfo{ID: p2.ID, Name: p2.Name, DeckID: p2.DeckID}

	if p1.Connected() && p1.conn != nil {
		p1.conn.Send(protocol.GameStart(room.Code, p1.ID, p2.ID, info1, info2))
	}
	if p2.Connected() && p2.conn != nil {
		p2.conn.Send(protocol.GameStart(room.Code, p2.ID, p1.ID, info1, info2))
	}

	logging.Info(playerCtx(room.Code, ""), "game started",
		zap.String("player1_id", p1.ID),
		zap.String("player2_id", p2.ID))
}

func (r *Registry) handleReconnect(conn Conn, env *protocol.Envelope) *protocol.ErrorCode {
	code := normalizeCode(env.RoomCode)
	room, ok := r.rooms[code]
	if !ok {
		return refuse(conn, protocol.ErrRoomNotFound, "room not found")
	}
	player := room.playerByID(env.PlayerID)
	if player == nil {
		return refuse(conn, protocol.ErrPlayerNotFound, "player not found in room")
	}
	if player.Connected() {
		return refuse(conn, protocol.ErrNotDisconnected, "player is not disconnected")
	}

	if player.reconnectTimer != nil {
		player.reconnectTimer.Stop()
		player.reconnectTimer = nil
	}

	r.unbind(conn)
	player.conn = conn
	player.disconnectedAt = time.Time{}
	room.DisconnectDeadline = time.Time{}
	r.bindings[conn] = binding{playerID: player.ID, roomCode: code}

	conn.Send(protocol.Reconnected(room.GameState))
	r.broadcastOthers(room, player.ID, protocol.PlayerJoined(player.ID, player.Name))

	logging.Info(playerCtx(code, player.ID), "player reconnected")
	return nil
}

// handleLeaveRoom is the explicit form of a transport close: the same
// supervisor runs, so a mid-game leaver keeps their reconnect window, and
// the connection is closed to end its read loop.
func (r *Registry) handleLeaveRoom(conn Conn) *protocol.ErrorCode {
	b, ok := r.bindings[conn]
	if !ok {
		return refuse(conn, protocol.ErrNotInRoom, "not in a room")
	}
	delete(r.bindings, conn)
	r.releaseSeat(b)
	conn.Close()
	return nil
}

// departRoom removes player from room for good: broadcast, empty-room
// cleanup, and a defensive queue sweep. Identity is sampled before the
// player list is mutated.
func (r *Registry) departRoom(room *Room, player *Player) {
	code := room.Code
	playerID, playerName := player.ID, player.Name

	if player.reconnectTimer != nil {
		player.reconnectTimer.Stop()
		player.reconnectTimer = nil
	}

	for i, p := range room.Players {
		if p.ID == playerID {
			room.Players = append(room.Players[:i], room.Players[i+1:]...)
			break
		}
	}

	r.broadcast(room, protocol.PlayerLeft(playerID, playerName))

	if len(room.Players) == 0 {
		if room.turnTimer != nil {
			room.turnTimer.Stop()
			room.turnTimer = nil
		}
		delete(r.rooms, code)
		metrics.ActiveRooms.Set(float64(len(r.rooms)))
	}

	// The player should never be both seated and queued, but a stale queue
	// entry would pair a ghost. Sweep it.
	r.removeFromQueue(playerID)

	logging.Info(playerCtx(code, playerID), "player left room",
		zap.String("player_name", playerName))
}
