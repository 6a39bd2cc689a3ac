// Package session is the authoritative coordinator for rooms, matchmaking,
// turn timers, and presence. All mutable state lives behind a single mutex;
// outbound writes are non-blocking enqueues so holding the lock across a
// broadcast is safe.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobwars/server/internal/v1/logging"
	"github.com/jobwars/server/internal/v1/metrics"
	"github.com/jobwars/server/internal/v1/protocol"
)

// queueSentinel is the pseudo room code bound to a connection parked in the
// matchmaking queue.
const queueSentinel = "__queue__"

// reaperInterval is how often idle rooms are swept.
const reaperInterval = 5 * time.Minute

// Options tunes the registry. Zero values fall back to production defaults.
type Options struct {
	TurnDuration        time.Duration
	ReconnectTimeout    time.Duration
	PingInterval        time.Duration
	RoomExpiry          time.Duration
	MaxActionsPerSecond int
}

func (o Options) withDefaults() Options {
	if o.TurnDuration <= 0 {
		o.TurnDuration = 90 * time.Second
	}
	if o.ReconnectTimeout <= 0 {
		o.ReconnectTimeout = 120 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.RoomExpiry <= 0 {
		o.RoomExpiry = time.Hour
	}
	if o.MaxActionsPerSecond <= 0 {
		o.MaxActionsPerSecond = 10
	}
	return o
}

// binding ties a live connection to its seat.
type binding struct {
	playerID string
	roomCode string
}

// Registry owns every room and every connection binding.
type Registry struct {
	mu   sync.Mutex
	opts Options

	rooms    map[string]*Room
	queue    []*Player
	bindings map[Conn]binding

	// live holds every registered connection, bound or not, for the
	// keepalive loop.
	live map[Conn]struct{}

	recorder *MatchWriter

	closed bool
}

// NewRegistry builds an empty registry. recorder may be nil when match
// history is disabled.
func NewRegistry(opts Options, recorder *MatchWriter) *Registry {
	return &Registry{
		opts:     opts.withDefaults(),
		rooms:    make(map[string]*Room),
		bindings: make(map[Conn]binding),
		live:     make(map[Conn]struct{}),
		recorder: recorder,
	}
}

// Connect registers a freshly upgraded connection with the keepalive loop.
// The connection stays anonymous until its first create/join/find/reconnect
// frame binds it to a seat.
func (r *Registry) Connect(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		conn.Close()
		return
	}
	r.live[conn] = struct{}{}
	metrics.IncConnection()
}

// HandleFrame dispatches one inbound text frame from conn. All replies and
// broadcasts are enqueued before it returns.
func (r *Registry) HandleFrame(conn Conn, raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		metrics.Frames.WithLabelValues("invalid", "error").Inc()
		conn.Send(protocol.Error(protocol.ErrParse, "invalid message format"))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	var handleErr *protocol.ErrorCode
	switch env.Type {
	case protocol.TagCreateRoom:
		handleErr = r.handleCreateRoom(conn, env)
	case protocol.TagJoinRoom:
		handleErr = r.handleJoinRoom(conn, env)
	case protocol.TagFindMatch:
		handleErr = r.handleFindMatch(conn, env)
	case protocol.TagReconnect:
		handleErr = r.handleReconnect(conn, env)
	case protocol.TagLeaveRoom:
		handleErr = r.handleLeaveRoom(conn)
	case protocol.TagGameAction:
		handleErr = r.handleGameAction(conn, env)
	case protocol.TagChat:
		handleErr = r.handleChat(conn, env)
	case protocol.TagEmote:
		handleErr = r.handleEmote(conn, env)
	case protocol.TagGameEnd:
		handleErr = r.handleGameEnd(conn, env)
	case protocol.TagPong:
		// Keepalive reply, nothing to do.
	default:
		// Unknown tags are dropped so older servers tolerate newer clients.
		metrics.Frames.WithLabelValues(string(env.Type), "dropped").Inc()
		logging.Warn(context.Background(), "dropping frame with unknown type",
			zap.String("type", string(env.Type)))
		return
	}

	status := "ok"
	if handleErr != nil {
		status = "error"
	}
	metrics.Frames.WithLabelValues(string(env.Type), status).Inc()
}

// Disconnect tears down a connection. Waiting rooms dissolve immediately;
// playing rooms hold the seat open for the reconnect window.
func (r *Registry) Disconnect(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live[conn]; ok {
		delete(r.live, conn)
		metrics.DecConnection()
	}

	b, ok := r.bindings[conn]
	if !ok {
		return
	}
	delete(r.bindings, conn)
	r.releaseSeat(b)
}

// releaseSeat runs the supervisor for a binding whose connection is gone,
// whether by transport loss or an explicit leave_room. Waiting rooms
// dissolve; playing rooms hold the seat for the reconnect window.
func (r *Registry) releaseSeat(b binding) {
	if b.roomCode == queueSentinel {
		r.removeFromQueue(b.playerID)
		logging.Info(playerCtx("", b.playerID), "queued player disconnected")
		return
	}

	room, ok := r.rooms[b.roomCode]
	if !ok {
		return
	}
	player := room.playerByID(b.playerID)
	if player == nil {
		return
	}

	switch room.Status {
	case StatusPlaying:
		r.holdSeat(room, player)
	default:
		r.departRoom(room, player)
	}
}

// Shutdown closes every connection and stops all timers. New frames and
// connections are refused afterwards.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true

	for _, room := range r.rooms {
		if room.turnTimer != nil {
			room.turnTimer.Stop()
			room.turnTimer = nil
		}
		for _, p := range room.Players {
			if p.reconnectTimer != nil {
				p.reconnectTimer.Stop()
				p.reconnectTimer = nil
			}
		}
	}
	for conn := range r.live {
		conn.Close()
	}

	logging.Info(ctx, "session registry shut down",
		zap.Int("rooms", len(r.rooms)),
		zap.Int("connections", len(r.live)))

	r.rooms = make(map[string]*Room)
	r.queue = nil
	r.bindings = make(map[Conn]binding)
	r.live = make(map[Conn]struct{})
	metrics.ActiveRooms.Set(0)
	metrics.QueueDepth.Set(0)
}

// Run drives the keepalive and idle-room sweeps until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ping := time.NewTicker(r.opts.PingInterval)
	defer ping.Stop()
	reap := time.NewTicker(reaperInterval)
	defer reap.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			r.pingAll()
		case <-reap.C:
			r.reapIdleRooms()
		}
	}
}

// pingAll sends a keepalive to every live connection and drops the ones
// whose transport already closed.
func (r *Registry) pingAll() {
	frame := protocol.Ping(time.Now().UnixMilli())

	r.mu.Lock()
	defer r.mu.Unlock()
	for conn := range r.live {
		if err := conn.Send(frame); err != nil {
			delete(r.live, conn)
			metrics.DecConnection()
		}
	}
}

// reapIdleRooms deletes rooms past the expiry that are not mid-game.
// Playing rooms are left alone however old they are; the reconnect
// supervisor is the one that ends those.
func (r *Registry) reapIdleRooms() {
	cutoff := time.Now().Add(-r.opts.RoomExpiry)

	r.mu.Lock()
	defer r.mu.Unlock()
	for code, room := range r.rooms {
		if room.Status == StatusPlaying || room.CreatedAt.After(cutoff) {
			continue
		}
		if room.turnTimer != nil {
			room.turnTimer.Stop()
			room.turnTimer = nil
		}
		for _, p := range room.Players {
			if p.reconnectTimer != nil {
				p.reconnectTimer.Stop()
				p.reconnectTimer = nil
			}
			if p.conn != nil {
				delete(r.bindings, p.conn)
			}
		}
		delete(r.rooms, code)
		logging.Info(playerCtx(code, ""), "reaped idle room",
			zap.String("status", string(room.Status)),
			zap.Time("created_at", room.CreatedAt))
	}
	metrics.ActiveRooms.Set(float64(len(r.rooms)))
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// QueueLength returns the matchmaking queue depth.
func (r *Registry) QueueLength() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// WaitingRooms lists single-player waiting rooms, newest first, for the
// lobby browser.
func (r *Registry) WaitingRooms() []WaitingRoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]WaitingRoomInfo, 0)
	for _, room := range r.rooms {
		if room.Status != StatusWaiting || len(room.Players) != 1 {
			continue
		}
		host := room.Players[0]
		out = append(out, WaitingRoomInfo{
			Code:         room.Code,
			HostName:     host.Name,
			HostDeckID:   host.DeckID,
			CreatedAt:    room.CreatedAt.UnixMilli(),
			PlayersCount: len(room.Players),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

// broadcast enqueues data to every connected member of room.
func (r *Registry) broadcast(room *Room, data []byte) {
	for _, p := range room.Players {
		if p.Connected() && p.conn != nil {
			p.conn.Send(data)
		}
	}
}

// broadcastOthers enqueues data to every connected member except exceptID.
func (r *Registry) broadcastOthers(room *Room, exceptID string, data []byte) {
	for _, p := range room.Players {
		if p.ID == exceptID {
			continue
		}
		if p.Connected() && p.conn != nil {
			p.conn.Send(data)
		}
	}
}

// removeFromQueue drops playerID from the matchmaking queue if present.
func (r *Registry) removeFromQueue(playerID string) {
	for i, p := range r.queue {
		if p.ID == playerID {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			break
		}
	}
	metrics.QueueDepth.Set(float64(len(r.queue)))
}

// playerCtx builds a logging context carrying room and player identity.
func playerCtx(roomCode, playerID string) context.Context {
	ctx := context.Background()
	if roomCode != "" {
		ctx = context.WithValue(ctx, logging.RoomCodeKey, roomCode)
	}
	if playerID != "" {
		ctx = context.WithValue(ctx, logging.PlayerIDKey, playerID)
	}
	return ctx
}
