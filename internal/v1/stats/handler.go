// Package stats exposes the read-only HTTP surface: liveness, the lobby
// browser, and match-history queries.
package stats

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jobwars/server/internal/v1/logging"
	"github.com/jobwars/server/internal/v1/session"
	"github.com/jobwars/server/internal/v1/store"
)

// SessionSnapshot is the live-state view the handler reads. Implemented by
// the session registry.
type SessionSnapshot interface {
	RoomCount() int
	QueueLength() int
	WaitingRooms() []session.WaitingRoomInfo
}

// HistoryStore is the slice of the match-history store the handler queries.
type HistoryStore interface {
	Stats(ctx context.Context) (store.Stats, error)
	Leaderboard(ctx context.Context) ([]store.LeaderboardEntry, error)
	RecentMatches(ctx context.Context) ([]store.Match, error)
	Player(ctx context.Context, playerID string) (*store.PlayerStats, error)
}

// Handler serves the health and stats endpoints.
type Handler struct {
	sessions  SessionSnapshot
	history   HistoryStore
	startTime time.Time
}

// NewHandler creates a stats handler. Uptime is measured from this call.
func NewHandler(sessions SessionSnapshot, history HistoryStore) *Handler {
	return &Handler{
		sessions:  sessions,
		history:   history,
		startTime: time.Now(),
	}
}

// Register mounts all endpoints on the router.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/api/rooms", h.Rooms)
	r.GET("/api/stats", h.Stats)
	r.GET("/api/leaderboard", h.Leaderboard)
	r.GET("/api/matches/recent", h.RecentMatches)
	r.GET("/api/player/:id", h.Player)
}

// Health reports liveness plus a coarse load snapshot.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"rooms":       h.sessions.RoomCount(),
		"queueLength": h.sessions.QueueLength(),
		"uptime":      time.Since(h.startTime).Seconds(),
	})
}

// Rooms lists joinable rooms for the lobby browser, newest first.
func (h *Handler) Rooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.WaitingRooms())
}

// Stats returns the aggregate match summary.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.history.Stats(c.Request.Context())
	if err != nil {
		h.storeError(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Leaderboard returns the top players with at least three games.
func (h *Handler) Leaderboard(c *gin.Context) {
	entries, err := h.history.Leaderboard(c.Request.Context())
	if err != nil {
		h.storeError(c, "leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// RecentMatches returns the twenty most recent matches.
func (h *Handler) RecentMatches(c *gin.Context) {
	matches, err := h.history.RecentMatches(c.Request.Context())
	if err != nil {
		h.storeError(c, "recent matches", err)
		return
	}
	c.JSON(http.StatusOK, matches)
}

// Player returns one player's lifetime record, or 404 for a player that
// never finished a game.
func (h *Handler) Player(c *gin.Context) {
	player, err := h.history.Player(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, "player stats", err)
		return
	}
	if player == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
		return
	}
	c.JSON(http.StatusOK, player)
}

func (h *Handler) storeError(c *gin.Context, op string, err error) {
	logging.Error(c.Request.Context(), "history store query failed",
		zap.String("operation", op),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
}
