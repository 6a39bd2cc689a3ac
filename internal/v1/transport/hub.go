package transport

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jobwars/server/internal/v1/logging"
	"github.com/jobwars/server/internal/v1/ratelimit"
)

// Hub upgrades HTTP requests to websocket connections and hands them to
// the session layer.
type Hub struct {
	sessions       SessionHandler
	rateLimiter    *ratelimit.RateLimiter
	allowedOrigins []string
}

// NewHub wires the websocket entry point. rateLimiter may be nil to skip
// connection throttling (tests).
func NewHub(sessions SessionHandler, rateLimiter *ratelimit.RateLimiter, allowedOrigins []string) *Hub {
	return &Hub{
		sessions:       sessions,
		rateLimiter:    rateLimiter,
		allowedOrigins: allowedOrigins,
	}
}

// ServeWs is the gin handler for GET /ws.
func (h *Hub) ServeWs(c *gin.Context) {
	// Throttle before spending anything on the upgrade.
	if h.rateLimiter != nil && !h.rateLimiter.CheckWebSocket(c) {
		return // Response already written by CheckWebSocket
	}

	if err := validateOrigin(c.Request, h.allowedOrigins); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
		return
	}

	conn, err := h.upgradeWebSocket(c)
	if err != nil {
		return
	}

	h.HandleConnection(conn)
}

// HandleConnection registers an established websocket connection and starts
// its pumps. Split from ServeWs so tests can drive a mock connection.
func (h *Hub) HandleConnection(conn wsConnection) {
	client := newClient(conn, h.sessions)
	h.sessions.Connect(client)

	go client.writePump()
	go client.readPump()
}

// validateOrigin checks if the request origin is in the allowed list.
// Requests without an Origin header are allowed so non-browser clients and
// health probes can connect.
func validateOrigin(r *http.Request, allowedOrigins []string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		logging.Warn(r.Context(), "invalid origin URL", zap.String("origin", origin), zap.Error(err))
		return fmt.Errorf("invalid origin URL: %w", err)
	}

	for _, allowed := range allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return nil
		}
	}

	logging.Warn(r.Context(), "origin not in allowed list",
		zap.String("origin", origin),
		zap.Strings("allowed_origins", allowedOrigins))
	return fmt.Errorf("origin not allowed: %s", origin)
}

// upgradeWebSocket handles the WebSocket upgrade process.
func (h *Hub) upgradeWebSocket(c *gin.Context) (wsConnection, error) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r, h.allowedOrigins) == nil
		},
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to upgrade connection", zap.Error(err))
		return nil, err
	}
	return conn, nil
}
