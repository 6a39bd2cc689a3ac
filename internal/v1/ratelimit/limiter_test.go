package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobwars/server/internal/v1/config"
)

func newTestConfig(api, ws string) *config.Config {
	return &config.Config{RateLimitAPI: api, RateLimitWsIP: ws}
}

func TestNew_InvalidFormats(t *testing.T) {
	_, err := New(newTestConfig("banana", "60-M"))
	assert.Error(t, err)

	_, err = New(newTestConfig("100-M", ""))
	assert.Error(t, err)
}

func TestAPIMiddleware_EnforcesLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl, err := New(newTestConfig("3-M", "60-M"))
	require.NoError(t, err)

	r := gin.New()
	r.Use(rl.APIMiddleware())
	r.GET("/api/stats", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() *httptest.ResponseRecorder {
		req, _ := http.NewRequest("GET", "/api/stats", nil)
		req.RemoteAddr = "192.0.2.10:12345"
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		return resp
	}

	for i := 0; i < 3; i++ {
		resp := do()
		assert.Equal(t, http.StatusOK, resp.Code, "request %d should pass", i+1)
		assert.NotEmpty(t, resp.Header().Get("X-RateLimit-Remaining"))
	}

	resp := do()
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))
}

func TestCheckWebSocket_EnforcesLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl, err := New(newTestConfig("100-M", "2-M"))
	require.NoError(t, err)

	do := func() (bool, *httptest.ResponseRecorder) {
		resp := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(resp)
		c.Request, _ = http.NewRequest("GET", "/ws", nil)
		c.Request.RemoteAddr = "192.0.2.20:9999"
		return rl.CheckWebSocket(c), resp
	}

	ok, _ := do()
	assert.True(t, ok)
	ok, _ = do()
	assert.True(t, ok)

	ok, resp := do()
	assert.False(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestCheckWebSocket_SeparateIPsSeparateBudgets(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl, err := New(newTestConfig("100-M", "1-M"))
	require.NoError(t, err)

	do := func(addr string) bool {
		resp := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(resp)
		c.Request, _ = http.NewRequest("GET", "/ws", nil)
		c.Request.RemoteAddr = addr
		return rl.CheckWebSocket(c)
	}

	assert.True(t, do("192.0.2.30:1"))
	assert.False(t, do("192.0.2.30:2"), "second attempt from same IP blocked")
	assert.True(t, do("192.0.2.31:1"), "different IP has its own budget")
}
