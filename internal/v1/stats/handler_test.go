package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobwars/server/internal/v1/session"
	"github.com/jobwars/server/internal/v1/store"
)

type fakeSessions struct {
	rooms   int
	queue   int
	waiting []session.WaitingRoomInfo
}

func (f *fakeSessions) RoomCount() int                        { return f.rooms }
func (f *fakeSessions) QueueLength() int                      { return f.queue }
func (f *fakeSessions) WaitingRooms() []session.WaitingRoomInfo { return f.waiting }

type fakeHistory struct {
	stats       store.Stats
	leaderboard []store.LeaderboardEntry
	recent      []store.Match
	players     map[string]*store.PlayerStats
	err         error
}

func (f *fakeHistory) Stats(context.Context) (store.Stats, error) {
	return f.stats, f.err
}

func (f *fakeHistory) Leaderboard(context.Context) ([]store.LeaderboardEntry, error) {
	return f.leaderboard, f.err
}

func (f *fakeHistory) RecentMatches(context.Context) ([]store.Match, error) {
	return f.recent, f.err
}

func (f *fakeHistory) Player(_ context.Context, playerID string) (*store.PlayerStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.players[playerID], nil
}

func serve(t *testing.T, h *Handler, path string) (int, []byte) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.Register(router)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func TestHealth(t *testing.T) {
	h := NewHandler(&fakeSessions{rooms: 3, queue: 1}, &fakeHistory{})

	code, body := serve(t, h, "/health")
	require.Equal(t, http.StatusOK, code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(3), resp["rooms"])
	assert.Equal(t, float64(1), resp["queueLength"])
	assert.GreaterOrEqual(t, resp["uptime"].(float64), float64(0))
}

func TestRooms_ListsWaiting(t *testing.T) {
	h := NewHandler(&fakeSessions{waiting: []session.WaitingRoomInfo{
		{Code: "ABCDEF", HostName: "Ada", HostDeckID: "d1", CreatedAt: 1700000000000, PlayersCount: 1},
	}}, &fakeHistory{})

	code, body := serve(t, h, "/api/rooms")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[{"code":"ABCDEF","hostName":"Ada","hostDeckId":"d1","createdAt":1700000000000,"playersCount":1}]`, string(body))
}

func TestRooms_EmptyIsArrayNotNull(t *testing.T) {
	h := NewHandler(&fakeSessions{waiting: []session.WaitingRoomInfo{}}, &fakeHistory{})

	_, body := serve(t, h, "/api/rooms")
	assert.JSONEq(t, `[]`, string(body))
}

func TestStats(t *testing.T) {
	h := NewHandler(&fakeSessions{}, &fakeHistory{stats: store.Stats{
		TotalMatches:     40,
		TotalPlayers:     11,
		AvgMatchDuration: 312.5,
	}})

	code, body := serve(t, h, "/api/stats")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"totalMatches":40,"totalPlayers":11,"avgMatchDuration":312.5}`, string(body))
}

func TestLeaderboard(t *testing.T) {
	h := NewHandler(&fakeSessions{}, &fakeHistory{leaderboard: []store.LeaderboardEntry{
		{PlayerID: "p1", PlayerName: "Ada", TotalGames: 10, Wins: 7, Losses: 2, Draws: 1, WinRate: 70.0},
	}})

	code, body := serve(t, h, "/api/leaderboard")
	require.Equal(t, http.StatusOK, code)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Ada", entries[0]["player_name"])
	assert.Equal(t, float64(70), entries[0]["win_rate"])
}

func TestRecentMatches(t *testing.T) {
	winner := "p1"
	h := NewHandler(&fakeSessions{}, &fakeHistory{recent: []store.Match{
		{ID: 2, Player1ID: "p1", Player2ID: "p2", WinnerID: &winner, StartTime: 100, EndTime: 200, TurnCount: 9},
	}})

	code, body := serve(t, h, "/api/matches/recent")
	require.Equal(t, http.StatusOK, code)

	var matches []map[string]any
	require.NoError(t, json.Unmarshal(body, &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "p1", matches[0]["winner_id"])
}

func TestPlayer_FoundAndMissing(t *testing.T) {
	h := NewHandler(&fakeSessions{}, &fakeHistory{players: map[string]*store.PlayerStats{
		"p1": {PlayerID: "p1", PlayerName: "Ada", TotalGames: 4, Wins: 2, Losses: 1, Draws: 1, WinRate: 50.0},
	}})

	code, body := serve(t, h, "/api/player/p1")
	require.Equal(t, http.StatusOK, code)
	var player map[string]any
	require.NoError(t, json.Unmarshal(body, &player))
	assert.Equal(t, "Ada", player["player_name"])

	code, body = serve(t, h, "/api/player/ghost")
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"error":"player not found"}`, string(body))
}

func TestStoreFailuresReturn500(t *testing.T) {
	h := NewHandler(&fakeSessions{}, &fakeHistory{err: errors.New("disk gone")})

	for _, path := range []string{"/api/stats", "/api/leaderboard", "/api/matches/recent", "/api/player/p1"} {
		code, body := serve(t, h, path)
		assert.Equal(t, http.StatusInternalServerError, code, path)
		assert.JSONEq(t, `{"error":"storage unavailable"}`, string(body))
	}
}
