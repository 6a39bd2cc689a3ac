package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantTag Tag
		wantErr bool
	}{
		{
			name:    "create_room with fields",
			raw:     `{"type":"create_room","playerName":"Alice","deckId":"d1"}`,
			wantTag: TagCreateRoom,
		},
		{
			name:    "game_action with nested action",
			raw:     `{"type":"game_action","action":{"type":"play_card","cardId":7}}`,
			wantTag: TagGameAction,
		},
		{
			name:    "unknown tag still decodes",
			raw:     `{"type":"telemetry"}`,
			wantTag: Tag("telemetry"),
		},
		{
			name:    "not json",
			raw:     `{nope`,
			wantErr: true,
		},
		{
			name:    "missing type tag",
			raw:     `{"playerName":"Alice"}`,
			wantErr: true,
		},
		{
			name:    "json but not an object",
			raw:     `[1,2,3]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTag, env.Type)
		})
	}
}

func TestDecode_KeepsRawPayloads(t *testing.T) {
	raw := `{"type":"game_action","action":{"type":"end_turn"},"gameState":{"board":[1,2]}}`
	env, err := Decode([]byte(raw))
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"end_turn"}`, string(env.Action))
	assert.True(t, env.HasGameState())
	assert.JSONEq(t, `{"board":[1,2]}`, string(env.GameState))
}

func TestDecode_ExplicitNullGameState(t *testing.T) {
	env, err := Decode([]byte(`{"type":"game_action","action":{"type":"mulligan"},"gameState":null}`))
	require.NoError(t, err)
	assert.True(t, env.HasGameState())

	env, err = Decode([]byte(`{"type":"game_action","action":{"type":"mulligan"}}`))
	require.NoError(t, err)
	assert.False(t, env.HasGameState())
}

func TestActionType(t *testing.T) {
	tests := []struct {
		name   string
		action string
		want   string
	}{
		{"object with type", `{"type":"end_turn","auto":true}`, "end_turn"},
		{"bare string", `"keep_hand"`, "keep_hand"},
		{"object without type", `{"cardId":3}`, ""},
		{"empty", ``, ""},
		{"number", `42`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ActionType(json.RawMessage(tt.action)))
		})
	}
}

func TestOutboundFrames(t *testing.T) {
	t.Run("error frame", func(t *testing.T) {
		assert.JSONEq(t,
			`{"type":"error","code":"ROOM_FULL","message":"Room is full"}`,
			string(Error(ErrRoomFull, "Room is full")))
	})

	t.Run("turn_start carries duration in ms", func(t *testing.T) {
		assert.JSONEq(t,
			`{"type":"turn_start","playerId":"p1","turnDuration":90000}`,
			string(TurnStart("p1", 90000)))
	})

	t.Run("auto end_turn is flagged", func(t *testing.T) {
		var frame struct {
			Type   Tag `json:"type"`
			Action struct {
				Type string `json:"type"`
				Auto bool   `json:"auto"`
			} `json:"action"`
		}
		require.NoError(t, json.Unmarshal(AutoEndTurn("p2", 123), &frame))
		assert.Equal(t, TagGameAction, frame.Type)
		assert.Equal(t, "end_turn", frame.Action.Type)
		assert.True(t, frame.Action.Auto)
	})

	t.Run("reconnected with nil snapshot sends null", func(t *testing.T) {
		assert.JSONEq(t, `{"type":"reconnected","gameState":null}`, string(Reconnected(nil)))
	})

	t.Run("game_start descriptors", func(t *testing.T) {
		p1 := PlayerInfo{ID: "a", Name: "Alice", DeckID: "d1"}
		p2 := PlayerInfo{ID: "b", Name: "Bob", DeckID: "d2"}
		frame := GameStart("ABC234", "a", "b", p1, p2)
		assert.JSONEq(t, `{
			"type":"game_start","roomCode":"ABC234",
			"yourPlayerId":"a","opponentId":"b",
			"player1":{"id":"a","name":"Alice","deckId":"d1"},
			"player2":{"id":"b","name":"Bob","deckId":"d2"}
		}`, string(frame))
	})
}
