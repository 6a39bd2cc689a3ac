// Package protocol defines the websocket wire format: tagged JSON text
// frames exchanged between clients and the session server, and the closed
// set of error codes the server replies with.
package protocol

import (
	"encoding/json"
	"errors"
)

// Tag identifies the type of a frame.
type Tag string

// Client → server tags.
const (
	TagCreateRoom Tag = "create_room"
	TagJoinRoom   Tag = "join_room"
	TagFindMatch  Tag = "find_match"
	TagLeaveRoom  Tag = "leave_room"
	TagReconnect  Tag = "reconnect"
	TagGameAction Tag = "game_action"
	TagChat       Tag = "chat"
	TagEmote      Tag = "emote"
	TagGameEnd    Tag = "game_end"
	TagPong       Tag = "pong"
)

// Server → client tags.
const (
	TagRoomCreated        Tag = "room_created"
	TagPlayerJoined       Tag = "player_joined"
	TagPlayerLeft         Tag = "player_left"
	TagGameStart          Tag = "game_start"
	TagTurnStart          Tag = "turn_start"
	TagPlayerDisconnected Tag = "player_disconnected"
	TagReconnected        Tag = "reconnected"
	TagPing               Tag = "ping"
	TagError              Tag = "error"
)

// ErrorCode is the closed set of structured refusal codes.
type ErrorCode string

const (
	ErrParse           ErrorCode = "PARSE_ERROR"
	ErrRoomNotFound    ErrorCode = "ROOM_NOT_FOUND"
	ErrGameInProgress  ErrorCode = "GAME_IN_PROGRESS"
	ErrRoomFull        ErrorCode = "ROOM_FULL"
	ErrNotInRoom       ErrorCode = "NOT_IN_ROOM"
	ErrNotYourTurn     ErrorCode = "NOT_YOUR_TURN"
	ErrRateLimit       ErrorCode = "RATE_LIMIT"
	ErrKicked          ErrorCode = "KICKED"
	ErrPlayerNotFound  ErrorCode = "PLAYER_NOT_FOUND"
	ErrNotDisconnected ErrorCode = "NOT_DISCONNECTED"
)

// ErrMissingType is returned by Decode when the frame has no type tag.
var ErrMissingType = errors.New("frame has no type tag")

// Envelope is a decoded inbound frame. Fields not relevant to the tagged
// type are left at their zero values; Action and GameState are kept raw so
// the session layer can relay them verbatim.
type Envelope struct {
	Type       Tag             `json:"type"`
	PlayerName string          `json:"playerName"`
	DeckID     string          `json:"deckId"`
	RoomCode   string          `json:"roomCode"`
	PlayerID   string          `json:"playerId"`
	Action     json.RawMessage `json:"action"`
	GameState  json.RawMessage `json:"gameState"`
	Message    string          `json:"message"`
	EmoteID    string          `json:"emoteId"`
	WinnerID   *string         `json:"winnerId"`
	TurnCount  int             `json:"turnCount"`
}

// Decode parses a raw text frame into an Envelope. A frame that is not a
// JSON object, or that carries no type tag, is a protocol error.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}
	return &env, nil
}

// ActionType extracts the nested type of a game action. Clients normally
// send an object with a "type" field, but a bare string is accepted too.
func ActionType(action json.RawMessage) string {
	if len(action) == 0 {
		return ""
	}
	var obj struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(action, &obj); err == nil && obj.Type != "" {
		return obj.Type
	}
	var s string
	if err := json.Unmarshal(action, &s); err == nil {
		return s
	}
	return ""
}

// HasGameState reports whether the frame carried a gameState field,
// including an explicit null.
func (e *Envelope) HasGameState() bool {
	return len(e.GameState) > 0
}
