package protocol

import "encoding/json"

// PlayerInfo is the public descriptor of a player carried in game_start.
type PlayerInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	DeckID string `json:"deckId"`
}

type roomCreatedFrame struct {
	Type     Tag    `json:"type"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

type playerEventFrame struct {
	Type       Tag    `json:"type"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type gameStartFrame struct {
	Type         Tag        `json:"type"`
	RoomCode     string     `json:"roomCode"`
	YourPlayerID string     `json:"yourPlayerId"`
	OpponentID   string     `json:"opponentId"`
	Player1      PlayerInfo `json:"player1"`
	Player2      PlayerInfo `json:"player2"`
}

type turnStartFrame struct {
	Type         Tag    `json:"type"`
	PlayerID     string `json:"playerId"`
	TurnDuration int64  `json:"turnDuration"`
}

type gameActionFrame struct {
	Type      Tag             `json:"type"`
	PlayerID  string          `json:"playerId"`
	Action    json.RawMessage `json:"action"`
	Timestamp int64           `json:"timestamp"`
}

type playerDisconnectedFrame struct {
	Type              Tag    `json:"type"`
	PlayerID          string `json:"playerId"`
	ReconnectDeadline int64  `json:"reconnectDeadline"`
}

type reconnectedFrame struct {
	Type      Tag             `json:"type"`
	GameState json.RawMessage `json:"gameState"`
}

type chatFrame struct {
	Type       Tag    `json:"type"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
}

type emoteFrame struct {
	Type       Tag    `json:"type"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	EmoteID    string `json:"emoteId"`
}

type pingFrame struct {
	Type      Tag   `json:"type"`
	Timestamp int64 `json:"timestamp"`
}

type errorFrame struct {
	Type    Tag       `json:"type"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Every frame type above marshals without error; a failure here is a
		// programming bug, not a runtime condition.
		panic(err)
	}
	return data
}

// RoomCreated builds a room_created frame.
func RoomCreated(roomCode, playerID string) []byte {
	return mustMarshal(roomCreatedFrame{TagRoomCreated, roomCode, playerID})
}

// PlayerJoined builds a player_joined frame.
func PlayerJoined(playerID, playerName string) []byte {
	return mustMarshal(playerEventFrame{TagPlayerJoined, playerID, playerName})
}

// PlayerLeft builds a player_left frame.
func PlayerLeft(playerID, playerName string) []byte {
	return mustMarshal(playerEventFrame{TagPlayerLeft, playerID, playerName})
}

// GameStart builds the game_start frame addressed to one of the two players.
func GameStart(roomCode, yourID, opponentID string, p1, p2 PlayerInfo) []byte {
	return mustMarshal(gameStartFrame{TagGameStart, roomCode, yourID, opponentID, p1, p2})
}

// TurnStart builds a turn_start frame. turnDuration is in milliseconds.
func TurnStart(playerID string, turnDurationMs int64) []byte {
	return mustMarshal(turnStartFrame{TagTurnStart, playerID, turnDurationMs})
}

// GameAction builds the fan-out copy of a relayed action. timestamp is in
// milliseconds.
func GameAction(playerID string, action json.RawMessage, timestampMs int64) []byte {
	return mustMarshal(gameActionFrame{TagGameAction, playerID, action, timestampMs})
}

// AutoEndTurn builds the synthesized end_turn action broadcast when a turn
// timer fires.
func AutoEndTurn(playerID string, timestampMs int64) []byte {
	action := json.RawMessage(`{"type":"end_turn","auto":true}`)
	return mustMarshal(gameActionFrame{TagGameAction, playerID, action, timestampMs})
}

// PlayerDisconnected builds a player_disconnected frame. The deadline is in
// milliseconds since the epoch.
func PlayerDisconnected(playerID string, deadlineMs int64) []byte {
	return mustMarshal(playerDisconnectedFrame{TagPlayerDisconnected, playerID, deadlineMs})
}

// Reconnected builds the reconnected frame carrying the latest game state
// snapshot verbatim. A nil snapshot is sent as JSON null.
func Reconnected(gameState json.RawMessage) []byte {
	if len(gameState) == 0 {
		gameState = json.RawMessage("null")
	}
	return mustMarshal(reconnectedFrame{TagReconnected, gameState})
}

// Chat builds a chat broadcast frame.
func Chat(playerID, playerName, message string) []byte {
	return mustMarshal(chatFrame{TagChat, playerID, playerName, message})
}

// Emote builds an emote broadcast frame.
func Emote(playerID, playerName, emoteID string) []byte {
	return mustMarshal(emoteFrame{TagEmote, playerID, playerName, emoteID})
}

// Ping builds a keepalive frame. timestamp is in milliseconds.
func Ping(timestampMs int64) []byte {
	return mustMarshal(pingFrame{TagPing, timestampMs})
}

// Error builds a structured error frame.
func Error(code ErrorCode, message string) []byte {
	return mustMarshal(errorFrame{TagError, code, message})
}
