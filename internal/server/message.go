package server

import (
	"encoding/json"
	"time"

	"github.com/Kumar2007/MarvelClashArena/internal/combat"
	"github.com/Kumar2007/MarvelClashArena/internal/match"
	"github.com/Kumar2007/MarvelClashArena/internal/storage"
)

// MessageType represents a WebSocket message type with type safety
type MessageType string

// Client to server messages. Server to client messages are the match
// event kinds plus the types below.
const (
	MessageTypeLogin       MessageType = "auth:login"
	MessageTypeLobbyCreate MessageType = "lobby:create"
	MessageTypeLobbyJoin   MessageType = "lobby:join"
	MessageTypeBotCreate   MessageType = "bot:create"
	MessageTypeSelectHero  MessageType = "game:select_hero"
	MessageTypeConfirmTeam MessageType = "game:confirm_team"
	MessageTypeTurnAction  MessageType = "turn:action"
	MessageTypeTurnSwap    MessageType = "turn:swap"
	MessageTypeSurrender   MessageType = "game:surrender"
	MessageTypeGameState   MessageType = "game:state"

	MessageTypeAuthSuccess  MessageType = "auth:success"
	MessageTypeLobbyCreated MessageType = "lobby:created"
	MessageTypeError        MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message stamped with now
func NewMessage(messageType MessageType, data any, now time.Time) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: now,
	}, nil
}

// Client → Server Messages

type LoginData struct {
	Username string `json:"username"`
}

type LobbyJoinData struct {
	Code string `json:"code"`
}

type BotCreateData struct {
	Difficulty match.Difficulty `json:"difficulty"`
}

type SelectHeroData struct {
	HeroID string `json:"heroId"`
}

type TurnActionData struct {
	HeroID   string `json:"heroId"`
	SkillID  *int   `json:"skillId"`
	TargetID string `json:"targetId,omitempty"`
}

type TurnSwapData struct {
	HeroID   string          `json:"heroId"`
	Position combat.Position `json:"position"`
}

// Server → Client Messages

type AuthSuccessData struct {
	SessionID   string        `json:"sessionId"`
	User        *storage.User `json:"user"`
	Created     bool          `json:"created"`
	ActiveMatch string        `json:"activeMatch,omitempty"`
}

type LobbyCreatedData struct {
	Code string `json:"code"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
