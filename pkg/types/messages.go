// Package types defines the JSON wire contract between clients and the
// draft server.
package types

import (
	"github.com/smite-tools/draft-server/internal/draft"
)

// Client -> server event types.
const (
	EvCreateRoom  = "create-room"
	EvJoinRoom    = "join-room"
	EvJoinSession = "join-session"
	EvDraftAction = "draft-action"
	EvUndoAction  = "undo-action"
	EvNextTurn    = "next-turn"
	EvSendMessage = "send-message"
)

// Server -> client event types.
const (
	EvRoomCreated     = "room-created"
	EvRoomUpdated     = "room-updated"
	EvSessionState    = "session-state"
	EvDraftUpdate     = "draft-update"
	EvTurnUpdate      = "turn-update"
	EvUsersUpdated    = "users-updated"
	EvMessageReceived = "message-received"
	EvRoomError       = "room-error"
)

// ClientEvent is the union of every inbound message; Type selects which
// fields are meaningful.
type ClientEvent struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`

	// draft-action
	Side            string `json:"side,omitempty"`
	Kind            string `json:"kind,omitempty"`
	ItemID          string `json:"itemId,omitempty"`
	ClientTurnIndex *int   `json:"clientTurnIndex,omitempty"`

	// next-turn
	TurnIndex *int `json:"turnIndex,omitempty"`

	// send-message
	Text string `json:"text,omitempty"`
}

// ServerEvent is the union of every outbound message.
type ServerEvent struct {
	Type      string        `json:"type"`
	RoomID    string        `json:"roomId,omitempty"`
	Room      *RoomSnapshot `json:"room,omitempty"`
	State     *draft.State  `json:"state,omitempty"`
	TurnIndex *int          `json:"turnIndex,omitempty"`
	Users     []UserInfo    `json:"users,omitempty"`
	Message   *ChatMessage  `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
}

type UserInfo struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

type ChatMessage struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Role      string `json:"role,omitempty"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// RoomSnapshot is the full-state view sent to a (re)joining participant.
type RoomSnapshot struct {
	ID       string        `json:"id"`
	Created  int64         `json:"created"` // unix milliseconds
	State    draft.State   `json:"draftState"`
	Messages []ChatMessage `json:"messages"`
	Users    []UserInfo    `json:"users"`
}
