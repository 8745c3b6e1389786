package room

import (
	"github.com/google/uuid"

	"github.com/shotgun-games/draftroom/internal/catalog"
)

// EventType identifies an outbound event delivered through the gateway.
type EventType string

const (
	EventRoomCreated        EventType = "room-created"
	EventRoomJoined         EventType = "room-joined"
	EventMembershipChanged  EventType = "membership-changed"
	EventMemberJoined       EventType = "member-joined"
	EventDraftStarted       EventType = "draft-started"
	EventTurnUpdate         EventType = "turn-update"
	EventCountdownTick      EventType = "countdown-tick"
	EventItemSelected       EventType = "item-selected"
	EventItemAutoSelected   EventType = "item-auto-selected"
	EventItemList           EventType = "item-list"
	EventDraftCompleted     EventType = "draft-completed"
	EventTurnSync           EventType = "turn-sync"
	EventStateSync          EventType = "state-sync"
	EventMemberDisconnected EventType = "member-disconnected"
	EventMemberReconnected  EventType = "member-reconnected"
	EventHostChanged        EventType = "host-changed"
	EventTurnOrderChanged   EventType = "turn-order-changed"
	EventError              EventType = "error"
)

// Event is the envelope for every outbound message. Data holds one of
// the payload structs below; the gateway marshals the whole envelope.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

func newEvent(t EventType, data any) *Event {
	return &Event{ID: uuid.NewString(), Type: t, Data: data}
}

// Sink carries outbound events to a connection. The websocket gateway
// implements it; tests substitute a recorder. Send must not block.
type Sink interface {
	Send(connID string, evt *Event)
}

// MemberInfo is one entry of a membership-changed payload.
type MemberInfo struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsHost   bool   `json:"isHost"`
}

// TurnEntry is one seat in the broadcast turn order.
type TurnEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// RosterEntry is one member's final team in a draft-completed payload.
type RosterEntry struct {
	UserID   string         `json:"userId"`
	Username string         `json:"username"`
	IsHost   bool           `json:"isHost"`
	Items    []catalog.Item `json:"items"`
}

// RoomCreatedPayload acknowledges room creation, unicast to the creator.
type RoomCreatedPayload struct {
	RoomID string `json:"roomId"`
	HostID string `json:"hostId"`
	IsHost bool   `json:"isHost"`
}

// RoomJoinedPayload acknowledges a join or rejoin, unicast.
type RoomJoinedPayload struct {
	RoomID string `json:"roomId"`
	HostID string `json:"hostId"`
	IsHost bool   `json:"isHost"`
}

// MembershipPayload carries the full member list with host flags.
type MembershipPayload struct {
	Members []MemberInfo `json:"members"`
}

// MemberEventPayload announces one member joining, leaving or returning.
type MemberEventPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Message  string `json:"message,omitempty"`
}

// TurnStatePayload describes the acting member and the turn order. It is
// the payload of draft-started, turn-update and turn-sync events.
type TurnStatePayload struct {
	CurrentUserID    string      `json:"currentUserId"`
	CurrentUsername  string      `json:"currentUsername"`
	TimeLeft         int         `json:"timeLeft"`
	TurnOrder        []TurnEntry `json:"turnOrder"`
	CurrentTurnIndex int         `json:"currentTurnIndex"`
	TotalTurns       int         `json:"totalTurns"`
}

// CountdownTickPayload carries the seconds remaining in the active turn.
type CountdownTickPayload struct {
	TimeLeft int `json:"timeLeft"`
}

// SelectionPayload announces an item assignment. The event type tells
// manual picks (item-selected) from system picks (item-auto-selected).
type SelectionPayload struct {
	UserID   string       `json:"userId"`
	Username string       `json:"username"`
	Item     catalog.Item `json:"item"`
	Message  string       `json:"message,omitempty"`
}

// ItemListPayload carries the items still in the room's pool.
type ItemListPayload struct {
	Items []catalog.Item `json:"items"`
}

// DraftCompletedPayload carries every member's final roster.
type DraftCompletedPayload struct {
	Rosters []RosterEntry `json:"rosters"`
	Message string        `json:"message,omitempty"`
}

// HostChangedPayload announces host migration or restoration.
type HostChangedPayload struct {
	HostID   string `json:"hostId"`
	Username string `json:"username"`
	Message  string `json:"message,omitempty"`
}

// TurnOrderChangedPayload announces a turn-order splice or append.
type TurnOrderChangedPayload struct {
	TurnOrder        []TurnEntry `json:"turnOrder"`
	CurrentTurnIndex int         `json:"currentTurnIndex"`
	Message          string      `json:"message,omitempty"`
}

// StateSyncPayload is the full point-in-time snapshot pushed to a single
// connection after reconnect or on request. Turn is nil unless the room
// is drafting.
type StateSyncPayload struct {
	RoomID  string            `json:"roomId"`
	Status  Status            `json:"status"`
	HostID  string            `json:"hostId"`
	Members []MemberInfo      `json:"members"`
	Items   []catalog.Item    `json:"items"`
	Turn    *TurnStatePayload `json:"turn,omitempty"`
}

// ErrorPayload surfaces a caller-attributable failure, unicast only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
