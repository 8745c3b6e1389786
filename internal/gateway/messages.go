package gateway

import "encoding/json"

// clientMessage is the envelope for every inbound websocket frame.
type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound event names accepted from clients.
const (
	msgCreateRoom       = "create-room"
	msgJoinRoom         = "join-room"
	msgStartDraft       = "start-draft"
	msgSelectItem       = "select-item"
	msgRequestTurnSync  = "request-turn-sync"
	msgRequestStateSync = "request-state-sync"
	msgReconnect        = "reconnect"
)

type createRoomPayload struct {
	DisplayName string `json:"displayName"`
}

type joinRoomPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type selectItemPayload struct {
	RoomID string `json:"roomId"`
	ItemID int    `json:"itemId"`
}

type reconnectPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}
