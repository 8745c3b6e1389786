package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/shotgun-games/draftroom/internal/room"
)

// Handler accepts websocket connections and routes their inbound events
// to the engine. A dropped transport is reported to the engine as a
// disconnect, which starts the grace window for mid-draft members.
type Handler struct {
	manager *Manager
	engine  *room.Engine
}

func NewHandler(manager *Manager, engine *room.Engine) *Handler {
	return &Handler{manager: manager, engine: engine}
}

// RegisterRoutes registers the websocket endpoint.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
}

// HandleConnection upgrades the request and serves the connection until
// the transport closes.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	sock, err := h.manager.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	conn := &Connection{
		ID:          uuid.NewString(),
		sock:        sock,
		send:        make(chan []byte, 256),
		closed:      make(chan struct{}),
		manager:     h.manager,
		ConnectedAt: time.Now(),
	}
	h.manager.register(conn)

	log.Info().Str("conn_id", conn.ID).Msg("websocket connection established")

	go conn.writePump()
	h.readPump(conn)
}

func (h *Handler) readPump(conn *Connection) {
	defer func() {
		h.manager.unregister(conn)
		conn.sock.Close()
		h.engine.Disconnect(conn.ID)
	}()

	conn.sock.SetReadLimit(h.manager.config.MaxMessageSize)
	conn.sock.SetReadDeadline(time.Now().Add(h.manager.config.ReadTimeout))
	conn.sock.SetPongHandler(func(string) error {
		conn.sock.SetReadDeadline(time.Now().Add(h.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn_id", conn.ID).Msg("unexpected websocket close")
			}
			return
		}
		h.dispatch(conn, message)
		conn.sock.SetReadDeadline(time.Now().Add(h.manager.config.ReadTimeout))
	}
}

// dispatch routes one inbound frame. Malformed frames and events for
// vanished rooms produce a unicast error or nothing at all; they never
// take the connection down.
func (h *Handler) dispatch(conn *Connection, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Debug().Err(err).Str("conn_id", conn.ID).Msg("malformed client message")
		h.sendError(conn.ID, room.ErrInvalidInput)
		return
	}

	var err error
	switch msg.Type {
	case msgCreateRoom:
		var p createRoomPayload
		if err = decode(msg.Data, &p); err == nil {
			err = h.engine.CreateRoom(conn.ID, p.DisplayName)
		}
	case msgJoinRoom:
		var p joinRoomPayload
		if err = decode(msg.Data, &p); err == nil {
			err = h.engine.JoinRoom(conn.ID, p.RoomID, p.DisplayName)
		}
	case msgStartDraft:
		var p roomPayload
		if err = decode(msg.Data, &p); err == nil {
			err = h.engine.StartDraft(conn.ID, p.RoomID)
		}
	case msgSelectItem:
		var p selectItemPayload
		if err = decode(msg.Data, &p); err == nil {
			err = h.engine.SubmitSelection(conn.ID, p.RoomID, p.ItemID)
		}
	case msgRequestTurnSync:
		var p roomPayload
		if err = decode(msg.Data, &p); err == nil {
			err = h.engine.TurnSync(conn.ID, p.RoomID)
		}
	case msgRequestStateSync:
		var p roomPayload
		if err = decode(msg.Data, &p); err == nil {
			err = h.engine.StateSync(conn.ID, p.RoomID)
		}
	case msgReconnect:
		var p reconnectPayload
		if err = decode(msg.Data, &p); err == nil {
			err = h.engine.Reconnect(conn.ID, p.RoomID, p.DisplayName)
		}
	default:
		log.Warn().Str("conn_id", conn.ID).Str("type", msg.Type).Msg("unknown event type, ignoring")
		return
	}

	if err != nil {
		h.sendError(conn.ID, err)
	}
}

// decode unmarshals an inbound payload, collapsing malformed JSON into
// the caller-attributable invalid-input error.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return room.ErrInvalidInput
	}
	if err := json.Unmarshal(data, v); err != nil {
		return room.ErrInvalidInput
	}
	return nil
}

func (h *Handler) sendError(connID string, err error) {
	payload := room.ErrorPayload{Code: "internal_error", Message: "something went wrong"}
	var coded *room.Error
	if errors.As(err, &coded) {
		payload = room.ErrorPayload{Code: coded.Code, Message: coded.Message}
	} else {
		log.Error().Err(err).Str("conn_id", connID).Msg("unexpected engine error")
	}
	h.manager.Send(connID, &room.Event{ID: uuid.NewString(), Type: room.EventError, Data: payload})
}
