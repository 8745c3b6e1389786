package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/shotgun-games/draftroom/internal/room"
)

// Config holds websocket connection tuning.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns the default websocket configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Manager owns the live websocket connections, keyed by connection id.
// It implements room.Sink: the engine hands it outbound events and it
// fans them out to per-connection send buffers.
type Manager struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	upgrader websocket.Upgrader
	config   Config
}

// Connection is one client's websocket session. closed is shut on
// unregistration; the send channel itself is never closed, so a
// concurrent Send can at worst drop an event, never panic.
type Connection struct {
	ID      string
	sock    *websocket.Conn
	send    chan []byte
	closed  chan struct{}
	manager *Manager

	ConnectedAt time.Time
}

func NewManager(config Config) *Manager {
	return &Manager{
		conns: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// Send implements room.Sink. It never blocks: a connection whose send
// buffer is full is treated as dead and closed.
func (m *Manager) Send(connID string, evt *room.Event) {
	m.mu.RLock()
	conn, ok := m.conns[connID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(evt.Type)).Msg("failed to marshal event")
		return
	}

	select {
	case conn.send <- data:
	case <-conn.closed:
	default:
		log.Warn().Str("conn_id", connID).Msg("send buffer full, closing connection")
		m.unregister(conn)
		conn.sock.Close()
	}
}

func (m *Manager) register(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.ID] = conn
	log.Debug().Str("conn_id", conn.ID).Int("total", len(m.conns)).Msg("connection registered")
}

func (m *Manager) unregister(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conns[conn.ID]; ok {
		delete(m.conns, conn.ID)
		close(conn.closed)
		log.Info().Str("conn_id", conn.ID).Msg("connection unregistered")
	}
}

// Stats reports the number of live connections.
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]any{"total_connections": len(m.conns)}
}

// writePump drains the send buffer onto the socket and keeps the
// connection alive with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.sock.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			c.sock.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.sock.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("conn_id", c.ID).Msg("write failed")
				return
			}
		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
