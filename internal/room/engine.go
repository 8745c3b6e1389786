package room

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/shotgun-games/draftroom/internal/catalog"
)

// Config holds the engine's tunables. The reference configuration is a
// 10 second turn, a quota of 5 items per member and a 5 minute
// reconnection grace window swept every minute.
type Config struct {
	TurnDuration time.Duration
	PickQuota    int
	GraceWindow  time.Duration
	ReapInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		TurnDuration: 10 * time.Second,
		PickQuota:    5,
		GraceWindow:  5 * time.Minute,
		ReapInterval: time.Minute,
	}
}

// Engine is the room/session core: registry, room state machines, turn
// engine and disconnect coordinator. The gateway feeds it inbound
// client events and it emits outbound events through the Sink.
type Engine struct {
	cfg      Config
	clock    clockwork.Clock
	registry *Registry
	sink     Sink
	items    []catalog.Item

	disconnected *sideTable
}

// NewEngine builds an engine over the given catalog template. Pass
// clockwork.NewRealClock() in production; tests inject a fake clock.
func NewEngine(cfg Config, items []catalog.Item, sink Sink, clock clockwork.Clock) *Engine {
	return &Engine{
		cfg:          cfg,
		clock:        clock,
		registry:     NewRegistry(),
		sink:         sink,
		items:        items,
		disconnected: newSideTable(),
	}
}

// Registry exposes the room registry for inspection (stats endpoints).
func (e *Engine) Registry() *Registry { return e.registry }

// Run drives the disconnected-member reaper until ctx is done. The
// reaper only touches the side table, never rooms.
func (e *Engine) Run(ctx context.Context) {
	ticker := e.clock.NewTicker(e.cfg.ReapInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", e.cfg.ReapInterval).Msg("disconnect reaper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("disconnect reaper stopped")
			return
		case <-ticker.Chan():
			e.reapExpired()
		}
	}
}

// CreateRoom allocates a room with the caller as sole member and host.
func (e *Engine) CreateRoom(connID, displayName string) error {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return ErrInvalidInput
	}

	host := &Member{ConnID: connID, Name: name}
	r := e.registry.Create(host, catalog.Clone(e.items))

	r.mu.Lock()
	defer r.mu.Unlock()

	e.sink.Send(connID, newEvent(EventRoomCreated, RoomCreatedPayload{
		RoomID: r.ID,
		HostID: connID,
		IsHost: true,
	}))
	e.broadcastLocked(r, newEvent(EventMembershipChanged, MembershipPayload{Members: r.memberInfosLocked()}))

	log.Info().Str("room_id", r.ID).Str("host", name).Msg("room created")
	return nil
}

// JoinRoom admits a connection to a waiting room. A join from a
// connection already seated is an idempotent rejoin: the ack and
// membership snapshot are resent to that connection only.
func (e *Engine) JoinRoom(connID, roomID, displayName string) error {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return ErrInvalidInput
	}

	r, err := e.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	joined := RoomJoinedPayload{RoomID: r.ID, HostID: r.hostID, IsHost: connID == r.hostID}

	if _, ok := r.members[connID]; ok {
		e.sink.Send(connID, newEvent(EventRoomJoined, joined))
		e.sink.Send(connID, newEvent(EventMembershipChanged, MembershipPayload{Members: r.memberInfosLocked()}))
		log.Debug().Str("room_id", r.ID).Str("conn_id", connID).Msg("idempotent rejoin")
		return nil
	}

	if r.status != StatusWaiting {
		return ErrRoomNotJoinable
	}
	for id, m := range r.members {
		if m.Name == name && id != connID {
			return ErrNameTaken
		}
	}

	r.members[connID] = &Member{ConnID: connID, Name: name}
	r.joinOrder = append(r.joinOrder, connID)

	e.sink.Send(connID, newEvent(EventRoomJoined, joined))
	e.broadcastLocked(r, newEvent(EventMembershipChanged, MembershipPayload{Members: r.memberInfosLocked()}))
	e.broadcastOthersLocked(r, connID, newEvent(EventMemberJoined, MemberEventPayload{
		UserID:   connID,
		Username: name,
		Message:  fmt.Sprintf("%s joined the room", name),
	}))

	log.Info().Str("room_id", r.ID).Str("member", name).Int("members", len(r.members)).Msg("member joined")
	return nil
}

// StartDraft moves a waiting room into drafting: host only, at least
// two members, turn order a fresh random permutation of member ids.
func (e *Engine) StartDraft(connID, roomID string) error {
	r, err := e.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if connID != r.hostID {
		return ErrNotHost
	}
	if r.status != StatusWaiting {
		return ErrAlreadyStarted
	}
	if len(r.members) < 2 {
		return ErrInsufficientMembers
	}

	r.status = StatusDrafting
	r.turnOrder = append([]string(nil), r.joinOrder...)
	rand.Shuffle(len(r.turnOrder), func(i, j int) {
		r.turnOrder[i], r.turnOrder[j] = r.turnOrder[j], r.turnOrder[i]
	})
	r.turnIdx = 0

	e.broadcastLocked(r, newEvent(EventDraftStarted, *r.turnStateLocked(e.cfg.TurnDuration)))
	log.Info().Str("room_id", r.ID).Int("seats", len(r.turnOrder)).Msg("draft started")

	e.beginTurnLocked(r)
	return nil
}

// TurnSync answers a client's request for the authoritative turn state
// with a unicast snapshot; state is not mutated. Outside of drafting
// there is nothing to report and the request is a no-op.
func (e *Engine) TurnSync(connID, roomID string) error {
	r, err := e.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if r.status != StatusDrafting {
		return nil
	}
	e.sink.Send(connID, newEvent(EventTurnSync, *r.turnStateLocked(e.cfg.TurnDuration)))
	return nil
}

// StateSync pushes the full room snapshot to one connection.
func (e *Engine) StateSync(connID, roomID string) error {
	r, err := e.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	e.sink.Send(connID, newEvent(EventStateSync, e.stateSnapshotLocked(r)))
	return nil
}

func (e *Engine) stateSnapshotLocked(r *Room) StateSyncPayload {
	return StateSyncPayload{
		RoomID:  r.ID,
		Status:  r.status,
		HostID:  r.hostID,
		Members: r.memberInfosLocked(),
		Items:   catalog.Clone(r.remaining),
		Turn:    r.turnStateLocked(e.cfg.TurnDuration),
	}
}

// lockRoom resolves a room and acquires its lock. Rooms flagged deleted
// lost a race with their teardown and count as absent.
func (e *Engine) lockRoom(roomID string) (*Room, error) {
	r, ok := e.registry.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	r.mu.Lock()
	if r.deleted {
		r.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	return r, nil
}

func (e *Engine) broadcastLocked(r *Room, evt *Event) {
	for _, id := range r.joinOrder {
		e.sink.Send(id, evt)
	}
}

func (e *Engine) broadcastOthersLocked(r *Room, exceptID string, evt *Event) {
	for _, id := range r.joinOrder {
		if id != exceptID {
			e.sink.Send(id, evt)
		}
	}
}
