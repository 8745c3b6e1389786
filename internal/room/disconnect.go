package room

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shotgun-games/draftroom/internal/catalog"
)

// DisconnectedMember is the grace-period snapshot of a member who
// dropped mid-draft, keyed by the vacated connection id. It outlives
// the room it came from; the reaper or a successful reconnection purges
// it.
type DisconnectedMember struct {
	RoomID         string
	Name           string
	Items          []catalog.Item
	DisconnectedAt time.Time
	WasHost        bool
}

// sideTable is the process-wide store of disconnected members. It has
// its own lock and is only ever acquired after a room lock, never
// before one.
type sideTable struct {
	mu      sync.Mutex
	entries map[string]*DisconnectedMember
}

func newSideTable() *sideTable {
	return &sideTable{entries: make(map[string]*DisconnectedMember)}
}

func (t *sideTable) put(connID string, rec *DisconnectedMember) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[connID] = rec
}

// takeMatch finds and removes the snapshot for (roomID, name),
// regardless of which connection id it was stored under.
func (t *sideTable) takeMatch(roomID, name string) (*DisconnectedMember, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, rec := range t.entries {
		if rec.RoomID == roomID && rec.Name == name {
			delete(t.entries, id)
			return rec, true
		}
	}
	return nil, false
}

func (t *sideTable) purgeRoom(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, rec := range t.entries {
		if rec.RoomID == roomID {
			delete(t.entries, id)
		}
	}
}

func (t *sideTable) reap(now time.Time, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	purged := 0
	for id, rec := range t.entries {
		if now.Sub(rec.DisconnectedAt) > window {
			delete(t.entries, id)
			purged++
		}
	}
	return purged
}

func (t *sideTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Disconnect handles a closed transport. A connection belongs to at
// most one room; rooms the connection is not part of are untouched.
func (e *Engine) Disconnect(connID string) {
	for _, r := range e.registry.Snapshot() {
		r.mu.Lock()
		if r.deleted {
			r.mu.Unlock()
			continue
		}
		m, ok := r.members[connID]
		if !ok {
			r.mu.Unlock()
			continue
		}
		e.handleDepartureLocked(r, m)
		r.mu.Unlock()
		return
	}
	log.Debug().Str("conn_id", connID).Msg("connection closed outside any room")
}

// handleDepartureLocked runs the three departure steps in fixed order:
// membership removal, host migration check, turn-order splice.
func (e *Engine) handleDepartureLocked(r *Room, m *Member) {
	wasHost := r.hostID == m.ConnID
	wasActing := r.status == StatusDrafting && len(r.turnOrder) > 0 && r.turnOrder[r.turnIdx] == m.ConnID

	log.Info().
		Str("room_id", r.ID).
		Str("member", m.Name).
		Bool("was_host", wasHost).
		Bool("was_acting", wasActing).
		Msg("member disconnected")

	e.removeMemberLocked(r, m, wasHost)

	if len(r.members) == 0 {
		e.deleteRoomLocked(r)
		return
	}

	if wasHost {
		e.migrateHostLocked(r)
	}

	if r.status == StatusDrafting {
		e.spliceTurnOrderLocked(r, m.ConnID, wasActing)
	}

	e.broadcastLocked(r, newEvent(EventMemberDisconnected, MemberEventPayload{
		UserID:   m.ConnID,
		Username: m.Name,
		Message:  fmt.Sprintf("%s has left the game", m.Name),
	}))
	e.broadcastLocked(r, newEvent(EventMembershipChanged, MembershipPayload{Members: r.memberInfosLocked()}))
}

// removeMemberLocked vacates the seat. Mid-draft departures are
// snapshotted into the side table first so the seat can be restored
// within the grace window.
func (e *Engine) removeMemberLocked(r *Room, m *Member, wasHost bool) {
	if r.status == StatusDrafting {
		e.disconnected.put(m.ConnID, &DisconnectedMember{
			RoomID:         r.ID,
			Name:           m.Name,
			Items:          catalog.Clone(m.Items),
			DisconnectedAt: e.clock.Now(),
			WasHost:        wasHost,
		})
	}
	delete(r.members, m.ConnID)
	r.joinOrder = removeString(r.joinOrder, m.ConnID)
}

// deleteRoomLocked tears the room down: clock canceled synchronously,
// registry entry removed, side-table snapshots for the room purged.
func (e *Engine) deleteRoomLocked(r *Room) {
	e.stopTurnClockLocked(r)
	r.deleted = true
	e.registry.Delete(r.ID)
	e.disconnected.purgeRoom(r.ID)
	log.Info().Str("room_id", r.ID).Msg("room deleted, no members remaining")
}

// migrateHostLocked hands the room to the next member in join order.
func (e *Engine) migrateHostLocked(r *Room) {
	r.hostID = r.joinOrder[0]
	newHost := r.members[r.hostID]
	e.broadcastLocked(r, newEvent(EventHostChanged, HostChangedPayload{
		HostID:   r.hostID,
		Username: newHost.Name,
		Message:  fmt.Sprintf("%s is now the host", newHost.Name),
	}))
	log.Info().Str("room_id", r.ID).Str("host", newHost.Name).Msg("host migrated")
}

// spliceTurnOrderLocked removes a departed connection from the turn
// order, keeping the index pointed at the same relative acting member.
// If the departing member held the acting turn, the next turn begins
// immediately instead of waiting out the countdown.
func (e *Engine) spliceTurnOrderLocked(r *Room, connID string, wasActing bool) {
	idx := indexOfString(r.turnOrder, connID)
	if idx < 0 {
		return
	}

	r.turnOrder = append(r.turnOrder[:idx], r.turnOrder[idx+1:]...)
	if idx < r.turnIdx {
		r.turnIdx--
	} else if r.turnIdx >= len(r.turnOrder) {
		r.turnIdx = 0
	}

	if len(r.turnOrder) == 0 {
		e.completeDraftLocked(r, "draft ended, no members remaining")
		return
	}

	e.broadcastLocked(r, newEvent(EventTurnOrderChanged, TurnOrderChangedPayload{
		TurnOrder:        r.turnEntriesLocked(),
		CurrentTurnIndex: r.turnIdx,
		Message:          fmt.Sprintf("turn order updated, %d members remaining", len(r.turnOrder)),
	}))

	if e.draftDoneLocked(r) {
		e.completeDraftLocked(r, "")
		return
	}
	if wasActing {
		r.turnIdx = e.nextEligibleLocked(r, r.turnIdx)
		e.beginTurnLocked(r)
	}
}

// Reconnect restores a member who dropped mid-draft, under their new
// connection id. Without a matching grace-window snapshot the call is
// an ordinary join attempt.
func (e *Engine) Reconnect(connID, roomID, displayName string) error {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return ErrInvalidInput
	}

	r, err := e.lockRoom(roomID)
	if err != nil {
		return err
	}

	rec, ok := e.disconnected.takeMatch(roomID, name)
	if !ok {
		r.mu.Unlock()
		return e.JoinRoom(connID, roomID, name)
	}
	defer r.mu.Unlock()

	m := &Member{ConnID: connID, Name: name, Items: rec.Items}
	r.members[connID] = m
	r.joinOrder = append(r.joinOrder, connID)

	if rec.WasHost {
		if _, hostAlive := r.members[r.hostID]; !hostAlive {
			r.hostID = connID
			e.broadcastLocked(r, newEvent(EventHostChanged, HostChangedPayload{
				HostID:   connID,
				Username: name,
				Message:  fmt.Sprintf("%s has reconnected and resumed as host", name),
			}))
		}
	}

	// Returning members go to the end of the order; no reshuffle.
	if r.status == StatusDrafting && indexOfString(r.turnOrder, connID) < 0 {
		r.turnOrder = append(r.turnOrder, connID)
		e.broadcastLocked(r, newEvent(EventTurnOrderChanged, TurnOrderChangedPayload{
			TurnOrder:        r.turnEntriesLocked(),
			CurrentTurnIndex: r.turnIdx,
			Message:          fmt.Sprintf("%s has reconnected and rejoined the turn order", name),
		}))
	}

	e.broadcastLocked(r, newEvent(EventMemberReconnected, MemberEventPayload{
		UserID:   connID,
		Username: name,
		Message:  fmt.Sprintf("%s has reconnected to the game", name),
	}))
	e.broadcastLocked(r, newEvent(EventMembershipChanged, MembershipPayload{Members: r.memberInfosLocked()}))
	e.sink.Send(connID, newEvent(EventStateSync, e.stateSnapshotLocked(r)))

	log.Info().Str("room_id", r.ID).Str("member", name).Int("restored_items", len(m.Items)).Msg("member reconnected")
	return nil
}

// reapExpired purges snapshots older than the grace window.
func (e *Engine) reapExpired() {
	if n := e.disconnected.reap(e.clock.Now(), e.cfg.GraceWindow); n > 0 {
		log.Info().Int("purged", n).Msg("purged expired disconnected members")
	}
}

func removeString(s []string, v string) []string {
	if i := indexOfString(s, v); i >= 0 {
		return append(s[:i], s[i+1:]...)
	}
	return s
}

func indexOfString(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
