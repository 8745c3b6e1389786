package room

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/shotgun-games/draftroom/internal/catalog"
)

// Status is the lifecycle phase of a room. Transitions are monotonic:
// waiting -> drafting -> completed, each at most once.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusDrafting  Status = "drafting"
	StatusCompleted Status = "completed"
)

// Member is a connected participant's seat in a room.
type Member struct {
	ConnID string
	Name   string
	Items  []catalog.Item
}

// Room is one isolated drafting session. All mutable state is guarded
// by mu; every transition (inbound event or timer callback) runs with
// the lock held for its full duration, which serializes concurrent
// events per room.
type Room struct {
	ID string

	mu        sync.Mutex
	hostID    string
	members   map[string]*Member
	joinOrder []string
	status    Status
	remaining []catalog.Item
	turnOrder []string
	turnIdx   int

	// turnGen increments whenever the current turn ends for any reason.
	// Clock callbacks capture the generation they were armed with and
	// drop themselves if it no longer matches, closing the
	// fire-after-cancel window of the underlying timer.
	turnGen    uint64
	turnStop   chan struct{}
	turnTicker clockwork.Ticker
	turnTimer  clockwork.Timer

	deleted bool
}

func newRoom(id string, host *Member, items []catalog.Item) *Room {
	return &Room{
		ID:        id,
		hostID:    host.ConnID,
		members:   map[string]*Member{host.ConnID: host},
		joinOrder: []string{host.ConnID},
		status:    StatusWaiting,
		remaining: items,
	}
}

// memberInfosLocked returns the member list in join order.
func (r *Room) memberInfosLocked() []MemberInfo {
	out := make([]MemberInfo, 0, len(r.joinOrder))
	for _, id := range r.joinOrder {
		m := r.members[id]
		out = append(out, MemberInfo{UserID: id, Username: m.Name, IsHost: id == r.hostID})
	}
	return out
}

func (r *Room) turnEntriesLocked() []TurnEntry {
	out := make([]TurnEntry, 0, len(r.turnOrder))
	for _, id := range r.turnOrder {
		name := "Unknown"
		if m, ok := r.members[id]; ok {
			name = m.Name
		}
		out = append(out, TurnEntry{UserID: id, Username: name})
	}
	return out
}

func (r *Room) rostersLocked() []RosterEntry {
	out := make([]RosterEntry, 0, len(r.joinOrder))
	for _, id := range r.joinOrder {
		m := r.members[id]
		out = append(out, RosterEntry{
			UserID:   id,
			Username: m.Name,
			IsHost:   id == r.hostID,
			Items:    catalog.Clone(m.Items),
		})
	}
	return out
}

// actingLocked returns the member whose turn it is, or nil when the
// room is not drafting.
func (r *Room) actingLocked() *Member {
	if r.status != StatusDrafting || len(r.turnOrder) == 0 {
		return nil
	}
	return r.members[r.turnOrder[r.turnIdx]]
}

func (r *Room) turnStateLocked(timeLeft time.Duration) *TurnStatePayload {
	acting := r.actingLocked()
	if acting == nil {
		return nil
	}
	return &TurnStatePayload{
		CurrentUserID:    acting.ConnID,
		CurrentUsername:  acting.Name,
		TimeLeft:         int(timeLeft / time.Second),
		TurnOrder:        r.turnEntriesLocked(),
		CurrentTurnIndex: r.turnIdx,
		TotalTurns:       len(r.turnOrder),
	}
}

func (r *Room) removeRemainingLocked(itemID int) (catalog.Item, bool) {
	for i, it := range r.remaining {
		if it.ID == itemID {
			r.remaining = append(r.remaining[:i], r.remaining[i+1:]...)
			return it, true
		}
	}
	return catalog.Item{}, false
}
