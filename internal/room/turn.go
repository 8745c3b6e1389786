package room

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/shotgun-games/draftroom/internal/catalog"
)

// beginTurnLocked starts a turn for the member at the current index:
// broadcast the turn-update, then arm the turn clock (a 1s countdown
// ticker plus a one-shot expiry timer). Any previous clock is canceled
// first, so calling this is always safe.
//
// The ticker and timer are created here, under the room lock, so that
// the clock is armed by the time the triggering operation returns.
func (e *Engine) beginTurnLocked(r *Room) {
	e.stopTurnClockLocked(r)

	acting := r.actingLocked()
	if acting == nil {
		log.Error().Str("room_id", r.ID).Msg("beginTurn with no acting member")
		return
	}

	e.broadcastLocked(r, newEvent(EventTurnUpdate, *r.turnStateLocked(e.cfg.TurnDuration)))
	log.Info().
		Str("room_id", r.ID).
		Str("member", acting.Name).
		Int("turn", r.turnIdx+1).
		Int("of", len(r.turnOrder)).
		Msg("turn began")

	gen := r.turnGen
	stop := make(chan struct{})
	r.turnStop = stop
	r.turnTicker = e.clock.NewTicker(time.Second)
	r.turnTimer = e.clock.NewTimer(e.cfg.TurnDuration)
	go e.runTurnClock(r, gen, stop, r.turnTicker, r.turnTimer)
}

// stopTurnClockLocked cancels the active turn clock, if any, and bumps
// the turn generation so a callback that already fired is dropped when
// it reaches the lock. Idempotent.
func (e *Engine) stopTurnClockLocked(r *Room) {
	if r.turnStop != nil {
		close(r.turnStop)
		r.turnStop = nil
	}
	if r.turnTicker != nil {
		r.turnTicker.Stop()
		r.turnTicker = nil
	}
	if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}
	r.turnGen++
}

// runTurnClock is the per-turn clock goroutine. It owns nothing: every
// observable effect goes through turnTick/turnExpired, which revalidate
// the generation under the room lock.
func (e *Engine) runTurnClock(r *Room, gen uint64, stop chan struct{}, ticker clockwork.Ticker, timer clockwork.Timer) {
	defer ticker.Stop()
	defer timer.Stop()

	remaining := int(e.cfg.TurnDuration / time.Second)
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if remaining > 0 {
				remaining--
				e.turnTick(r, gen, remaining)
			}
			if remaining == 0 {
				ticker.Stop()
			}
		case <-timer.Chan():
			e.turnExpired(r, gen)
			return
		}
	}
}

func (e *Engine) turnTick(r *Room, gen uint64, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || r.status != StatusDrafting || r.turnGen != gen {
		return
	}
	e.broadcastLocked(r, newEvent(EventCountdownTick, CountdownTickPayload{TimeLeft: remaining}))
}

// turnExpired auto-assigns a uniformly random remaining item to the
// acting member when the countdown elapses without a manual pick.
func (e *Engine) turnExpired(r *Room, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || r.status != StatusDrafting || r.turnGen != gen {
		log.Debug().Str("room_id", r.ID).Msg("stale turn expiry dropped")
		return
	}
	acting := r.actingLocked()
	if acting == nil || len(r.remaining) == 0 {
		log.Warn().Str("room_id", r.ID).Msg("turn expired with nothing to assign")
		return
	}

	item := r.remaining[rand.Intn(len(r.remaining))]
	e.completeSelectionLocked(r, acting, item.ID, true)
}

// SubmitSelection records a manual pick by the acting member. Races
// with the expiry timer or with stale client state (out-of-turn picks,
// already-taken items) are absorbed silently; acting on a room that is
// not drafting is surfaced as an invalid-state error.
func (e *Engine) SubmitSelection(connID, roomID string, itemID int) error {
	r, err := e.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if r.status != StatusDrafting {
		return ErrDraftNotActive
	}
	m, ok := r.members[connID]
	if !ok {
		return ErrNotInRoom
	}
	if r.turnOrder[r.turnIdx] != connID {
		log.Debug().Str("room_id", r.ID).Str("member", m.Name).Msg("out-of-turn selection ignored")
		return nil
	}
	if _, ok := findItem(r.remaining, itemID); !ok {
		log.Debug().Str("room_id", r.ID).Int("item_id", itemID).Msg("selection of unavailable item ignored")
		return nil
	}

	e.completeSelectionLocked(r, m, itemID, false)
	return nil
}

// completeSelectionLocked is the single path shared by manual picks and
// expiry auto-picks: cancel the clock, move the item, broadcast, then
// either complete the draft or advance the turn.
func (e *Engine) completeSelectionLocked(r *Room, m *Member, itemID int, auto bool) {
	e.stopTurnClockLocked(r)

	item, ok := r.removeRemainingLocked(itemID)
	if !ok {
		log.Error().Str("room_id", r.ID).Int("item_id", itemID).Msg("selection of vanished item")
		return
	}
	m.Items = append(m.Items, item)

	if auto {
		e.broadcastLocked(r, newEvent(EventItemAutoSelected, SelectionPayload{
			UserID:   m.ConnID,
			Username: m.Name,
			Item:     item,
			Message:  fmt.Sprintf("%s was auto-assigned %s", m.Name, item.Name),
		}))
	} else {
		e.broadcastLocked(r, newEvent(EventItemSelected, SelectionPayload{
			UserID:   m.ConnID,
			Username: m.Name,
			Item:     item,
		}))
	}
	e.broadcastLocked(r, newEvent(EventItemList, ItemListPayload{Items: catalog.Clone(r.remaining)}))

	log.Info().
		Str("room_id", r.ID).
		Str("member", m.Name).
		Str("item", item.Name).
		Bool("auto", auto).
		Int("remaining", len(r.remaining)).
		Msg("item assigned")

	if e.draftDoneLocked(r) {
		e.completeDraftLocked(r, "")
		return
	}

	r.turnIdx = e.nextEligibleLocked(r, (r.turnIdx+1)%len(r.turnOrder))
	e.beginTurnLocked(r)
}

// draftDoneLocked reports whether the draft has nothing left to assign:
// every seated member reached quota, or the pool ran dry.
func (e *Engine) draftDoneLocked(r *Room) bool {
	if len(r.remaining) == 0 {
		return true
	}
	for _, id := range r.turnOrder {
		if m, ok := r.members[id]; ok && len(m.Items) < e.cfg.PickQuota {
			return false
		}
	}
	return true
}

// nextEligibleLocked returns the first index at or after from (cyclic)
// whose member is below quota. Members can sit at quota while others
// still draft after a mid-draft departure; their turns are skipped.
func (e *Engine) nextEligibleLocked(r *Room, from int) int {
	n := len(r.turnOrder)
	for i := 0; i < n; i++ {
		idx := (from + i) % n
		if m, ok := r.members[r.turnOrder[idx]]; ok && len(m.Items) < e.cfg.PickQuota {
			return idx
		}
	}
	return from
}

func (e *Engine) completeDraftLocked(r *Room, message string) {
	e.stopTurnClockLocked(r)
	r.status = StatusCompleted
	e.broadcastLocked(r, newEvent(EventDraftCompleted, DraftCompletedPayload{
		Rosters: r.rostersLocked(),
		Message: message,
	}))
	log.Info().Str("room_id", r.ID).Int("members", len(r.members)).Msg("draft completed")
}

func findItem(items []catalog.Item, itemID int) (catalog.Item, bool) {
	for _, it := range items {
		if it.ID == itemID {
			return it, true
		}
	}
	return catalog.Item{}, false
}
