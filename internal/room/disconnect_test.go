package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisconnectOutsideAnyRoom(t *testing.T) {
	e, _, _ := newTestEngine(DefaultConfig())
	e.Disconnect("nobody")
	assert.Equal(t, 0, e.registry.Len())
}

func TestDisconnectFromWaitingRoom(t *testing.T) {
	e, sink, _ := newTestEngine(DefaultConfig())
	require.NoError(t, e.CreateRoom("c1", "Asha"))
	roomID := createdRoomID(t, sink)
	require.NoError(t, e.JoinRoom("c2", roomID, "Ben"))

	e.Disconnect("c2")

	left, ok := sink.last(EventMemberDisconnected)
	require.True(t, ok)
	assert.Equal(t, "Ben", left.evt.Data.(MemberEventPayload).Username)

	r, _ := e.registry.Get(roomID)
	r.mu.Lock()
	assert.Len(t, r.members, 1)
	r.mu.Unlock()

	// waiting-room departures are not eligible for reconnection
	assert.Equal(t, 0, e.disconnected.len())
}

func TestHostDisconnectMigratesHost(t *testing.T) {
	e, sink, _ := newTestEngine(DefaultConfig())
	require.NoError(t, e.CreateRoom("c1", "Asha"))
	roomID := createdRoomID(t, sink)
	require.NoError(t, e.JoinRoom("c2", roomID, "Ben"))
	require.NoError(t, e.JoinRoom("c3", roomID, "Cleo"))

	e.Disconnect("c1")

	changed, ok := sink.last(EventHostChanged)
	require.True(t, ok)
	payload := changed.evt.Data.(HostChangedPayload)
	assert.Equal(t, "c2", payload.HostID)
	assert.Equal(t, "Ben", payload.Username)

	r, _ := e.registry.Get(roomID)
	r.mu.Lock()
	assert.Equal(t, "c2", r.hostID)
	r.mu.Unlock()

	// migrated host can start the draft
	require.NoError(t, e.StartDraft("c2", roomID))
}

func TestLastMemberLeavingDeletesRoom(t *testing.T) {
	e, sink, _ := newTestEngine(DefaultConfig())
	require.NoError(t, e.CreateRoom("c1", "Asha"))
	roomID := createdRoomID(t, sink)

	e.Disconnect("c1")

	assert.Equal(t, 0, e.registry.Len())
	require.ErrorIs(t, e.JoinRoom("c2", roomID, "Ben"), ErrRoomNotFound)
}

func TestEmptyMidDraftRoomIsPurged(t *testing.T) {
	e, sink, _ := newTestEngine(DefaultConfig())
	r := setupDraft(t, e, sink, "c1", "c2")

	e.Disconnect("c1")
	assert.Equal(t, 1, e.disconnected.len())

	e.Disconnect("c2")
	assert.Equal(t, 0, e.registry.Len())
	assert.Equal(t, 0, e.disconnected.len(), "room deletion must purge grace-window snapshots")

	r.mu.Lock()
	assert.True(t, r.deleted)
	r.mu.Unlock()
}

func TestActingMemberDisconnectBeginsNextTurn(t *testing.T) {
	e, sink, _ := newTestEngine(DefaultConfig())
	r := setupDraft(t, e, sink, "c1", "c2", "c3")
	acting := actingConn(r)
	turnUpdates := sink.count(EventTurnUpdate)

	e.Disconnect(acting)

	changed, ok := sink.last(EventTurnOrderChanged)
	require.True(t, ok)
	assert.Len(t, changed.evt.Data.(TurnOrderChangedPayload).TurnOrder, 2)

	next := actingConn(r)
	assert.NotEqual(t, acting, next)
	assert.Greater(t, sink.count(EventTurnUpdate), turnUpdates, "next turn must begin immediately")
}

func TestNonActingDisconnectKeepsActingMember(t *testing.T) {
	e, sink, _ := newTestEngine(DefaultConfig())
	r := setupDraft(t, e, sink, "c1", "c2", "c3")
	acting := actingConn(r)

	r.mu.Lock()
	bystander := r.turnOrder[(r.turnIdx+1)%len(r.turnOrder)]
	r.mu.Unlock()

	e.Disconnect(bystander)
	assert.Equal(t, acting, actingConn(r), "splice must keep the index on the acting member")
}

func TestMidDraftDisconnectAndReconnect(t *testing.T) {
	e, sink, _ := newTestEngine(DefaultConfig())
	r := setupDraft(t, e, sink, "c1", "c2", "c3")

	first := actingConn(r)
	require.NoError(t, e.SubmitSelection(first, r.ID, 1))
	e.Disconnect(first)
	require.Equal(t, 1, e.disconnected.len())

	require.NoError(t, e.Reconnect("c9", r.ID, "name-"+first))

	assert.Equal(t, 0, e.disconnected.len())
	assert.Equal(t, 1, memberItemCount(r, "c9"), "drafted items must survive the reconnect")

	r.mu.Lock()
	assert.Equal(t, "c9", r.turnOrder[len(r.turnOrder)-1], "returning member goes to the end of the order")
	assert.Len(t, r.members, 3)
	r.mu.Unlock()

	back, ok := sink.last(EventMemberReconnected)
	require.True(t, ok)
	assert.Equal(t, "c9", back.evt.Data.(MemberEventPayload).UserID)

	snaps := sink.forConn("c9", EventStateSync)
	require.Len(t, snaps, 1)
	snap := snaps[0].evt.Data.(StateSyncPayload)
	assert.Equal(t, StatusDrafting, snap.Status)
	require.NotNil(t, snap.Turn)
}

func TestReconnectDoesNotReclaimMigratedHost(t *testing.T) {
	e, sink, _ := newTestEngine(DefaultConfig())
	r := setupDraft(t, e, sink, "c1", "c2", "c3")

	e.Disconnect("c1")
	require.NoError(t, e.Reconnect("c9", r.ID, "name-c1"))

	r.mu.Lock()
	assert.NotEqual(t, "c9", r.hostID, "host role stays with the migrated host")
	r.mu.Unlock()
}

func TestReconnectWithoutSnapshotIsAJoin(t *testing.T) {
	e, sink, _ := newTestEngine(DefaultConfig())
	require.NoError(t, e.CreateRoom("c1", "Asha"))
	roomID := createdRoomID(t, sink)

	require.NoError(t, e.Reconnect("c2", roomID, "Ben"))
	r, _ := e.registry.Get(roomID)
	r.mu.Lock()
	assert.Len(t, r.members, 2)
	r.mu.Unlock()
}

func TestReconnectToStartedRoomWithoutSnapshotRejected(t *testing.T) {
	e, sink, _ := newTestEngine(DefaultConfig())
	r := setupDraft(t, e, sink, "c1", "c2")

	require.ErrorIs(t, e.Reconnect("c9", r.ID, "Zed"), ErrRoomNotJoinable)
}

func TestReapExpiredPurgesOldSnapshots(t *testing.T) {
	e, _, clock := newTestEngine(DefaultConfig())

	e.disconnected.put("old", &DisconnectedMember{
		RoomID:         "AAAAA",
		Name:           "Asha",
		DisconnectedAt: clock.Now(),
	})
	clock.Advance(2 * time.Minute)
	e.disconnected.put("fresh", &DisconnectedMember{
		RoomID:         "AAAAA",
		Name:           "Ben",
		DisconnectedAt: clock.Now(),
	})

	clock.Advance(3*time.Minute + time.Second)
	e.reapExpired()

	assert.Equal(t, 1, e.disconnected.len())
	_, ok := e.disconnected.takeMatch("AAAAA", "Ben")
	assert.True(t, ok, "fresh snapshot must survive the sweep")
}

func TestReconnectAfterGraceWindowRejected(t *testing.T) {
	e, sink, clock := newTestEngine(DefaultConfig())
	r := setupDraft(t, e, sink, "c1", "c2", "c3")

	first := actingConn(r)
	e.Disconnect(first)

	// finish the draft so no turn clock is armed while time jumps
	for roomStatus(r) == StatusDrafting {
		require.NoError(t, e.SubmitSelection(actingConn(r), r.ID, currentPoolHead(r)))
	}

	clock.Advance(5*time.Minute + time.Second)
	e.reapExpired()
	assert.Equal(t, 0, e.disconnected.len())

	require.ErrorIs(t, e.Reconnect("c9", r.ID, "name-"+first), ErrRoomNotJoinable)
}

func currentPoolHead(r *Room) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.remaining) == 0 {
		return 0
	}
	return r.remaining[0].ID
}
