package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nchavez4/monster-arena-backend/internal/types"
)

func recvMsg(t *testing.T, ch <-chan types.ServerMessage, within time.Duration) types.ServerMessage {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(within):
		t.Fatalf("timed out waiting for message")
		return types.ServerMessage{}
	}
}

// recvMsgOfType drains until a message of the wanted type arrives; countdown
// ticks interleave lobby_update broadcasts with everything else.
func recvMsgOfType(t *testing.T, ch <-chan types.ServerMessage, msgType string, within time.Duration) types.ServerMessage {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case m := <-ch:
			if m.Type == msgType {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", msgType)
			return types.ServerMessage{}
		}
	}
}

func recvPromotion(t *testing.T, ch <-chan Promotion, within time.Duration) Promotion {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(within):
		t.Fatalf("timed out waiting for promotion")
		return Promotion{}
	}
}

func recvNoPromotion(t *testing.T, ch <-chan Promotion, within time.Duration) {
	t.Helper()
	select {
	case p := <-ch:
		t.Fatalf("expected no promotion within %v, got %+v", within, p)
	case <-time.After(within):
	}
}

func view(t *testing.T, l *Lobby) View {
	t.Helper()
	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{}
	}
}

func newTestLobby(t *testing.T, opts Options) (*Lobby, chan Promotion) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	promotions := make(chan Promotion, 4)
	return New(ctx, zap.NewNop(), promotions, opts), promotions
}

func join(l *Lobby, sessionID string, userID int, name string) chan types.ServerMessage {
	out := make(chan types.ServerMessage, 64)
	l.Inbox() <- Join{SessionID: sessionID, UserID: userID, Username: name, Outbox: out}
	return out
}

func TestLobby_JoinSendsConfirmationAndUpdate(t *testing.T) {
	l, _ := newTestLobby(t, Options{CountdownSeconds: 30, TickInterval: time.Hour})

	out := join(l, "s1", 1, "alice")
	joined := recvMsg(t, out, time.Second)
	require.Equal(t, types.MsgLobbyJoined, joined.Type)
	require.NotNil(t, joined.LobbyData)
	assert.Equal(t, 30, joined.LobbyData.Countdown)
	assert.False(t, joined.LobbyData.CanStart)
	require.Len(t, joined.LobbyData.Players, 1)
	assert.Equal(t, "alice", joined.LobbyData.Players[0].Username)

	update := recvMsg(t, out, time.Second)
	assert.Equal(t, types.MsgLobbyUpdate, update.Type)

	v := view(t, l)
	assert.Equal(t, 1, v.Waiting)
	assert.False(t, v.CountdownArmed, "one player is not enough to arm the countdown")
}

func TestLobby_DuplicateJoinIsIdempotent(t *testing.T) {
	l, _ := newTestLobby(t, Options{CountdownSeconds: 30, TickInterval: time.Hour})

	join(l, "s1", 1, "alice")
	join(l, "s1", 1, "alice")

	v := view(t, l)
	assert.Equal(t, 1, v.Waiting)
	assert.Equal(t, []string{"s1"}, v.Order)
}

func TestLobby_CountdownArmsAtTwoAndDisarmsBelow(t *testing.T) {
	l, _ := newTestLobby(t, Options{CountdownSeconds: 30, TickInterval: time.Hour})

	join(l, "s1", 1, "alice")
	join(l, "s2", 2, "bob")
	assert.True(t, view(t, l).CountdownArmed)

	l.Inbox() <- Leave{SessionID: "s2"}
	v := view(t, l)
	assert.False(t, v.CountdownArmed)
	assert.Equal(t, 30, v.Countdown, "countdown resets when disarmed")
}

func TestLobby_CountdownMessagesAtThresholds(t *testing.T) {
	l, _ := newTestLobby(t, Options{CountdownSeconds: 12, TickInterval: 5 * time.Millisecond})

	out := join(l, "s1", 1, "alice")
	join(l, "s2", 2, "bob")

	want := []string{
		"Battle starting in 10 seconds!",
		"Battle starting in 5 seconds!",
		"3...", "2...", "1...",
	}
	for _, text := range want {
		m := recvMsgOfType(t, out, types.MsgLobbyMessage, 2*time.Second)
		assert.Equal(t, text, m.Message)
	}
}

func TestLobby_CountdownZeroPromotesEarliestPair(t *testing.T) {
	l, promotions := newTestLobby(t, Options{CountdownSeconds: 2, TickInterval: 5 * time.Millisecond})

	join(l, "s1", 1, "alice")
	join(l, "s2", 2, "bob")
	join(l, "s3", 3, "carol")

	promo := recvPromotion(t, promotions, 2*time.Second)
	assert.Equal(t, 1, promo.P1.UserID, "earliest joiner is player 1")
	assert.Equal(t, 2, promo.P2.UserID)

	v := view(t, l)
	assert.Equal(t, 1, v.Waiting, "promoted players left the pool")
	assert.Equal(t, []string{"s3"}, v.Order)
	assert.False(t, v.CountdownArmed, "one leftover player cannot rearm")

	recvNoPromotion(t, promotions, 50*time.Millisecond)
}

func TestLobby_ExactlyOnePromotionForTwoPlayers(t *testing.T) {
	l, promotions := newTestLobby(t, Options{CountdownSeconds: 1, TickInterval: 5 * time.Millisecond})

	join(l, "s1", 1, "alice")
	join(l, "s2", 2, "bob")

	recvPromotion(t, promotions, 2*time.Second)
	recvNoPromotion(t, promotions, 100*time.Millisecond)
	assert.Equal(t, 0, view(t, l).Waiting)
}

func TestLobby_ReinsertRestoresPlayersAndRearms(t *testing.T) {
	l, promotions := newTestLobby(t, Options{CountdownSeconds: 1, TickInterval: 5 * time.Millisecond})

	join(l, "s1", 1, "alice")
	join(l, "s2", 2, "bob")
	promo := recvPromotion(t, promotions, 2*time.Second)

	l.Inbox() <- Reinsert{Players: []PendingPlayer{promo.P1, promo.P2}}

	v := view(t, l)
	assert.Equal(t, 2, v.Waiting)
	assert.Equal(t, []string{"s1", "s2"}, v.Order, "reinserted players keep their pairing priority")
	assert.True(t, v.CountdownArmed)

	// The countdown restarted, so they get promoted again.
	again := recvPromotion(t, promotions, 2*time.Second)
	assert.Equal(t, 1, again.P1.UserID)
}

func TestLobby_SelectRosterMarksReady(t *testing.T) {
	l, _ := newTestLobby(t, Options{CountdownSeconds: 30, TickInterval: time.Hour})

	out := join(l, "s1", 1, "alice")
	recvMsg(t, out, time.Second) // lobby_joined
	recvMsg(t, out, time.Second) // lobby_update

	l.Inbox() <- SelectRoster{SessionID: "s1", MonsterIDs: []int{4, 2}}

	selected := recvMsg(t, out, time.Second)
	require.Equal(t, types.MsgMonstersSelected, selected.Type)
	assert.Equal(t, []int{4, 2}, selected.SelectedMonsters)

	update := recvMsg(t, out, time.Second)
	require.Equal(t, types.MsgLobbyUpdate, update.Type)
	require.Len(t, update.LobbyData.Players, 1)
	assert.True(t, update.LobbyData.Players[0].Ready)
	assert.True(t, update.LobbyData.Players[0].MonstersSelected)
}

func TestLobby_SelectRosterRejectsBadCount(t *testing.T) {
	l, _ := newTestLobby(t, Options{CountdownSeconds: 30, TickInterval: time.Hour})

	out := join(l, "s1", 1, "alice")
	recvMsg(t, out, time.Second)
	recvMsg(t, out, time.Second)

	for _, ids := range [][]int{{}, {1, 2, 3, 4}} {
		l.Inbox() <- SelectRoster{SessionID: "s1", MonsterIDs: ids}
		m := recvMsg(t, out, time.Second)
		assert.Equal(t, types.MsgError, m.Type)
	}
	assert.False(t, view(t, l).CountdownArmed)
}

func TestLobby_LeaveNotifiesAndRemoves(t *testing.T) {
	l, _ := newTestLobby(t, Options{CountdownSeconds: 30, TickInterval: time.Hour})

	out := join(l, "s1", 1, "alice")
	recvMsg(t, out, time.Second)
	recvMsg(t, out, time.Second)

	l.Inbox() <- Leave{SessionID: "s1"}
	left := recvMsg(t, out, time.Second)
	assert.Equal(t, types.MsgLobbyLeft, left.Type)
	assert.Equal(t, 0, view(t, l).Waiting)
}
