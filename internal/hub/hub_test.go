package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nchavez4/monster-arena-backend/internal/battle"
	"github.com/nchavez4/monster-arena-backend/internal/lobby"
	"github.com/nchavez4/monster-arena-backend/internal/match"
	"github.com/nchavez4/monster-arena-backend/internal/roster"
	"github.com/nchavez4/monster-arena-backend/internal/types"
)

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

func hubView(t *testing.T, h *Hub) View {
	t.Helper()
	reply := make(chan View, 1)
	h.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for hub view")
		return View{}
	}
}

func seededProvider() *roster.StaticProvider {
	p := roster.NewStaticProvider()
	p.Seed(1, []roster.Monster{{ID: 10, Name: "blaze", Level: 1,
		MaxHP: 500, Strength: 20, Speed: 90, Element: "fire", Rarity: "common"}})
	p.Seed(2, []roster.Monster{{ID: 20, Name: "ripple", Level: 1,
		MaxHP: 500, Strength: 10, Speed: 50, Element: "water", Rarity: "common"}})
	return p
}

func newTestHub(t *testing.T, rosters roster.Provider) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHub(ctx, zap.NewNop(), rosters, match.NopRecorder{}, Options{
		Lobby:  lobby.Options{CountdownSeconds: 1, TickInterval: 5 * time.Millisecond},
		Battle: battle.Options{TurnDeadline: 5 * time.Second, PacingDelay: 20 * time.Millisecond},
		Seed:   7,
	})
}

func connect(h *Hub, connID string, userID int, name string) chan types.ServerMessage {
	out := make(chan types.ServerMessage, 64)
	h.Inbox() <- Connect{ConnID: connID, UserID: userID, Username: name, Outbox: out}
	return out
}

func TestHub_LobbyToBattleFlow(t *testing.T) {
	h := newTestHub(t, seededProvider())

	out1 := connect(h, "c1", 1, "alice")
	out2 := connect(h, "c2", 2, "bob")
	h.Inbox() <- JoinLobby{UserID: 1}
	h.Inbox() <- JoinLobby{UserID: 2}

	// 1s countdown at 5ms ticks: both players get promoted into a battle.
	start1 := recvMsgOfType(t, out1, types.MsgBattleStart, 3*time.Second)
	start2 := recvMsgOfType(t, out2, types.MsgBattleStart, 3*time.Second)
	require.NotNil(t, start1.BattleState)
	assert.Equal(t, start1.BattleState.MatchID, start2.BattleState.MatchID)
	assert.Equal(t, "alice", start1.BattleState.Player1.Username)
	assert.Equal(t, "bob", start1.BattleState.Player2.Username)

	v := hubView(t, h)
	assert.Equal(t, 1, v.ActiveSessions)
	assert.ElementsMatch(t, []int{1, 2}, v.InBattle)

	// The faster monster's owner acts; both sides see the update.
	recvMsgOfType(t, out1, types.MsgTurnStart, time.Second)
	h.Inbox() <- UseSkill{UserID: 1, MonsterID: 10, SkillID: 1, TargetID: 20}
	update := recvMsgOfType(t, out2, types.MsgBattleUpdate, time.Second)
	require.Len(t, update.Events, 1)
	assert.Equal(t, 10, update.Events[0].AttackerID)
}

func TestHub_UseSkillWithoutBattle(t *testing.T) {
	h := newTestHub(t, seededProvider())

	out := connect(h, "c1", 1, "alice")
	h.Inbox() <- UseSkill{UserID: 1, MonsterID: 10, SkillID: 1, TargetID: 20}

	m := recvMsgOfType(t, out, types.MsgError, time.Second)
	assert.Equal(t, "No active battle found", m.Message)
}

func TestHub_PromotionFailureReturnsPlayersToLobby(t *testing.T) {
	// Player 2 has no roster, so session bootstrap must fail.
	p := roster.NewStaticProvider()
	p.Seed(1, []roster.Monster{{ID: 10, Name: "blaze", Level: 1,
		MaxHP: 100, Strength: 20, Speed: 90, Element: "fire", Rarity: "common"}})

	h := newTestHub(t, p)
	out1 := connect(h, "c1", 1, "alice")
	connect(h, "c2", 2, "bob")
	h.Inbox() <- JoinLobby{UserID: 1}
	h.Inbox() <- JoinLobby{UserID: 2}

	m := recvMsgOfType(t, out1, types.MsgError, 3*time.Second)
	assert.Equal(t, "Match could not be created", m.Message)

	// No partial battle state survives and both are waiting again.
	assert.Eventually(t, func() bool {
		return hubView(t, h).ActiveSessions == 0
	}, time.Second, 10*time.Millisecond)
	recvMsgOfType(t, out1, types.MsgLobbyUpdate, time.Second)
}

func TestHub_DisconnectLeavesBattleRunning(t *testing.T) {
	h := newTestHub(t, seededProvider())

	out1 := connect(h, "c1", 1, "alice")
	connect(h, "c2", 2, "bob")
	h.Inbox() <- JoinLobby{UserID: 1}
	h.Inbox() <- JoinLobby{UserID: 2}

	recvMsgOfType(t, out1, types.MsgBattleStart, 3*time.Second)

	h.Inbox() <- Disconnect{ConnID: "c2", UserID: 2}

	v := hubView(t, h)
	assert.Equal(t, 1, v.Clients)
	assert.Equal(t, 1, v.ActiveSessions, "mid-battle disconnect does not tear down the session")

	// The remaining player still sees turns progressing.
	recvMsgOfType(t, out1, types.MsgTurnStart, 2*time.Second)
}

func TestHub_StaleDisconnectIsIgnored(t *testing.T) {
	h := newTestHub(t, seededProvider())

	connect(h, "c1", 1, "alice")
	connect(h, "c1b", 1, "alice") // reconnect under a fresh conn id

	h.Inbox() <- Disconnect{ConnID: "c1", UserID: 1}
	assert.Equal(t, 1, hubView(t, h).Clients, "old connection's disconnect must not evict the new one")
}

func TestHub_StaleDisconnectEvictsOldLobbyEntry(t *testing.T) {
	h := newTestHub(t, seededProvider())

	connect(h, "c1", 1, "alice")
	h.Inbox() <- JoinLobby{UserID: 1}

	// Reconnect races ahead of the old socket's deferred disconnect. The
	// stale disconnect must still remove the old conn id from the waiting
	// pool, or the dead entry pairs with the user's fresh one.
	out1b := connect(h, "c1b", 1, "alice")
	h.Inbox() <- Disconnect{ConnID: "c1", UserID: 1}
	h.Inbox() <- JoinLobby{UserID: 1}

	// One waiting player: the countdown stays disarmed, nothing promotes.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, hubView(t, h).ActiveSessions, "a lone player must not be matched against themselves")

	out2 := connect(h, "c2", 2, "bob")
	h.Inbox() <- JoinLobby{UserID: 2}

	start := recvMsgOfType(t, out1b, types.MsgBattleStart, 3*time.Second)
	require.NotNil(t, start.BattleState)
	assert.NotEqual(t, start.BattleState.Player1.PlayerID, start.BattleState.Player2.PlayerID)
	assert.ElementsMatch(t, []int{1, 2},
		[]int{start.BattleState.Player1.PlayerID, start.BattleState.Player2.PlayerID})
	recvMsgOfType(t, out2, types.MsgBattleStart, 3*time.Second)
}
