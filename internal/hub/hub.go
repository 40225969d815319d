// Package hub is the process-wide coordinator: it owns the player registry,
// the matchmaking lobby and the active battle sessions, all behind one actor
// goroutine. Client events come in through the typed inbox; nothing outside
// the loop touches the maps.
package hub

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nchavez4/monster-arena-backend/internal/battle"
	"github.com/nchavez4/monster-arena-backend/internal/lobby"
	"github.com/nchavez4/monster-arena-backend/internal/match"
	"github.com/nchavez4/monster-arena-backend/internal/metrics"
	"github.com/nchavez4/monster-arena-backend/internal/roster"
	"github.com/nchavez4/monster-arena-backend/internal/types"
)

type HubMsg interface{ isHubMsg() }

// Connect registers an authenticated websocket connection. A second
// connection by the same user replaces the first.
type Connect struct {
	ConnID   string
	UserID   int
	Username string
	Outbox   chan<- types.ServerMessage
}

// Disconnect cleans up after a closed connection. A stale disconnect (the
// user already reconnected under a new ConnID) still evicts the old ConnID
// from the waiting pool but leaves the fresh registry entry alone.
type Disconnect struct {
	ConnID string
	UserID int
}

type JoinLobby struct{ UserID int }

type SelectMonsters struct {
	UserID     int
	MonsterIDs []int
}

type LeaveLobby struct{ UserID int }

type UseSkill struct {
	UserID    int
	MonsterID int
	SkillID   int
	TargetID  int
}

type GetState struct{ Reply chan View }

type ShutdownHub struct{}

// bootstrapDone carries an async roster resolution back into the loop.
type bootstrapDone struct {
	promo lobby.Promotion
	setup [2]battle.PlayerSetup
	err   error
}

// sessionFinished is posted by a session's onFinish callback.
type sessionFinished struct{ result battle.Result }

func (Connect) isHubMsg()         {}
func (Disconnect) isHubMsg()      {}
func (JoinLobby) isHubMsg()       {}
func (SelectMonsters) isHubMsg()  {}
func (LeaveLobby) isHubMsg()      {}
func (UseSkill) isHubMsg()        {}
func (GetState) isHubMsg()        {}
func (ShutdownHub) isHubMsg()     {}
func (bootstrapDone) isHubMsg()   {}
func (sessionFinished) isHubMsg() {}

// View is a test-only reflection of hub internals.
type View struct {
	Clients        int
	ActiveSessions int
	InBattle       []int
}

type Options struct {
	Lobby  lobby.Options
	Battle battle.Options
	// Seed fixes every session's RNG when nonzero; zero seeds from the clock.
	Seed int64
}

type client struct {
	connID   string
	username string
	outbox   chan<- types.ServerMessage
}

type Hub struct {
	inbox      chan HubMsg
	clients    map[int]*client
	lobby      *lobby.Lobby
	promotions chan lobby.Promotion
	sessions   map[string]*battle.Session
	byUser     map[int]string
	rosters    roster.Provider
	recorder   match.Recorder
	opts       Options
	log        *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger, rosters roster.Provider,
	recorder match.Recorder, opts Options) *Hub {

	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:      make(chan HubMsg, 64),
		clients:    make(map[int]*client),
		promotions: make(chan lobby.Promotion, 4),
		sessions:   make(map[string]*battle.Session),
		byUser:     make(map[int]string),
		rosters:    rosters,
		recorder:   recorder,
		opts:       opts,
		log:        log.Named("hub"),
		ctx:        ctx,
		cancel:     cancel,
	}
	h.lobby = lobby.New(ctx, log, h.promotions, opts.Lobby)
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case promo := <-h.promotions:
			go h.bootstrap(promo)

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Connect:
				h.clients[msg.UserID] = &client{
					connID:   msg.ConnID,
					username: msg.Username,
					outbox:   msg.Outbox,
				}

			case Disconnect:
				h.disconnect(msg)

			case JoinLobby:
				if c, ok := h.clients[msg.UserID]; ok {
					h.lobby.Inbox() <- lobby.Join{
						SessionID: c.connID,
						UserID:    msg.UserID,
						Username:  c.username,
						Outbox:    c.outbox,
					}
				}

			case SelectMonsters:
				if c, ok := h.clients[msg.UserID]; ok {
					h.lobby.Inbox() <- lobby.SelectRoster{
						SessionID:  c.connID,
						MonsterIDs: msg.MonsterIDs,
					}
				}

			case LeaveLobby:
				if c, ok := h.clients[msg.UserID]; ok {
					h.lobby.Inbox() <- lobby.Leave{SessionID: c.connID}
				}

			case UseSkill:
				h.useSkill(msg)

			case bootstrapDone:
				h.finishBootstrap(msg)

			case sessionFinished:
				h.finishSession(msg.result)

			case GetState:
				inBattle := make([]int, 0, len(h.byUser))
				for uid := range h.byUser {
					inBattle = append(inBattle, uid)
				}
				msg.Reply <- View{
					Clients:        len(h.clients),
					ActiveSessions: len(h.sessions),
					InBattle:       inBattle,
				}

			case ShutdownHub:
				h.lobby.Inbox() <- lobby.Shutdown{}
				for _, s := range h.sessions {
					h.postSession(s, battle.Shutdown{})
				}
				clear(h.sessions)
				h.cancel()
			}
		}
	}
}

func (h *Hub) disconnect(msg Disconnect) {
	// The waiting pool is keyed by connID, so the closed connection's entry
	// is evicted even when the user already reconnected under a new connID.
	// Otherwise the stale entry lingers with a dead outbox and can be
	// promoted against the same user's fresh entry.
	h.lobby.Inbox() <- lobby.Leave{SessionID: msg.ConnID}

	c, ok := h.clients[msg.UserID]
	if !ok || c.connID != msg.ConnID {
		return
	}
	delete(h.clients, msg.UserID)

	// Mid-battle disconnects do not forfeit: the session keeps running and
	// the player's monsters act via the timeout fallback.
	if sid, ok := h.byUser[msg.UserID]; ok {
		if s, ok := h.sessions[sid]; ok {
			h.postSession(s, battle.Unsubscribe{PlayerID: msg.UserID})
		}
	}
	h.log.Info("client disconnected", zap.Int("user_id", msg.UserID))
}

func (h *Hub) useSkill(msg UseSkill) {
	sid, ok := h.byUser[msg.UserID]
	if !ok {
		h.sendTo(msg.UserID, types.Error("No active battle found"))
		return
	}
	s, ok := h.sessions[sid]
	if !ok {
		h.sendTo(msg.UserID, types.Error("No active battle found"))
		return
	}
	h.postSession(s, battle.Submit{
		PlayerID:  msg.UserID,
		MonsterID: msg.MonsterID,
		SkillID:   msg.SkillID,
		TargetID:  msg.TargetID,
	})
}

// bootstrap resolves both rosters off the hub goroutine; only the result
// message re-enters the loop.
func (h *Hub) bootstrap(promo lobby.Promotion) {
	ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
	defer cancel()

	done := bootstrapDone{promo: promo}
	for i, p := range []lobby.PendingPlayer{promo.P1, promo.P2} {
		monsters, err := h.rosters.CombatRoster(ctx, p.UserID)
		if err != nil {
			done.err = err
			break
		}
		done.setup[i] = battle.PlayerSetup{
			UserID:   p.UserID,
			Username: p.Username,
			Selected: p.SelectedMonsters,
			Roster:   monsters,
		}
	}

	select {
	case h.inbox <- done:
	case <-h.ctx.Done():
	}
}

func (h *Hub) finishBootstrap(msg bootstrapDone) {
	fail := func(err error) {
		metrics.PromotionFailures.Inc()
		h.log.Warn("promotion failed, returning players to lobby", zap.Error(err))
		for _, p := range []lobby.PendingPlayer{msg.promo.P1, msg.promo.P2} {
			h.sendTo(p.UserID, types.Error("Match could not be created"))
		}
		h.lobby.Inbox() <- lobby.Reinsert{
			Players: []lobby.PendingPlayer{msg.promo.P1, msg.promo.P2},
		}
	}

	if msg.err != nil {
		fail(msg.err)
		return
	}

	id := uuid.NewString()
	state, err := battle.BuildState(id, msg.setup[0], msg.setup[1])
	if err != nil {
		fail(err)
		return
	}

	subs := make(map[int]chan<- types.ServerMessage, 2)
	for _, p := range []lobby.PendingPlayer{msg.promo.P1, msg.promo.P2} {
		if c, ok := h.clients[p.UserID]; ok {
			subs[p.UserID] = c.outbox
		}
	}

	seed := h.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	s := battle.NewSession(h.ctx, h.log, id, state, subs, rng, h.opts.Battle, func(r battle.Result) {
		select {
		case h.inbox <- sessionFinished{result: r}:
		case <-h.ctx.Done():
		}
	})
	h.sessions[id] = s
	h.byUser[msg.promo.P1.UserID] = id
	h.byUser[msg.promo.P2.UserID] = id

	metrics.MatchesStarted.Inc()
	metrics.ActiveBattles.Set(float64(len(h.sessions)))
}

func (h *Hub) finishSession(r battle.Result) {
	delete(h.sessions, r.SessionID)
	delete(h.byUser, r.Player1ID)
	delete(h.byUser, r.Player2ID)
	metrics.MatchesCompleted.Inc()
	metrics.ActiveBattles.Set(float64(len(h.sessions)))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := h.recorder.Record(ctx, match.Result{
			Player1ID: r.Player1ID,
			Player2ID: r.Player2ID,
			WinnerID:  r.WinnerID,
			Turns:     r.Turns,
			StartedAt: r.StartedAt,
			EndedAt:   r.EndedAt,
		})
		if err != nil {
			h.log.Error("failed to record match result", zap.Error(err))
		}
	}()
}

func (h *Hub) sendTo(userID int, msg types.ServerMessage) {
	if c, ok := h.clients[userID]; ok {
		select {
		case c.outbox <- msg:
		default:
		}
	}
}

// postSession never blocks the hub on a session that just terminated.
func (h *Hub) postSession(s *battle.Session, m battle.Msg) {
	select {
	case s.Inbox() <- m:
	case <-s.Done():
	}
}
