// Package battle runs one actor goroutine per active battle session. The
// actor owns the session state outright: client submissions, turn-deadline
// timers and pacing delays all arrive as inbox messages, so resolution within
// a session is strictly sequential. Timer callbacks never touch state — they
// post an epoch-stamped message, and a stale epoch is a checked no-op.
package battle

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/nchavez4/monster-arena-backend/internal/engine"
	"github.com/nchavez4/monster-arena-backend/internal/metrics"
	"github.com/nchavez4/monster-arena-backend/internal/types"
)

type Msg interface{ isSessionMsg() }

// Submit is a client-driven skill use for the current turn.
type Submit struct {
	PlayerID  int
	MonsterID int
	SkillID   int
	TargetID  int
}

func (Submit) isSessionMsg() {}

// Unsubscribe detaches a disconnected player's outbox. The battle keeps
// running; their monsters act through the timeout fallback.
type Unsubscribe struct{ PlayerID int }

func (Unsubscribe) isSessionMsg() {}

type GetState struct{ Reply chan View }

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

// timeout fires when the acting player missed the turn deadline.
type timeout struct{ epoch int64 }

func (timeout) isSessionMsg() {}

// advance starts the next turn after the post-resolution pacing delay.
type advance struct{ epoch int64 }

func (advance) isSessionMsg() {}

// View is a test-only reflection of session internals.
type View struct {
	State  engine.State
	Events []engine.CombatEvent
	Epoch  int64
}

// Result summarizes a finished battle for the hub and the match recorder.
type Result struct {
	SessionID      string
	Player1ID      int
	Player2ID      int
	WinnerID       int
	WinnerUsername string
	Turns          int
	StartedAt      time.Time
	EndedAt        time.Time
}

type Options struct {
	TurnDeadline time.Duration // default 10s
	PacingDelay  time.Duration // default 2s
}

func (o Options) withDefaults() Options {
	if o.TurnDeadline <= 0 {
		o.TurnDeadline = 10 * time.Second
	}
	if o.PacingDelay <= 0 {
		o.PacingDelay = 2 * time.Second
	}
	return o
}

type Session struct {
	id        string
	inbox     chan Msg
	state     engine.State
	events    []engine.CombatEvent
	subs      map[int]chan<- types.ServerMessage
	epoch     *atomic.Int64
	resolved  *atomic.Bool
	turnTimer *time.Timer
	rng       *rand.Rand
	opts      Options
	startedAt time.Time
	onFinish  func(Result)
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewSession registers the two players' outboxes, broadcasts battle_start and
// begins the first turn. onFinish is invoked exactly once, from the session
// goroutine, when the battle reaches a terminal state.
func NewSession(parent context.Context, log *zap.Logger, id string, state engine.State,
	subs map[int]chan<- types.ServerMessage, rng *rand.Rand, opts Options, onFinish func(Result)) *Session {

	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:        id,
		inbox:     make(chan Msg, 64),
		state:     state,
		subs:      subs,
		epoch:     atomic.NewInt64(0),
		resolved:  atomic.NewBool(false),
		rng:       rng,
		opts:      opts.withDefaults(),
		startedAt: time.Now(),
		onFinish:  onFinish,
		log:       log.Named("battle").With(zap.String("session_id", id)),
		ctx:       ctx,
		cancel:    cancel,
	}
	go s.run()
	return s
}

func (s *Session) ID() string            { return s.id }
func (s *Session) Inbox() chan<- Msg     { return s.inbox }
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

func (s *Session) run() {
	s.log.Info("battle started",
		zap.String("p1", s.state.Player1.Username),
		zap.String("p2", s.state.Player2.Username))

	s.broadcast(types.ServerMessage{
		Type:        types.MsgBattleStart,
		Message:     "Battle begins!",
		BattleState: s.snapshot(),
	})
	s.startTurn()

	for {
		select {
		case <-s.ctx.Done():
			s.stopTimer()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Submit:
				s.handleSubmit(msg)
			case timeout:
				s.handleTimeout(msg)
			case advance:
				s.handleAdvance(msg)
			case Unsubscribe:
				delete(s.subs, msg.PlayerID)
			case GetState:
				msg.Reply <- View{
					State:  s.state,
					Events: append([]engine.CombatEvent(nil), s.events...),
					Epoch:  s.epoch.Load(),
				}
			case Shutdown:
				s.stopTimer()
				s.cancel()
				return
			}
		}
	}
}

// startTurn arms the single turn timer for the session. The previous timer is
// always stopped first and the new epoch invalidates any already-fired
// callback still sitting in the inbox.
func (s *Session) startTurn() {
	ns, acting, err := engine.BeginTurn(s.state)
	if err != nil {
		// Turn order exhausted with nobody alive: internal-consistency
		// fault, terminate without a winner rather than spin.
		s.log.Error("turn order exhausted", zap.Error(err))
		s.endBattle(0)
		return
	}
	s.state = ns

	epoch := s.epoch.Inc()
	s.resolved.Store(false)
	s.stopTimer()

	deadline := time.Now().Add(s.opts.TurnDeadline)
	s.broadcast(types.ServerMessage{
		Type:           types.MsgTurnStart,
		BattleState:    s.snapshot(),
		CurrentMonster: &acting,
		TurnDeadline:   deadline.UnixMilli(),
	})

	s.turnTimer = time.AfterFunc(s.opts.TurnDeadline, func() {
		s.post(timeout{epoch: epoch})
	})
}

func (s *Session) handleSubmit(msg Submit) {
	if s.state.Phase == engine.PhaseFinished {
		return
	}
	if s.resolved.Load() {
		s.sendTo(msg.PlayerID, types.Error("turn already resolved"))
		return
	}
	cmd := engine.Command{
		PlayerID:  msg.PlayerID,
		MonsterID: msg.MonsterID,
		SkillID:   msg.SkillID,
		TargetID:  msg.TargetID,
	}
	if err := s.resolve(cmd); err != nil {
		s.sendTo(msg.PlayerID, types.Error(err.Error()))
	}
}

func (s *Session) handleTimeout(msg timeout) {
	if msg.epoch != s.epoch.Load() || s.resolved.Load() {
		return // stale timer, the turn already resolved
	}
	if s.state.Phase == engine.PhaseFinished {
		return
	}

	cmd, ok := engine.AutoCommand(s.state, s.rng)
	if !ok {
		// No living enemy to hit: pass the turn.
		s.state = engine.AdvanceCursor(s.state)
		s.startTurn()
		return
	}

	metrics.TurnTimeouts.Inc()
	s.log.Info("turn deadline missed, auto-acting",
		zap.Int("monster_id", cmd.MonsterID), zap.Int("target_id", cmd.TargetID))

	if err := s.resolve(cmd); err != nil {
		s.log.Error("auto-action failed", zap.Error(err))
		s.state = engine.AdvanceCursor(s.state)
		s.startTurn()
	}
}

// resolve applies one command, flips the per-turn resolved flag, cancels the
// pending deadline and either terminates the battle or schedules the next
// turn after the pacing delay.
func (s *Session) resolve(cmd engine.Command) error {
	events, ns, err := engine.Apply(s.state, cmd, s.rng)
	if err != nil {
		return err
	}
	if !s.resolved.CompareAndSwap(false, true) {
		return nil // lost the first-resolution race, nothing applied twice
	}
	s.stopTimer()

	s.state = ns
	s.events = append(s.events, events...)
	s.broadcast(types.ServerMessage{
		Type:        types.MsgBattleUpdate,
		BattleState: s.snapshot(),
		Events:      events,
	})

	if s.state.Phase == engine.PhaseFinished {
		s.endBattle(s.state.Winner)
		return nil
	}

	epoch := s.epoch.Load()
	time.AfterFunc(s.opts.PacingDelay, func() {
		s.post(advance{epoch: epoch})
	})
	return nil
}

func (s *Session) handleAdvance(msg advance) {
	if msg.epoch != s.epoch.Load() || s.state.Phase == engine.PhaseFinished {
		return
	}
	s.state = engine.AdvanceCursor(s.state)
	s.startTurn()
}

func (s *Session) endBattle(winnerID int) {
	s.stopTimer()
	s.state.Phase = engine.PhaseFinished
	s.state.Winner = winnerID

	winnerName := ""
	if winnerID != 0 {
		winnerName = s.state.Username(winnerID)
	}
	s.log.Info("battle ended",
		zap.Int("winner_id", winnerID), zap.String("winner", winnerName))

	endMsg := "Battle ended"
	if winnerName != "" {
		endMsg = winnerName + " wins the battle!"
	}
	s.broadcast(types.ServerMessage{
		Type:           types.MsgBattleEnd,
		BattleState:    s.snapshot(),
		WinnerID:       winnerID,
		WinnerUsername: winnerName,
		Message:        endMsg,
	})

	if s.onFinish != nil {
		s.onFinish(Result{
			SessionID:      s.id,
			Player1ID:      s.state.Player1.PlayerID,
			Player2ID:      s.state.Player2.PlayerID,
			WinnerID:       winnerID,
			WinnerUsername: winnerName,
			Turns:          s.state.CurrentTurn,
			StartedAt:      s.startedAt,
			EndedAt:        time.Now(),
		})
	}
	s.cancel()
}

func (s *Session) snapshot() *engine.State {
	st := s.state
	return &st
}

func (s *Session) broadcast(msg types.ServerMessage) {
	for _, out := range s.subs {
		send(out, msg)
	}
}

func (s *Session) sendTo(playerID int, msg types.ServerMessage) {
	if out, ok := s.subs[playerID]; ok {
		send(out, msg)
	}
}

func (s *Session) stopTimer() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
}

// post delivers a timer callback into the actor loop without ever blocking a
// fired timer on a dead session.
func (s *Session) post(m Msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

func send(out chan<- types.ServerMessage, msg types.ServerMessage) {
	select {
	case out <- msg:
	default:
	}
}
