// Package lobby implements the matchmaking waiting pool as a single actor
// goroutine. All mutation happens inside the loop; the websocket layer and
// the hub talk to it exclusively through the typed message inbox.
package lobby

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nchavez4/monster-arena-backend/internal/metrics"
	"github.com/nchavez4/monster-arena-backend/internal/types"
)

type Msg interface{ isLobbyMsg() }

// Join adds (or idempotently replaces) a waiting player keyed by their
// transport session id.
type Join struct {
	SessionID string
	UserID    int
	Username  string
	Outbox    chan<- types.ServerMessage
}

func (Join) isLobbyMsg() {}

// SelectRoster records a 1-3 monster selection for a waiting player and marks
// them ready. Readiness never gates promotion; the countdown does.
type SelectRoster struct {
	SessionID  string
	MonsterIDs []int
}

func (SelectRoster) isLobbyMsg() {}

type Leave struct{ SessionID string }

func (Leave) isLobbyMsg() {}

// Reinsert returns promotion candidates to the pool after a failed session
// bootstrap. They go back to the front so the next promotion pairs them first.
type Reinsert struct{ Players []PendingPlayer }

func (Reinsert) isLobbyMsg() {}

type GetState struct{ Reply chan View }

func (GetState) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type PendingPlayer struct {
	SessionID        string
	UserID           int
	Username         string
	JoinedAt         time.Time
	Ready            bool
	SelectedMonsters []int
	Outbox           chan<- types.ServerMessage
}

// Promotion hands the two earliest-joined players to the hub for session
// creation. They are already out of the pool when this is sent.
type Promotion struct {
	P1, P2 PendingPlayer
}

// View is a test-only reflection of lobby internals, read without races.
type View struct {
	Waiting        int
	Order          []string
	Countdown      int
	CountdownArmed bool
}

type Options struct {
	CountdownSeconds int           // initial countdown value, default 30
	TickInterval     time.Duration // default 1s
}

func (o Options) withDefaults() Options {
	if o.CountdownSeconds <= 0 {
		o.CountdownSeconds = 30
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	return o
}

type Lobby struct {
	inbox      chan Msg
	order      []string
	players    map[string]*PendingPlayer
	countdown  int
	ticker     *time.Ticker
	promotions chan<- Promotion
	opts       Options
	log        *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

func New(parent context.Context, log *zap.Logger, promotions chan<- Promotion, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	opts = opts.withDefaults()

	l := &Lobby{
		inbox:      make(chan Msg, 64),
		players:    make(map[string]*PendingPlayer),
		countdown:  opts.CountdownSeconds,
		promotions: promotions,
		opts:       opts,
		log:        log.Named("lobby"),
		ctx:        ctx,
		cancel:     cancel,
	}
	go l.loop()
	return l
}

func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// tickc returns the armed countdown channel, or nil (never ready) when the
// countdown is disarmed.
func (l *Lobby) tickc() <-chan time.Time {
	if l.ticker == nil {
		return nil
	}
	return l.ticker.C
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case <-l.tickc():
			l.tick()

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.join(msg)
			case SelectRoster:
				l.selectRoster(msg)
			case Leave:
				l.leave(msg.SessionID, true)
			case Reinsert:
				l.reinsert(msg.Players)
			case GetState:
				msg.Reply <- View{
					Waiting:        len(l.players),
					Order:          append([]string(nil), l.order...),
					Countdown:      l.countdown,
					CountdownArmed: l.ticker != nil,
				}
			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) join(msg Join) {
	p := &PendingPlayer{
		SessionID: msg.SessionID,
		UserID:    msg.UserID,
		Username:  msg.Username,
		JoinedAt:  time.Now(),
		Outbox:    msg.Outbox,
	}
	if _, exists := l.players[msg.SessionID]; !exists {
		l.order = append(l.order, msg.SessionID)
	}
	l.players[msg.SessionID] = p
	metrics.WaitingPlayers.Set(float64(len(l.players)))

	l.log.Info("player joined lobby",
		zap.Int("user_id", msg.UserID), zap.String("username", msg.Username))

	send(p.Outbox, types.ServerMessage{
		Type:      types.MsgLobbyJoined,
		Message:   "Joined battle lobby",
		LobbyData: l.lobbyData(),
	})
	l.broadcastUpdate()
	l.evaluateCountdown()
}

func (l *Lobby) selectRoster(msg SelectRoster) {
	p, ok := l.players[msg.SessionID]
	if !ok {
		return
	}
	if len(msg.MonsterIDs) < 1 || len(msg.MonsterIDs) > 3 {
		send(p.Outbox, types.Error("select between 1 and 3 monsters"))
		return
	}
	p.SelectedMonsters = append([]int(nil), msg.MonsterIDs...)
	p.Ready = true

	send(p.Outbox, types.ServerMessage{
		Type:             types.MsgMonstersSelected,
		Message:          "Monsters selected successfully",
		SelectedMonsters: p.SelectedMonsters,
	})
	l.broadcastUpdate()
}

func (l *Lobby) leave(sessionID string, notify bool) {
	p, ok := l.players[sessionID]
	if !ok {
		return
	}
	delete(l.players, sessionID)
	l.removeFromOrder(sessionID)
	metrics.WaitingPlayers.Set(float64(len(l.players)))

	if notify {
		send(p.Outbox, types.ServerMessage{Type: types.MsgLobbyLeft, Message: "Left lobby"})
	}
	l.broadcastUpdate()
	l.evaluateCountdown()
}

func (l *Lobby) reinsert(players []PendingPlayer) {
	front := make([]string, 0, len(players))
	for i := range players {
		p := players[i]
		if _, exists := l.players[p.SessionID]; exists {
			continue
		}
		l.players[p.SessionID] = &p
		front = append(front, p.SessionID)
	}
	l.order = append(front, l.order...)
	metrics.WaitingPlayers.Set(float64(len(l.players)))

	l.countdown = l.opts.CountdownSeconds
	l.broadcastUpdate()
	l.evaluateCountdown()
}

// evaluateCountdown enforces the arming rule: armed exactly when two or more
// players wait and no countdown is already running.
func (l *Lobby) evaluateCountdown() {
	if len(l.players) >= 2 {
		if l.ticker == nil {
			l.countdown = l.opts.CountdownSeconds
			l.ticker = time.NewTicker(l.opts.TickInterval)
			l.log.Info("countdown armed", zap.Int("waiting", len(l.players)))
		}
		return
	}
	if l.ticker != nil {
		l.ticker.Stop()
		l.ticker = nil
		l.countdown = l.opts.CountdownSeconds
		l.log.Info("countdown disarmed, not enough players")
		l.broadcastUpdate()
	}
}

func (l *Lobby) tick() {
	l.countdown--
	if l.countdown <= 0 {
		l.promote()
		return
	}

	l.broadcastUpdate()
	switch {
	case l.countdown == 10:
		l.broadcastMessage("Battle starting in 10 seconds!")
	case l.countdown == 5:
		l.broadcastMessage("Battle starting in 5 seconds!")
	case l.countdown <= 3:
		l.broadcastMessage(fmt.Sprintf("%d...", l.countdown))
	}
}

// promote pops the two earliest-joined players and hands them to the hub.
// The countdown rearms from its initial value for whoever remains.
func (l *Lobby) promote() {
	if l.ticker != nil {
		l.ticker.Stop()
		l.ticker = nil
	}

	if len(l.order) < 2 {
		l.countdown = l.opts.CountdownSeconds
		l.broadcastUpdate()
		l.evaluateCountdown()
		return
	}

	p1 := l.players[l.order[0]]
	p2 := l.players[l.order[1]]
	l.leaveSilently(p1.SessionID)
	l.leaveSilently(p2.SessionID)

	l.log.Info("promoting players to battle",
		zap.String("p1", p1.Username), zap.String("p2", p2.Username))

	select {
	case l.promotions <- Promotion{P1: *p1, P2: *p2}:
	case <-l.ctx.Done():
		return
	}

	l.countdown = l.opts.CountdownSeconds
	l.broadcastUpdate()
	l.evaluateCountdown()
}

func (l *Lobby) leaveSilently(sessionID string) {
	delete(l.players, sessionID)
	l.removeFromOrder(sessionID)
	metrics.WaitingPlayers.Set(float64(len(l.players)))
}

func (l *Lobby) removeFromOrder(sessionID string) {
	for i, id := range l.order {
		if id == sessionID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}

func (l *Lobby) lobbyData() *types.LobbyData {
	players := make([]types.LobbyPlayer, 0, len(l.order))
	for _, id := range l.order {
		p := l.players[id]
		players = append(players, types.LobbyPlayer{
			UserID:           p.UserID,
			Username:         p.Username,
			JoinedAt:         p.JoinedAt.UnixMilli(),
			Ready:            p.Ready,
			MonstersSelected: len(p.SelectedMonsters) > 0,
		})
	}
	return &types.LobbyData{
		Players:   players,
		Countdown: l.countdown,
		CanStart:  len(players) >= 2,
	}
}

func (l *Lobby) broadcastUpdate() {
	data := l.lobbyData()
	for _, p := range l.players {
		send(p.Outbox, types.ServerMessage{Type: types.MsgLobbyUpdate, LobbyData: data})
	}
}

func (l *Lobby) broadcastMessage(text string) {
	for _, p := range l.players {
		send(p.Outbox, types.ServerMessage{Type: types.MsgLobbyMessage, Message: text})
	}
}

func (l *Lobby) shutdown() {
	if l.ticker != nil {
		l.ticker.Stop()
		l.ticker = nil
	}
	l.cancel()
}

// send never blocks the actor; a full outbox drops the message and the
// connection's own read loop will notice the dead client soon enough.
func send(out chan<- types.ServerMessage, msg types.ServerMessage) {
	select {
	case out <- msg:
	default:
	}
}
