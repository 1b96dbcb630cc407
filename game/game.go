package game

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wfunc/turnserver/logger"
)

// Fixed rejection reasons for protocol violations. The strings are part
// of the client protocol; do not reword them.
var (
	ErrGameEnded      = errors.New("Game has ended.")
	ErrGameNotStarted = errors.New("Game has not started.")
	ErrNotYourTurn    = errors.New("You are not allowed to send that right now.")
	ErrUnknownPlayer  = errors.New("unknown player")
)

// LeavePolicy decides what happens when the departed player still
// appears in the turn order.
type LeavePolicy int

const (
	// LeaveSkip removes the player from the order; if they held the
	// current turn, the turn passes on without turn-end hooks.
	LeaveSkip LeavePolicy = iota
	// LeaveAbort ends the game with an aborted-result payload.
	LeaveAbort
)

// ParseLeavePolicy maps the config string; anything unknown falls back
// to skip.
func ParseLeavePolicy(s string) LeavePolicy {
	if s == "abort" {
		return LeaveAbort
	}
	return LeaveSkip
}

// Round groups one turn per player in the turn order. Data holds
// rule-set enrichment from HandleRoundStart, e.g. a die roll.
type Round struct {
	Number int            `json:"number"`
	Data   map[string]any `json:"data,omitempty"`
}

// Turn is the window in which exactly one player may submit one move.
// PlayerID is always derived from playerOrder[Number-1].
type Turn struct {
	Number   int    `json:"number"`
	PlayerID string `json:"player_id"`
}

// Move is one accepted, recorded move. The log of these is append-only
// and totally ordered by acceptance.
type Move struct {
	PlayerID string `json:"player_id"`
	Round    int    `json:"round"`
	Turn     int    `json:"turn"`
	Payload  any    `json:"payload"`
}

// Game drives one game attempt through setup, ready-up and the nested
// round/turn loop, delegating game-specific decisions to its Hooks.
//
// All externally triggered operations (Init, ReadyUp, PlayerMove,
// PlayerLeave) are serialized by the lifecycle mutex; hooks run with
// that mutex held and must not re-enter those operations. The turn
// order has its own lock so hooks may call SetTurnOrder.
type Game struct {
	id    string
	name  string
	hooks Hooks

	mu      sync.Mutex
	players []*Player
	byID    map[string]*Player

	settings Settings
	started  bool
	moves    []Move
	round    Round
	turn     Turn

	orderMu     sync.RWMutex
	playerOrder []string

	endResults any
	ended      bool
	ending     bool

	leavePolicy LeavePolicy

	notifier Notifier
	log      *zap.SugaredLogger
}

// New builds a game over the given roster. defaults come from the room
// configuration and may be overridden by the rule set's Setup hook
// during Init. It fails only when a required hook is missing.
func New(name string, roster []RosterEntry, hooks Hooks, notifier Notifier, defaults Settings) (*Game, error) {
	hooks, err := hooks.withDefaults()
	if err != nil {
		return nil, err
	}
	g := &Game{
		id:       uuid.New().String(),
		name:     name,
		hooks:    hooks,
		settings: defaults,
		notifier: notifier,
		log:      logger.Log,
	}
	g.createPlayers(roster)
	return g, nil
}

// ID returns the instance identifier.
func (g *Game) ID() string { return g.id }

// Name returns the rule-set name the game was created with.
func (g *Game) Name() string { return g.name }

// Settings returns the merged lifecycle settings.
func (g *Game) Settings() Settings { return g.settings }

// Started reports whether the round loop has begun.
func (g *Game) Started() bool { return g.started }

// Round returns the current round.
func (g *Game) Round() Round { return g.round }

// Turn returns the current turn.
func (g *Game) Turn() Turn { return g.turn }

// Moves returns the accepted move log in acceptance order.
func (g *Game) Moves() []Move { return g.moves }

// EndResults returns the terminal results, nil while the game runs.
func (g *Game) EndResults() any { return g.endResults }

// Ended reports whether the end results have been recorded.
func (g *Game) Ended() bool { return g.ended }

// SetLeavePolicy configures departed-turn-holder recovery; call before
// Init.
func (g *Game) SetLeavePolicy(p LeavePolicy) { g.leavePolicy = p }

// Init runs setup, sends every player its initial view and either
// enters the ready-up phase or starts the round loop immediately when
// ready-up is disabled.
func (g *Game) Init() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	patch, err := g.hooks.Setup(g)
	if err != nil {
		return err
	}
	g.settings.apply(patch)

	if g.orderLen() == 0 {
		g.SetTurnOrder(DefaultOrder())
	}

	g.syncState()

	if !g.settings.ReadyUp {
		g.start()
	}
	return nil
}

// ReadyUp records one player's ready submission. It returns the rule
// set's acknowledgement payload. The N-th distinct successful ready-up
// of N players starts the game within the same call.
func (g *Game) ReadyUp(playerID string, payload any) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ended {
		return nil, ErrGameEnded
	}
	if g.started {
		return nil, ErrNotYourTurn
	}
	p, ok := g.byID[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if p.Ready {
		return nil, ErrNotYourTurn
	}

	ack, err := g.hooks.HandleReadyUp(g, p, payload)
	if err != nil {
		return nil, err
	}

	p.Ready = true
	if err := g.notifier.Broadcast(EventPlayerReady, ReadyNotice{PlayerID: p.ID, Ack: ack}); err != nil {
		g.log.Warnf("game %s: ready broadcast failed: %v", g.id, err)
	}

	if g.allReady() {
		g.start()
	}
	return ack, nil
}

// PlayerMove validates turn legality, delegates to the rule set and, on
// acceptance, records and broadcasts the move and advances the turn.
// Rejections leave the game state untouched.
func (g *Game) PlayerMove(playerID string, payload any) (Move, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ended {
		return Move{}, ErrGameEnded
	}
	if g.turn.Number == 0 {
		return Move{}, ErrGameNotStarted
	}
	if playerID != g.turn.PlayerID {
		return Move{}, ErrNotYourTurn
	}
	p, ok := g.byID[playerID]
	if !ok {
		return Move{}, ErrUnknownPlayer
	}

	accepted, err := g.hooks.HandleMove(g, p, payload)
	if err != nil {
		return Move{}, err
	}

	mv := Move{
		PlayerID: playerID,
		Round:    g.round.Number,
		Turn:     g.turn.Number,
		Payload:  accepted,
	}
	g.moves = append(g.moves, mv)
	if err := g.notifier.Broadcast(EventMove, mv); err != nil {
		g.log.Warnf("game %s: move broadcast failed: %v", g.id, err)
	}

	g.advanceTurn(false)
	return mv, nil
}

// PlayerLeave handles a departure reported by the room. The player is
// removed from the game; the rule set is notified; the game is torn
// down when the remaining players fall below the configured minimum,
// and a departed turn-holder is reconciled per the leave policy.
func (g *Game) PlayerLeave(playerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.byID[playerID]
	if !ok {
		return
	}
	g.removePlayer(playerID)
	g.hooks.HandlePlayerLeave(g, p)

	if g.ended {
		return
	}

	if len(g.players) < g.settings.MinPlayers {
		g.destroy("not enough players")
		return
	}

	if g.leavePolicy == LeaveAbort && g.started {
		g.finish(map[string]any{"reason": "aborted", "player_id": playerID})
		return
	}

	held := g.started && g.turn.PlayerID == playerID
	g.dropFromOrder(playerID)

	if !g.started {
		// The departed player may have been the last unready one; the
		// remaining roster can now satisfy the ready condition.
		if g.settings.ReadyUp && g.allReady() {
			g.start()
		}
		return
	}

	if held {
		// Re-resolve the current index; the order just shrank, so the
		// same turn number now addresses the next player (or spills
		// into round advancement).
		g.startTurn(g.turn.Number)
	}
}

// --- internal lifecycle; callers hold g.mu ---

func (g *Game) start() {
	g.started = true
	g.startRound(1)
}

func (g *Game) startRound(number int) {
	if g.ended || g.ending {
		return
	}
	if g.orderLen() == 0 {
		g.destroy("empty turn order")
		return
	}
	round := Round{Number: number}
	enriched, err := g.hooks.HandleRoundStart(g, round)
	if err != nil {
		if sig, ok := AsEndSignal(err); ok {
			g.finish(sig.Payload)
			return
		}
		g.log.Errorf("game %s: round %d start hook: %v", g.id, number, err)
		enriched = round
	}
	g.round = enriched
	g.startTurn(1)
}

func (g *Game) startTurn(number int) {
	if g.ended || g.ending {
		return
	}
	id, inRange := g.orderAt(number - 1)
	var p *Player
	if inRange {
		p = g.byID[id]
	}
	if p == nil {
		// Nobody resolves at this index (order shorter than expected or
		// a departed id left in an explicit order): advance without
		// turn-end hooks.
		g.turn = Turn{Number: number}
		g.advanceTurn(true)
		return
	}
	g.turn = Turn{Number: number, PlayerID: p.ID}
	g.hooks.HandleTurnStart(g, p, g.round, g.turn)
	if err := g.notifier.Broadcast(EventTurnStart, TurnNotice{Round: g.round, Turn: g.turn}); err != nil {
		g.log.Warnf("game %s: turn broadcast failed: %v", g.id, err)
	}
}

func (g *Game) advanceTurn(restart bool) {
	if g.ended || g.ending {
		return
	}
	if !restart {
		if p, ok := g.byID[g.turn.PlayerID]; ok {
			if err := g.hooks.HandleTurnEnd(g, p); err != nil {
				if sig, ok := AsEndSignal(err); ok {
					g.finish(sig.Payload)
					return
				}
				// A buggy turn-end hook must not wedge the game.
				g.log.Errorf("game %s: turn end hook: %v", g.id, err)
			}
		}
	}
	next := g.turn.Number + 1
	if next > g.orderLen() {
		g.advanceRound()
		return
	}
	g.startTurn(next)
}

func (g *Game) advanceRound() {
	if g.ended || g.ending {
		return
	}
	if err := g.hooks.HandleRoundEnd(g, g.round); err != nil {
		if sig, ok := AsEndSignal(err); ok {
			g.finish(sig.Payload)
			return
		}
		// Round restart: same number, fresh turns.
		g.startRound(g.round.Number)
		return
	}
	next := g.round.Number + 1
	if g.settings.MaxRounds > 0 && next > g.settings.MaxRounds {
		g.finish(map[string]any{"reason": "max_rounds"})
		return
	}
	g.startRound(next)
}

// finish runs the end sequence exactly once; a win signal racing the
// max-rounds bound hits the ending guard and returns.
func (g *Game) finish(cause any) {
	if g.ended || g.ending {
		return
	}
	g.ending = true

	results, err := g.hooks.HandleEnd(g, cause)
	if err != nil {
		g.log.Errorf("game %s: end hook: %v", g.id, err)
		results = cause
	}
	g.endResults = results
	g.ended = true

	if err := g.notifier.Broadcast(EventEnd, results); err != nil {
		g.log.Warnf("game %s: end broadcast failed: %v", g.id, err)
	}
	g.notifier.GameEnded(g.id, results)
}

func (g *Game) destroy(reason string) {
	g.ended = true
	if err := g.notifier.Broadcast(EventDestroy, map[string]any{"reason": reason}); err != nil {
		g.log.Warnf("game %s: destroy broadcast failed: %v", g.id, err)
	}
	g.notifier.GameDestroyed(g.id, reason)
}
