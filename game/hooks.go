package game

import (
	"errors"
	"time"
)

// Settings are the lifecycle knobs of one game instance.
type Settings struct {
	ReadyUp        bool           `json:"ready_up"`
	ResultsTimeout time.Duration  `json:"results_timeout"`
	MaxRounds      int            `json:"max_rounds"` // 0 means unbounded
	MinPlayers     int            `json:"min_players"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// SettingsPatch is what a rule set's Setup hook returns. Nil fields keep
// the room defaults; Extra entries are merged key by key.
type SettingsPatch struct {
	ReadyUp        *bool
	ResultsTimeout *time.Duration
	MaxRounds      *int
	MinPlayers     *int
	Extra          map[string]any
}

func (s *Settings) apply(p *SettingsPatch) {
	if p == nil {
		return
	}
	if p.ReadyUp != nil {
		s.ReadyUp = *p.ReadyUp
	}
	if p.ResultsTimeout != nil {
		s.ResultsTimeout = *p.ResultsTimeout
	}
	if p.MaxRounds != nil {
		s.MaxRounds = *p.MaxRounds
	}
	if p.MinPlayers != nil {
		s.MinPlayers = *p.MinPlayers
	}
	for k, v := range p.Extra {
		if s.Extra == nil {
			s.Extra = make(map[string]any)
		}
		s.Extra[k] = v
	}
}

// EndSignal is the error a rule set returns from HandleTurnEnd or
// HandleRoundEnd to conclude the game. Its payload becomes the cause
// passed to HandleEnd. Any other error from those hooks is an internal
// failure and does not terminate the game.
type EndSignal struct {
	Payload any
}

func (e *EndSignal) Error() string {
	return "game end signaled"
}

// Win wraps a termination cause, typically {"winner": id}.
func Win(payload any) error {
	return &EndSignal{Payload: payload}
}

// AsEndSignal reports whether err carries a termination cause.
func AsEndSignal(err error) (*EndSignal, bool) {
	var sig *EndSignal
	if errors.As(err, &sig) {
		return sig, true
	}
	return nil, false
}

// Hooks is the capability descriptor a concrete rule set fills in.
// HandleMove and HandleEnd are required; every other hook is optional and
// replaced with a no-op or identity default at construction, so the
// controller never checks for presence per call.
//
// Hooks are invoked on the goroutine driving the game and must not call
// back into the game's entry points. They read state through the Game
// accessors and request mutations through SetTurnOrder / settings
// patches only.
type Hooks struct {
	// CreatePlayer builds the per-game player for one roster entry. The
	// default wraps the entry's identifier and name.
	CreatePlayer func(entry RosterEntry) *Player

	// Setup runs once during Init; its patch is merged into the settings.
	Setup func(g *Game) (*SettingsPatch, error)

	// HandleReadyUp validates one ready submission. The returned value is
	// the acknowledgement sent back to the submitter; an error rejects
	// the submission and leaves the ready flag unset. The default
	// acknowledges with true.
	HandleReadyUp func(g *Game, player *Player, payload any) (any, error)

	// HandleMove validates and applies a move. The returned value is the
	// canonical payload recorded in the move log, so a rule set may
	// transform what the player submitted. Required.
	HandleMove func(g *Game, player *Player, payload any) (any, error)

	// HandleTurnStart is a notification only; it cannot affect flow.
	HandleTurnStart func(g *Game, player *Player, round Round, turn Turn)

	// HandleTurnEnd runs after a move is recorded, before advancement.
	// Returning an *EndSignal ends the game with its payload; any other
	// error is logged and advancement proceeds.
	HandleTurnEnd func(g *Game, player *Player) error

	// HandleRoundStart may enrich the round before turn 1, e.g. attach a
	// die roll. The returned round replaces the current one.
	HandleRoundStart func(g *Game, round Round) (Round, error)

	// HandleRoundEnd gates the next round. Returning an *EndSignal ends
	// the game; any other error restarts the same round number.
	HandleRoundEnd func(g *Game, round Round) error

	// HandleEnd produces the final results from the termination cause.
	// Required.
	HandleEnd func(g *Game, cause any) (any, error)

	// HandlePlayerLeave is notified after a departed player has been
	// removed from the game.
	HandlePlayerLeave func(g *Game, player *Player)

	// ViewFor redacts the snapshot for one recipient. The default returns
	// it unchanged.
	ViewFor func(g *Game, playerID string, snap Snapshot) Snapshot
}

// ErrMissingHook is returned by New when a required hook is absent.
var ErrMissingHook = errors.New("rule set is missing a required hook")

// withDefaults substitutes defaults for absent optional hooks so the
// controller can call every hook unconditionally.
func (h Hooks) withDefaults() (Hooks, error) {
	if h.HandleMove == nil || h.HandleEnd == nil {
		return h, ErrMissingHook
	}
	if h.CreatePlayer == nil {
		h.CreatePlayer = func(entry RosterEntry) *Player {
			return &Player{ID: entry.ID, Name: entry.Name}
		}
	}
	if h.Setup == nil {
		h.Setup = func(*Game) (*SettingsPatch, error) { return nil, nil }
	}
	if h.HandleReadyUp == nil {
		h.HandleReadyUp = func(*Game, *Player, any) (any, error) { return true, nil }
	}
	if h.HandleTurnStart == nil {
		h.HandleTurnStart = func(*Game, *Player, Round, Turn) {}
	}
	if h.HandleTurnEnd == nil {
		h.HandleTurnEnd = func(*Game, *Player) error { return nil }
	}
	if h.HandleRoundStart == nil {
		h.HandleRoundStart = func(_ *Game, r Round) (Round, error) { return r, nil }
	}
	if h.HandleRoundEnd == nil {
		h.HandleRoundEnd = func(*Game, Round) error { return nil }
	}
	if h.HandlePlayerLeave == nil {
		h.HandlePlayerLeave = func(*Game, *Player) {}
	}
	if h.ViewFor == nil {
		h.ViewFor = func(_ *Game, _ string, s Snapshot) Snapshot { return s }
	}
	return h, nil
}
