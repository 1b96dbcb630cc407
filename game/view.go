package game

// Snapshot is the serialized shape of one game instance. The unredacted
// form goes to persistence and admin surfaces; per-recipient forms pass
// through the rule set's ViewFor hook first, which may null out other
// players' secrets.
type Snapshot struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Players     []Player `json:"players"`
	Settings    Settings `json:"settings"`
	Started     bool     `json:"started"`
	Moves       []Move   `json:"moves"`
	Round       Round    `json:"round"`
	Turn        Turn     `json:"turn"`
	MaxRounds   int      `json:"max_rounds"`
	PlayerOrder []string `json:"player_order"`
	EndResults  any      `json:"end_results,omitempty"`
}

// Snapshot returns the full, unredacted state. Player entries and their
// rule-set data are copied so a ViewFor hook can rewrite them freely.
func (g *Game) Snapshot() Snapshot {
	players := make([]Player, len(g.players))
	for i, p := range g.players {
		players[i] = *p
		if p.Data != nil {
			data := make(map[string]any, len(p.Data))
			for k, v := range p.Data {
				data[k] = v
			}
			players[i].Data = data
		}
	}
	moves := make([]Move, len(g.moves))
	copy(moves, g.moves)
	return Snapshot{
		ID:          g.id,
		Name:        g.name,
		Players:     players,
		Settings:    g.settings,
		Started:     g.started,
		Moves:       moves,
		Round:       g.round,
		Turn:        g.turn,
		MaxRounds:   g.settings.MaxRounds,
		PlayerOrder: g.TurnOrder(),
		EndResults:  g.endResults,
	}
}

// ViewFor returns the state as one player is allowed to see it.
func (g *Game) ViewFor(playerID string) Snapshot {
	return g.hooks.ViewFor(g, playerID, g.Snapshot())
}

// syncState sends every player its own redacted view. Uses the
// per-recipient channel so redaction is applied per player rather than
// broadcast identically.
func (g *Game) syncState() {
	for _, p := range g.players {
		if err := g.notifier.SendTo(p.ID, EventState, g.ViewFor(p.ID)); err != nil {
			g.log.Warnf("game %s: state sync to %s failed: %v", g.id, p.ID, err)
		}
	}
}
