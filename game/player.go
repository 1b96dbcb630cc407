package game

// RosterEntry is what the room knows about a participant when a game is
// created: a stable identifier (survives reconnects) and a display name.
type RosterEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Player is the per-game participant entity. It lives exactly as long as
// one game instance and is owned by it. Rule sets attach game-specific
// state through Data (or by populating it in their CreatePlayer hook).
type Player struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Ready bool           `json:"ready"`
	Data  map[string]any `json:"data,omitempty"`
}

// Get reads a rule-set field, nil when absent.
func (p *Player) Get(key string) any {
	return p.Data[key]
}

// Set writes a rule-set field.
func (p *Player) Set(key string, value any) {
	if p.Data == nil {
		p.Data = make(map[string]any)
	}
	p.Data[key] = value
}

// Players returns the player list in roster order. The slice is shared;
// callers are serialized by the owning room and must not reorder it.
func (g *Game) Players() []*Player {
	return g.players
}

// FindPlayer looks a player up by identifier. A miss returns false
// rather than an error; an explicit turn order naming an unknown id will
// therefore surface as misses here, not as a failure at order-set time.
func (g *Game) FindPlayer(id string) (*Player, bool) {
	p, ok := g.byID[id]
	return p, ok
}

// createPlayers builds the player list from the roster via the
// CreatePlayer hook, preserving roster order.
func (g *Game) createPlayers(roster []RosterEntry) {
	g.players = make([]*Player, 0, len(roster))
	g.byID = make(map[string]*Player, len(roster))
	for _, entry := range roster {
		p := g.hooks.CreatePlayer(entry)
		g.players = append(g.players, p)
		g.byID[p.ID] = p
	}
}

// removePlayer drops a player from the list and the index, preserving
// the order of the remaining players.
func (g *Game) removePlayer(id string) {
	if _, ok := g.byID[id]; !ok {
		return
	}
	delete(g.byID, id)
	for i, p := range g.players {
		if p.ID == id {
			g.players = append(g.players[:i], g.players[i+1:]...)
			break
		}
	}
}

// allReady reports whether every player has readied up.
func (g *Game) allReady() bool {
	for _, p := range g.players {
		if !p.Ready {
			return false
		}
	}
	return true
}
