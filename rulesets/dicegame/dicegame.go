// rulesets/dicegame/dicegame.go
package dicegame

import (
	"fmt"
	"math/rand"

	"github.com/wfunc/turnserver/game"
	"github.com/wfunc/turnserver/rulesets"
)

// Dice duel: every round the controller rolls a target die. On their
// turn each player guesses the target; close guesses score, an exact
// guess on the player's secret lucky number scores double. First to
// WinScore wins, otherwise highest total after MaxRounds.
const (
	Name = "dicegame"

	WinScore         = 20
	DefaultMaxRounds = 5

	fieldScore = "score"
	fieldLucky = "lucky"

	keyTarget = "target"
)

func init() {
	rulesets.Register(Name, Hooks)
}

// Hooks builds the capability set for one game attempt.
func Hooks() game.Hooks {
	return game.Hooks{
		CreatePlayer:     createPlayer,
		Setup:            setup,
		HandleReadyUp:    handleReadyUp,
		HandleMove:       handleMove,
		HandleTurnEnd:    handleTurnEnd,
		HandleRoundStart: handleRoundStart,
		HandleEnd:        handleEnd,
		ViewFor:          viewFor,
	}
}

func createPlayer(entry game.RosterEntry) *game.Player {
	p := &game.Player{ID: entry.ID, Name: entry.Name}
	p.Set(fieldScore, 0)
	p.Set(fieldLucky, rand.Intn(6)+1)
	return p
}

func setup(g *game.Game) (*game.SettingsPatch, error) {
	rounds := DefaultMaxRounds
	return &game.SettingsPatch{MaxRounds: &rounds}, nil
}

func handleReadyUp(g *game.Game, p *game.Player, payload any) (any, error) {
	return map[string]any{"player_id": p.ID, "win_score": WinScore}, nil
}

func handleRoundStart(g *game.Game, r game.Round) (game.Round, error) {
	r.Data = map[string]any{keyTarget: rand.Intn(6) + 1}
	return r, nil
}

func handleMove(g *game.Game, p *game.Player, payload any) (any, error) {
	guess, err := guessFrom(payload)
	if err != nil {
		return nil, err
	}
	if guess < 1 || guess > 6 {
		return nil, fmt.Errorf("guess %d is not on the die", guess)
	}

	target, _ := g.Round().Data[keyTarget].(int)
	points := score(guess, target)
	if guess == luckyOf(p) {
		points *= 2
	}

	total := scoreOf(p) + points
	p.Set(fieldScore, total)

	// The recorded payload carries the outcome, not just the guess.
	return map[string]any{
		"guess":  guess,
		"target": target,
		"points": points,
		"total":  total,
	}, nil
}

func handleTurnEnd(g *game.Game, p *game.Player) error {
	if total := scoreOf(p); total >= WinScore {
		return game.Win(map[string]any{"winner": p.ID, "score": total})
	}
	return nil
}

func handleEnd(g *game.Game, cause any) (any, error) {
	standings := make([]map[string]any, 0, len(g.Players()))
	best := ""
	bestScore := -1
	for _, p := range g.Players() {
		total := scoreOf(p)
		standings = append(standings, map[string]any{
			"player_id": p.ID,
			"score":     total,
		})
		if total > bestScore {
			best, bestScore = p.ID, total
		}
	}

	results := map[string]any{
		"cause":     cause,
		"standings": standings,
	}
	// A win signal already names the winner; the max-rounds path falls
	// back to the highest total.
	if m, ok := cause.(map[string]any); ok {
		if w, ok := m["winner"]; ok {
			results["winner"] = w
			return results, nil
		}
	}
	results["winner"] = best
	return results, nil
}

// viewFor hides everyone else's lucky number from each recipient.
func viewFor(g *game.Game, playerID string, snap game.Snapshot) game.Snapshot {
	for i := range snap.Players {
		if snap.Players[i].ID != playerID {
			delete(snap.Players[i].Data, fieldLucky)
		}
	}
	return snap
}

// score grades a guess: exact hits 5, one off 2, anything else nothing.
func score(guess, target int) int {
	switch diff := guess - target; {
	case diff == 0:
		return 5
	case diff == 1 || diff == -1:
		return 2
	default:
		return 0
	}
}

func scoreOf(p *game.Player) int {
	total, _ := p.Get(fieldScore).(int)
	return total
}

func luckyOf(p *game.Player) int {
	lucky, _ := p.Get(fieldLucky).(int)
	return lucky
}

// guessFrom accepts the native move struct or the JSON decoding of it.
func guessFrom(payload any) (int, error) {
	switch v := payload.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case map[string]any:
		switch g := v["guess"].(type) {
		case int:
			return g, nil
		case float64:
			return int(g), nil
		}
	}
	return 0, fmt.Errorf("move payload must carry a numeric guess")
}
