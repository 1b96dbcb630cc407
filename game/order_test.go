package game

import (
	"testing"
)

func TestSetTurnOrder_ExplicitIsVerbatim(t *testing.T) {
	g, _ := newTestGame(t, 3, passthroughHooks(), Settings{ReadyUp: true})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	g.SetTurnOrder(ExplicitOrder("3", "1", "2"))
	got := g.TurnOrder()
	want := []string{"3", "1", "2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}

	// Not validated: unknown ids are kept and surface as lookup misses
	// at turn time, not as an error here.
	g.SetTurnOrder(ExplicitOrder("3", "ghost"))
	if len(g.TurnOrder()) != 2 || g.TurnOrder()[1] != "ghost" {
		t.Errorf("explicit order must be used verbatim, got %v", g.TurnOrder())
	}
}

func TestSetTurnOrder_DefaultFollowsRoster(t *testing.T) {
	g, _ := newTestGame(t, 4, passthroughHooks(), Settings{ReadyUp: true})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	got := g.TurnOrder()
	want := []string{"1", "2", "3", "4"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected roster order %v, got %v", want, got)
		}
	}
}

func TestSetTurnOrder_RandomIsPermutation(t *testing.T) {
	g, _ := newTestGame(t, 4, passthroughHooks(), Settings{ReadyUp: true})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	differed := false
	for i := 0; i < 50; i++ {
		g.SetTurnOrder(RandomOrder())
		got := g.TurnOrder()

		seen := make(map[string]bool, len(got))
		for _, id := range got {
			if seen[id] {
				t.Fatalf("duplicate id %s in order %v", id, got)
			}
			seen[id] = true
			if _, ok := g.FindPlayer(id); !ok {
				t.Fatalf("order contains non-player id %s", id)
			}
		}
		if len(got) != 4 {
			t.Fatalf("order must cover all players, got %v", got)
		}
		for j, id := range got {
			if id != []string{"1", "2", "3", "4"}[j] {
				differed = true
			}
		}
	}
	if !differed {
		t.Error("50 random orders of 4 players never deviated from roster order")
	}
}

func TestSetTurnOrder_MissingTurnHolderSkipsWithoutTurnEndHooks(t *testing.T) {
	turnEnds := 0
	hooks := passthroughHooks()
	hooks.HandleTurnEnd = func(*Game, *Player) error {
		turnEnds++
		return nil
	}
	// Put an absent id in front at setup time; every round's turn 1
	// then resolves nobody and must pass straight to player 2 without
	// running turn-end hooks.
	hooks.Setup = func(g *Game) (*SettingsPatch, error) {
		g.SetTurnOrder(ExplicitOrder("ghost", "2"))
		return nil, nil
	}
	g, _ := newTestGame(t, 2, hooks, Settings{ReadyUp: false})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if g.Turn().PlayerID != "2" || g.Turn().Number != 2 {
		t.Fatalf("expected the ghost to be skipped at init, turn is %+v", g.Turn())
	}
	if turnEnds != 0 {
		t.Fatalf("skipping must not run turn-end hooks, ran %d times", turnEnds)
	}

	g.PlayerMove(g.Turn().PlayerID, "x") // finishes round 1's turn cycle

	if g.Round().Number != 2 {
		t.Fatalf("expected round 2, got %d", g.Round().Number)
	}
	if g.Turn().Number != 2 {
		// Round 2, turn 1 is the ghost again; the controller skips to
		// turn 2 immediately.
		t.Errorf("expected turn 2 after skipping the ghost, got %d", g.Turn().Number)
	}
	if g.Turn().PlayerID != "2" {
		t.Errorf("expected player 2 to hold the turn, got %q", g.Turn().PlayerID)
	}
	if turnEnds != 1 {
		t.Errorf("turn-end hook must run only for resolved players, ran %d times", turnEnds)
	}
}
