package game

import (
	"errors"
	"os"
	"testing"

	"github.com/wfunc/turnserver/logger"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

// notification records one outbound event for inspection.
type notification struct {
	Event   Event
	To      string // empty for broadcasts
	Payload any
}

// MockNotifier is a test double for the Notifier interface.
type MockNotifier struct {
	Notifications []notification
	EndedID       string
	EndedResults  any
	DestroyedID   string
	Reason        string
}

func (m *MockNotifier) Broadcast(event Event, payload any) error {
	m.Notifications = append(m.Notifications, notification{Event: event, Payload: payload})
	return nil
}

func (m *MockNotifier) SendTo(playerID string, event Event, payload any) error {
	m.Notifications = append(m.Notifications, notification{Event: event, To: playerID, Payload: payload})
	return nil
}

func (m *MockNotifier) GameEnded(gameID string, results any) {
	m.EndedID = gameID
	m.EndedResults = results
}

func (m *MockNotifier) GameDestroyed(gameID string, reason string) {
	m.DestroyedID = gameID
	m.Reason = reason
}

func (m *MockNotifier) countEvent(event Event) int {
	n := 0
	for _, nt := range m.Notifications {
		if nt.Event == event {
			n++
		}
	}
	return n
}

func roster(n int) []RosterEntry {
	entries := make([]RosterEntry, n)
	for i := range entries {
		entries[i] = RosterEntry{ID: string(rune('1' + i)), Name: "Player " + string(rune('1'+i))}
	}
	return entries
}

// passthroughHooks accepts every move verbatim and reports the cause as
// the end results.
func passthroughHooks() Hooks {
	return Hooks{
		HandleMove: func(_ *Game, _ *Player, payload any) (any, error) {
			return payload, nil
		},
		HandleEnd: func(_ *Game, cause any) (any, error) {
			return cause, nil
		},
	}
}

func newTestGame(t *testing.T, players int, hooks Hooks, settings Settings) (*Game, *MockNotifier) {
	t.Helper()
	notifier := &MockNotifier{}
	g, err := New("testgame", roster(players), hooks, notifier, settings)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return g, notifier
}

func TestNew_RequiresMoveAndEndHooks(t *testing.T) {
	_, err := New("broken", roster(2), Hooks{}, &MockNotifier{}, Settings{})
	if !errors.Is(err, ErrMissingHook) {
		t.Fatalf("expected ErrMissingHook, got %v", err)
	}
}

func TestInit_SkipsReadyUpWhenDisabled(t *testing.T) {
	hooks := passthroughHooks()
	hooks.Setup = func(*Game) (*SettingsPatch, error) {
		off := false
		return &SettingsPatch{ReadyUp: &off}, nil
	}
	g, _ := newTestGame(t, 1, hooks, Settings{ReadyUp: true})

	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !g.Started() {
		t.Error("game should start immediately when setup disables ready-up")
	}
	if g.Turn().Number != 1 {
		t.Errorf("expected turn number 1, got %d", g.Turn().Number)
	}
}

func TestInit_SendsPerPlayerState(t *testing.T) {
	g, notifier := newTestGame(t, 2, passthroughHooks(), Settings{ReadyUp: true})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if got := notifier.countEvent(EventState); got != 2 {
		t.Errorf("expected one state send per player, got %d", got)
	}
	for _, nt := range notifier.Notifications {
		if nt.Event == EventState && nt.To == "" {
			t.Error("state snapshots must use the per-recipient channel, not broadcast")
		}
	}
}

func TestReadyUp_StartsOnLastPlayer(t *testing.T) {
	g, notifier := newTestGame(t, 2, passthroughHooks(), Settings{ReadyUp: true})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ack, err := g.ReadyUp("1", map[string]any{})
	if err != nil {
		t.Fatalf("first ready-up failed: %v", err)
	}
	if ack != true {
		t.Errorf("default ready acknowledgement should be true, got %v", ack)
	}
	if g.Started() {
		t.Fatal("game must not start before every player is ready")
	}

	if _, err := g.ReadyUp("2", map[string]any{}); err != nil {
		t.Fatalf("second ready-up failed: %v", err)
	}
	if !g.Started() {
		t.Fatal("game must start on the last ready-up")
	}
	if g.Turn().PlayerID != g.TurnOrder()[0] {
		t.Errorf("turn holder %s should be the first of the order %v", g.Turn().PlayerID, g.TurnOrder())
	}
	if got := notifier.countEvent(EventPlayerReady); got != 2 {
		t.Errorf("expected 2 ready notifications, got %d", got)
	}
}

func TestReadyUp_Rejections(t *testing.T) {
	hooks := passthroughHooks()
	refused := errors.New("no seat for you")
	hooks.HandleReadyUp = func(_ *Game, p *Player, _ any) (any, error) {
		if p.ID == "2" {
			return nil, refused
		}
		return "welcome", nil
	}
	g, _ := newTestGame(t, 2, hooks, Settings{ReadyUp: true})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if _, err := g.ReadyUp("ghost", nil); !errors.Is(err, ErrUnknownPlayer) {
		t.Errorf("unknown player: expected ErrUnknownPlayer, got %v", err)
	}

	ack, err := g.ReadyUp("1", nil)
	if err != nil {
		t.Fatalf("ready-up failed: %v", err)
	}
	if ack != "welcome" {
		t.Errorf("expected rule set acknowledgement, got %v", ack)
	}
	if _, err := g.ReadyUp("1", nil); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("double ready: expected ErrNotYourTurn, got %v", err)
	}

	if _, err := g.ReadyUp("2", nil); !errors.Is(err, refused) {
		t.Errorf("expected rule set rejection to propagate, got %v", err)
	}
	p, _ := g.FindPlayer("2")
	if p.Ready {
		t.Error("ready flag must stay unset after a rejected submission")
	}
	if g.Started() {
		t.Error("game must not start while a rejection left a player unready")
	}
}

func TestPlayerMove_GuardOrder(t *testing.T) {
	g, _ := newTestGame(t, 2, passthroughHooks(), Settings{ReadyUp: true})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	// Before start: turn number is still zero.
	if _, err := g.PlayerMove("1", "x"); !errors.Is(err, ErrGameNotStarted) {
		t.Errorf("expected ErrGameNotStarted, got %v", err)
	}

	g.ReadyUp("1", nil)
	g.ReadyUp("2", nil)

	// Out of turn.
	holder := g.Turn().PlayerID
	other := "1"
	if holder == "1" {
		other = "2"
	}
	if _, err := g.PlayerMove(other, "x"); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("expected ErrNotYourTurn, got %v", err)
	}
	if len(g.Moves()) != 0 {
		t.Errorf("rejected move must not be recorded, log has %d entries", len(g.Moves()))
	}
}

func TestPlayerMove_RecordsAndAdvances(t *testing.T) {
	hooks := passthroughHooks()
	hooks.HandleMove = func(_ *Game, _ *Player, payload any) (any, error) {
		// The rule set may transform the payload before it is recorded.
		return map[string]any{"seen": payload}, nil
	}
	g, notifier := newTestGame(t, 2, hooks, Settings{ReadyUp: false})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	first := g.Turn().PlayerID
	mv, err := g.PlayerMove(first, "raw")
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if mv.PlayerID != first || mv.Round != 1 || mv.Turn != 1 {
		t.Errorf("unexpected envelope %+v", mv)
	}
	payload, ok := mv.Payload.(map[string]any)
	if !ok || payload["seen"] != "raw" {
		t.Errorf("recorded payload should be the rule set's transformation, got %v", mv.Payload)
	}
	if len(g.Moves()) != 1 {
		t.Fatalf("expected 1 recorded move, got %d", len(g.Moves()))
	}
	if g.Turn().Number != 2 {
		t.Errorf("expected turn 2 after the first move, got %d", g.Turn().Number)
	}
	if notifier.countEvent(EventMove) != 1 {
		t.Errorf("expected one move broadcast, got %d", notifier.countEvent(EventMove))
	}
}

func TestPlayerMove_RuleRejectionLeavesStateUntouched(t *testing.T) {
	hooks := passthroughHooks()
	illegal := errors.New("illegal move")
	hooks.HandleMove = func(_ *Game, _ *Player, payload any) (any, error) {
		return nil, illegal
	}
	g, _ := newTestGame(t, 2, hooks, Settings{ReadyUp: false})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	turnBefore := g.Turn()
	if _, err := g.PlayerMove(turnBefore.PlayerID, "x"); !errors.Is(err, illegal) {
		t.Fatalf("expected rule set rejection to propagate, got %v", err)
	}
	if len(g.Moves()) != 0 {
		t.Error("rejected move must not be recorded")
	}
	if g.Turn() != turnBefore {
		t.Errorf("turn must not advance on rejection: before %+v after %+v", turnBefore, g.Turn())
	}
}

func TestMovesAppendOnly(t *testing.T) {
	g, _ := newTestGame(t, 2, passthroughHooks(), Settings{ReadyUp: false})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	for i := 0; i < 6; i++ {
		before := len(g.Moves())
		if _, err := g.PlayerMove(g.Turn().PlayerID, i); err != nil {
			t.Fatalf("move %d failed: %v", i, err)
		}
		if len(g.Moves()) != before+1 {
			t.Fatalf("move log must grow by exactly one: %d -> %d", before, len(g.Moves()))
		}
	}
	// Appended in strictly non-decreasing (round, turn) order.
	moves := g.Moves()
	for i := 1; i < len(moves); i++ {
		prev, cur := moves[i-1], moves[i]
		if cur.Round < prev.Round || (cur.Round == prev.Round && cur.Turn < prev.Turn) {
			t.Errorf("move log out of order at %d: %+v then %+v", i, prev, cur)
		}
	}
}

func TestTurnEnd_WinSignalEndsGame(t *testing.T) {
	hooks := passthroughHooks()
	hooks.HandleTurnEnd = func(g *Game, p *Player) error {
		return Win(map[string]any{"winner": "1"})
	}
	hooks.HandleEnd = func(_ *Game, cause any) (any, error) {
		m := cause.(map[string]any)
		m["final"] = true
		return m, nil
	}
	g, notifier := newTestGame(t, 2, hooks, Settings{ReadyUp: false})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if _, err := g.PlayerMove(g.Turn().PlayerID, "x"); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	results, ok := g.EndResults().(map[string]any)
	if !ok || results["winner"] != "1" || results["final"] != true {
		t.Fatalf("end results should come from HandleEnd, got %v", g.EndResults())
	}
	if notifier.EndedResults == nil {
		t.Error("room must be notified of the end")
	}
	if notifier.countEvent(EventEnd) != 1 {
		t.Errorf("expected one end broadcast, got %d", notifier.countEvent(EventEnd))
	}
	if _, err := g.PlayerMove("1", "x"); !errors.Is(err, ErrGameEnded) {
		t.Errorf("moves after the end must fail with ErrGameEnded, got %v", err)
	}
}

func TestTurnEnd_InternalErrorIsSwallowed(t *testing.T) {
	hooks := passthroughHooks()
	hooks.HandleTurnEnd = func(*Game, *Player) error {
		return errors.New("bug in the rule set")
	}
	g, _ := newTestGame(t, 2, hooks, Settings{ReadyUp: false})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if _, err := g.PlayerMove(g.Turn().PlayerID, "x"); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if g.Ended() {
		t.Fatal("an internal turn-end error must not end the game")
	}
	if g.Turn().Number != 2 {
		t.Errorf("advancement must proceed past the error, turn is %d", g.Turn().Number)
	}
}

func TestRoundEnd_RejectionRestartsSameRound(t *testing.T) {
	hooks := passthroughHooks()
	restarts := 0
	hooks.HandleRoundEnd = func(_ *Game, r Round) error {
		if restarts == 0 {
			restarts++
			return errors.New("round not settled")
		}
		return nil
	}
	g, _ := newTestGame(t, 2, hooks, Settings{ReadyUp: false})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	g.PlayerMove(g.Turn().PlayerID, 1)
	g.PlayerMove(g.Turn().PlayerID, 2)

	if g.Round().Number != 1 {
		t.Errorf("rejected round end must restart round 1, got round %d", g.Round().Number)
	}
	if g.Turn().Number != 1 {
		t.Errorf("restarted round must reset to turn 1, got %d", g.Turn().Number)
	}

	g.PlayerMove(g.Turn().PlayerID, 3)
	g.PlayerMove(g.Turn().PlayerID, 4)
	if g.Round().Number != 2 {
		t.Errorf("after a clean round end the round must advance, got %d", g.Round().Number)
	}
}

func TestRoundStart_Enrichment(t *testing.T) {
	hooks := passthroughHooks()
	hooks.HandleRoundStart = func(_ *Game, r Round) (Round, error) {
		r.Data = map[string]any{"die": 4}
		return r, nil
	}
	g, _ := newTestGame(t, 1, hooks, Settings{ReadyUp: false})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if g.Round().Data["die"] != 4 {
		t.Errorf("round enrichment missing, got %+v", g.Round())
	}
}

func TestMaxRounds_EndsGame(t *testing.T) {
	g, _ := newTestGame(t, 1, passthroughHooks(), Settings{ReadyUp: false, MaxRounds: 2})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	g.PlayerMove("1", "r1")
	if g.Round().Number != 2 {
		t.Fatalf("expected round 2, got %d", g.Round().Number)
	}
	g.PlayerMove("1", "r2")

	if !g.Ended() {
		t.Fatal("game must end when the next round would exceed maxRounds")
	}
	results, ok := g.EndResults().(map[string]any)
	if !ok || results["reason"] != "max_rounds" {
		t.Errorf("expected max_rounds end payload, got %v", g.EndResults())
	}
}

func TestEndSequence_RunsOnce(t *testing.T) {
	hooks := passthroughHooks()
	endCalls := 0
	hooks.HandleEnd = func(g *Game, cause any) (any, error) {
		endCalls++
		// Adversarial rule set: raise a second win mid-end via the
		// round-end hook path is impossible here, but a re-entrant
		// finish from advancement must hit the guard.
		return cause, nil
	}
	hooks.HandleTurnEnd = func(*Game, *Player) error {
		return Win("by turn")
	}
	g, _ := newTestGame(t, 1, hooks, Settings{ReadyUp: false, MaxRounds: 1})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	g.PlayerMove("1", "x")
	if endCalls != 1 {
		t.Errorf("end sequence must run exactly once, ran %d times", endCalls)
	}
}

func TestPlayerLeave_SkipPolicyPassesTurn(t *testing.T) {
	g, _ := newTestGame(t, 3, passthroughHooks(), Settings{ReadyUp: false, MinPlayers: 2})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	holder := g.Turn().PlayerID
	g.PlayerLeave(holder)

	if g.Ended() {
		t.Fatal("skip policy must not end the game")
	}
	for _, id := range g.TurnOrder() {
		if id == holder {
			t.Error("departed player must be removed from the turn order")
		}
	}
	if g.Turn().PlayerID == holder {
		t.Error("departed player must not remain the turn holder")
	}
	if g.Turn().PlayerID == "" {
		t.Error("a remaining player must hold the turn")
	}
}

func TestPlayerLeave_AbortPolicyEndsGame(t *testing.T) {
	g, _ := newTestGame(t, 3, passthroughHooks(), Settings{ReadyUp: false, MinPlayers: 2})
	g.SetLeavePolicy(LeaveAbort)
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	g.PlayerLeave("2")
	if !g.Ended() {
		t.Fatal("abort policy must end the game on departure")
	}
	results, ok := g.EndResults().(map[string]any)
	if !ok || results["reason"] != "aborted" || results["player_id"] != "2" {
		t.Errorf("unexpected abort payload %v", g.EndResults())
	}
}

func TestPlayerLeave_LastUnreadyDepartureStartsGame(t *testing.T) {
	g, _ := newTestGame(t, 3, passthroughHooks(), Settings{ReadyUp: true, MinPlayers: 2})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if _, err := g.ReadyUp("1", nil); err != nil {
		t.Fatalf("ready-up failed: %v", err)
	}
	if _, err := g.ReadyUp("2", nil); err != nil {
		t.Fatalf("ready-up failed: %v", err)
	}
	if g.Started() {
		t.Fatal("game must not start while a player is unready")
	}

	// The only unready player leaves; the remaining roster satisfies
	// the ready condition and the game must start.
	g.PlayerLeave("3")

	if !g.Started() {
		t.Fatal("game must start when the last unready player departs")
	}
	if g.Turn().Number != 1 || g.Turn().PlayerID != g.TurnOrder()[0] {
		t.Errorf("round loop must begin normally, turn is %+v order %v", g.Turn(), g.TurnOrder())
	}
	for _, id := range g.TurnOrder() {
		if id == "3" {
			t.Error("departed player must not appear in the turn order")
		}
	}
}

func TestPlayerLeave_BeforeStartWithUnreadyRemainderStaysWaiting(t *testing.T) {
	g, _ := newTestGame(t, 3, passthroughHooks(), Settings{ReadyUp: true, MinPlayers: 2})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	g.ReadyUp("1", nil)
	g.PlayerLeave("3")

	if g.Started() {
		t.Fatal("game must keep waiting while a remaining player is unready")
	}
	if _, err := g.ReadyUp("2", nil); err != nil {
		t.Fatalf("ready-up failed: %v", err)
	}
	if !g.Started() {
		t.Fatal("game must start on the last ready-up after a departure")
	}
}

func TestPlayerLeave_BelowMinimumDestroys(t *testing.T) {
	left := ""
	hooks := passthroughHooks()
	hooks.HandlePlayerLeave = func(_ *Game, p *Player) {
		left = p.ID
	}
	g, notifier := newTestGame(t, 2, hooks, Settings{ReadyUp: false, MinPlayers: 2})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	g.PlayerLeave("1")
	if left != "1" {
		t.Errorf("rule set must be notified of the departure, got %q", left)
	}
	if notifier.DestroyedID != g.ID() {
		t.Error("room must receive the destroy notification")
	}
	if notifier.countEvent(EventDestroy) != 1 {
		t.Errorf("expected one destroy broadcast, got %d", notifier.countEvent(EventDestroy))
	}
	if _, err := g.PlayerMove("2", "x"); !errors.Is(err, ErrGameEnded) {
		t.Errorf("destroyed game must reject moves, got %v", err)
	}
}

func TestViewFor_RedactionPerRecipient(t *testing.T) {
	hooks := passthroughHooks()
	hooks.CreatePlayer = func(entry RosterEntry) *Player {
		p := &Player{ID: entry.ID, Name: entry.Name}
		p.Set("secret", "of-"+entry.ID)
		return p
	}
	hooks.ViewFor = func(_ *Game, playerID string, snap Snapshot) Snapshot {
		for i := range snap.Players {
			if snap.Players[i].ID != playerID {
				snap.Players[i].Data["secret"] = nil
			}
		}
		return snap
	}
	g, _ := newTestGame(t, 2, hooks, Settings{ReadyUp: true})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	view := g.ViewFor("1")
	for _, p := range view.Players {
		secret := p.Data["secret"]
		if p.ID == "1" && secret != "of-1" {
			t.Errorf("own secret must survive redaction, got %v", secret)
		}
		if p.ID == "2" && secret != nil {
			t.Errorf("other players' secrets must be redacted, got %v", secret)
		}
	}
	// Redaction must not leak back into the authoritative state.
	p2, _ := g.FindPlayer("2")
	if p2.Get("secret") != "of-2" {
		t.Error("redacting a view must not mutate the game's players")
	}
}

func TestSnapshotShape(t *testing.T) {
	g, _ := newTestGame(t, 2, passthroughHooks(), Settings{ReadyUp: false, MaxRounds: 5})
	if err := g.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	g.PlayerMove(g.Turn().PlayerID, "x")

	snap := g.Snapshot()
	if snap.Name != "testgame" {
		t.Errorf("unexpected name %q", snap.Name)
	}
	if !snap.Started || snap.MaxRounds != 5 || len(snap.Moves) != 1 || len(snap.Players) != 2 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.Turn.PlayerID != snap.PlayerOrder[snap.Turn.Number-1] {
		t.Errorf("turn holder %s must match order index %d of %v",
			snap.Turn.PlayerID, snap.Turn.Number-1, snap.PlayerOrder)
	}
}
