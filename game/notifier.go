package game

// Event names the lifecycle notifications the controller emits. The
// room maps them onto wire message IDs; the core stays transport-free.
type Event string

const (
	// EventState is the full per-recipient state snapshot.
	EventState Event = "state"
	// EventPlayerReady announces one player's successful ready-up.
	EventPlayerReady Event = "player_ready"
	// EventTurnStart announces the round/turn now awaiting a move.
	EventTurnStart Event = "turn_start"
	// EventMove carries an accepted move envelope.
	EventMove Event = "move"
	// EventEnd carries the final results.
	EventEnd Event = "end"
	// EventDestroy announces that the game was torn down without results.
	EventDestroy Event = "destroy"
)

// ReadyNotice is the payload of EventPlayerReady.
type ReadyNotice struct {
	PlayerID string `json:"player_id"`
	Ack      any    `json:"ack,omitempty"`
}

// TurnNotice is the payload of EventTurnStart.
type TurnNotice struct {
	Round Round `json:"round"`
	Turn  Turn  `json:"turn"`
}

// Notifier is the controller's outbound edge, implemented by the room.
// This mirrors how the room/broadcast split breaks the import cycle:
// the core defines the interface, the collaborator satisfies it.
type Notifier interface {
	// Broadcast fans an event out to every participant.
	Broadcast(event Event, payload any) error
	// SendTo delivers an event to a single participant, used for
	// per-recipient redacted views and ready acknowledgements.
	SendTo(playerID string, event Event, payload any) error
	// GameEnded fires after endResults is set, e.g. to advance a
	// playlist once the results display interval elapses.
	GameEnded(gameID string, results any)
	// GameDestroyed fires when the game is torn down without results,
	// e.g. after too many departures.
	GameDestroyed(gameID string, reason string)
}
