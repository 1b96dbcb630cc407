// models/models.go
package models

import (
	"time"
)

// GameRecord is one finished game as persisted: the full final snapshot
// plus the results the rule set produced.
type GameRecord struct {
	GameID    string         `json:"game_id"`
	RoomID    string         `json:"room_id"`
	RuleSet   string         `json:"rule_set"`
	Players   []PlayerInfo   `json:"players"`
	Results   map[string]any `json:"results"`
	MoveCount int            `json:"move_count"`
	Rounds    int            `json:"rounds"`
	Duration  time.Duration  `json:"duration"`
	CreatedAt time.Time      `json:"created_at"`
}

// PlayerInfo is one participant's line in a game record.
type PlayerInfo struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Outcome  string `json:"outcome"` // win/lose/abort
}

// PlayerStats aggregates a player's history across games.
type PlayerStats struct {
	PlayerID   string `json:"player_id"`
	TotalGames int    `json:"total_games"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
}
