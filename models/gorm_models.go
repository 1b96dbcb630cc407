// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormGameRecord mirrors GameRecord for the GORM store.
type GormGameRecord struct {
	gorm.Model
	GameID    string         `gorm:"uniqueIndex;not null"`
	RoomID    string         `gorm:"index;not null"`
	RuleSet   string         `gorm:"not null"`
	Players   map[string]any `gorm:"serializer:json;type:jsonb;not null"`
	Results   map[string]any `gorm:"serializer:json;type:jsonb;not null"`
	MoveCount int            `gorm:"default:0"`
	Rounds    int            `gorm:"default:0"`
	Duration  int64          `gorm:"default:0"` // seconds
}

// GormPlayerStats is the per-player aggregate row, updated after every
// finished game.
type GormPlayerStats struct {
	gorm.Model
	PlayerID   string `gorm:"uniqueIndex;not null"`
	TotalGames int    `gorm:"default:0"`
	Wins       int    `gorm:"default:0"`
	Losses     int    `gorm:"default:0"`
}
