// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/turnserver/models"
)

// Database stores finished games and per-player aggregates. In-flight
// game state is never persisted; the lifecycle controller owns it
// exclusively until the game ends.
type Database interface {
	SaveGameRecord(record *models.GameRecord) error
	RecordOutcome(playerID, outcome string) error
	GetPlayerStats(playerID string) (*models.PlayerStats, error)
	RecentRecords(roomID string, limit int) ([]*models.GameRecord, error)
	Close() error
}

var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
