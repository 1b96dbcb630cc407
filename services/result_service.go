// services/result_service.go
package services

import (
	"time"

	"github.com/wfunc/turnserver/game"
	"github.com/wfunc/turnserver/logger"
	"github.com/wfunc/turnserver/models"
	"github.com/wfunc/turnserver/persistence"
)

// ResultService turns finished games into records and per-player
// aggregates. It sits between the room layer and the database so that
// neither knows about the other.
type ResultService struct {
	db persistence.Database
}

func NewResultService(db persistence.Database) *ResultService {
	return &ResultService{db: db}
}

// RecordGame persists one finished game. The winner is read from the
// results map when the rule set names one; everybody else is marked a
// loss. Persistence failures are logged, never surfaced to the room:
// a lost record must not take a live room down with it.
func (s *ResultService) RecordGame(roomID, ruleSet string, snap game.Snapshot, results any, duration time.Duration) {
	if s.db == nil {
		return
	}

	resultMap, _ := results.(map[string]any)
	winner, _ := resultMap["winner"].(string)
	aborted := false
	if cause, ok := resultMap["cause"].(map[string]any); ok {
		aborted = cause["reason"] == "aborted"
	}

	record := &models.GameRecord{
		GameID:    snap.ID,
		RoomID:    roomID,
		RuleSet:   ruleSet,
		Results:   resultMap,
		MoveCount: len(snap.Moves),
		Rounds:    snap.Round.Number,
		Duration:  duration,
		CreatedAt: time.Now(),
	}
	for _, p := range snap.Players {
		outcome := "lose"
		switch {
		case aborted:
			outcome = "abort"
		case p.ID == winner:
			outcome = "win"
		}
		record.Players = append(record.Players, models.PlayerInfo{
			PlayerID: p.ID,
			Name:     p.Name,
			Outcome:  outcome,
		})
	}

	if err := s.db.SaveGameRecord(record); err != nil {
		logger.Log.Errorw("failed to save game record",
			"game_id", snap.ID, "room_id", roomID, "error", err)
		return
	}
	for _, info := range record.Players {
		if info.Outcome == "abort" {
			continue
		}
		if err := s.db.RecordOutcome(info.PlayerID, info.Outcome); err != nil {
			logger.Log.Errorw("failed to record player outcome",
				"player_id", info.PlayerID, "error", err)
		}
	}
}

// PlayerStats returns a player's lifetime aggregates.
func (s *ResultService) PlayerStats(playerID string) (*models.PlayerStats, error) {
	if s.db == nil {
		return nil, persistence.ErrRecordNotFound
	}
	return s.db.GetPlayerStats(playerID)
}

// RoomHistory returns the most recent finished games for a room.
func (s *ResultService) RoomHistory(roomID string, limit int) ([]*models.GameRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	return s.db.RecentRecords(roomID, limit)
}
