// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/turnserver/models"
)

// GormPostgreSQL is the GORM-backed implementation of Database.
type GormPostgreSQL struct {
	db *gorm.DB
}

func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := db.AutoMigrate(&models.GormGameRecord{}, &models.GormPlayerStats{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func (g *GormPostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	players := make(map[string]any, len(record.Players))
	for _, p := range record.Players {
		players[p.PlayerID] = map[string]any{
			"name":    p.Name,
			"outcome": p.Outcome,
		}
	}

	row := &models.GormGameRecord{
		GameID:    record.GameID,
		RoomID:    record.RoomID,
		RuleSet:   record.RuleSet,
		Players:   players,
		Results:   record.Results,
		MoveCount: record.MoveCount,
		Rounds:    record.Rounds,
		Duration:  int64(record.Duration.Seconds()),
	}
	return g.db.Create(row).Error
}

func (g *GormPostgreSQL) RecordOutcome(playerID, outcome string) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		var stats models.GormPlayerStats
		err := tx.Where("player_id = ?", playerID).First(&stats).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stats = models.GormPlayerStats{PlayerID: playerID}
		} else if err != nil {
			return err
		}

		stats.TotalGames++
		switch outcome {
		case "win":
			stats.Wins++
		case "lose":
			stats.Losses++
		}
		return tx.Save(&stats).Error
	})
}

func (g *GormPostgreSQL) GetPlayerStats(playerID string) (*models.PlayerStats, error) {
	var row models.GormPlayerStats
	err := g.db.Where("player_id = ?", playerID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &models.PlayerStats{
		PlayerID:   row.PlayerID,
		TotalGames: row.TotalGames,
		Wins:       row.Wins,
		Losses:     row.Losses,
	}, nil
}

func (g *GormPostgreSQL) RecentRecords(roomID string, limit int) ([]*models.GameRecord, error) {
	var rows []models.GormGameRecord
	err := g.db.Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]*models.GameRecord, 0, len(rows))
	for _, row := range rows {
		rec := &models.GameRecord{
			GameID:    row.GameID,
			RoomID:    row.RoomID,
			RuleSet:   row.RuleSet,
			Results:   row.Results,
			MoveCount: row.MoveCount,
			Rounds:    row.Rounds,
			Duration:  time.Duration(row.Duration) * time.Second,
			CreatedAt: row.CreatedAt,
		}
		for id, v := range row.Players {
			info := models.PlayerInfo{PlayerID: id}
			if m, ok := v.(map[string]any); ok {
				info.Name, _ = m["name"].(string)
				info.Outcome, _ = m["outcome"].(string)
			}
			rec.Players = append(rec.Players, info)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (g *GormPostgreSQL) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
