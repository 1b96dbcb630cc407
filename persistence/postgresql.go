// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/wfunc/turnserver/models"
)

const queryTimeout = 5 * time.Second

// PostgreSQL is the raw database/sql implementation of Database.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            game_id VARCHAR(64) UNIQUE NOT NULL,
            room_id VARCHAR(64) NOT NULL,
            rule_set VARCHAR(100) NOT NULL,
            players JSONB NOT NULL,
            results JSONB NOT NULL,
            move_count INT NOT NULL DEFAULT 0,
            rounds INT NOT NULL DEFAULT 0,
            duration_seconds BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS player_stats (
            id SERIAL PRIMARY KEY,
            player_id VARCHAR(64) UNIQUE NOT NULL,
            total_games INT NOT NULL DEFAULT 0,
            wins INT NOT NULL DEFAULT 0,
            losses INT NOT NULL DEFAULT 0,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_game_records_room_id ON game_records(room_id);
        CREATE INDEX IF NOT EXISTS idx_game_records_created_at ON game_records(created_at);
    `)

	return err
}

func (p *PostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}
	results, err := json.Marshal(record.Results)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := `
        INSERT INTO game_records (game_id, room_id, rule_set, players, results, move_count, rounds, duration_seconds)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (game_id) DO NOTHING
    `
	_, err = p.db.ExecContext(ctx, query,
		record.GameID, record.RoomID, record.RuleSet,
		players, results,
		record.MoveCount, record.Rounds, int64(record.Duration.Seconds()))
	return err
}

func (p *PostgreSQL) RecordOutcome(playerID, outcome string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	wins := 0
	losses := 0
	switch outcome {
	case "win":
		wins = 1
	case "lose":
		losses = 1
	}

	query := `
        INSERT INTO player_stats (player_id, total_games, wins, losses)
        VALUES ($1, 1, $2, $3)
        ON CONFLICT (player_id)
        DO UPDATE SET
            total_games = player_stats.total_games + 1,
            wins = player_stats.wins + $2,
            losses = player_stats.losses + $3,
            updated_at = CURRENT_TIMESTAMP
    `
	_, err := p.db.ExecContext(ctx, query, playerID, wins, losses)
	return err
}

func (p *PostgreSQL) GetPlayerStats(playerID string) (*models.PlayerStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	stats := &models.PlayerStats{PlayerID: playerID}
	query := `SELECT total_games, wins, losses FROM player_stats WHERE player_id = $1`
	err := p.db.QueryRowContext(ctx, query, playerID).
		Scan(&stats.TotalGames, &stats.Wins, &stats.Losses)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return stats, nil
}

func (p *PostgreSQL) RecentRecords(roomID string, limit int) ([]*models.GameRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := `
        SELECT game_id, rule_set, players, results, move_count, rounds, duration_seconds, created_at
        FROM game_records
        WHERE room_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := p.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.GameRecord
	for rows.Next() {
		rec := &models.GameRecord{RoomID: roomID}
		var players, results []byte
		var seconds int64
		if err := rows.Scan(&rec.GameID, &rec.RuleSet, &players, &results,
			&rec.MoveCount, &rec.Rounds, &seconds, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(players, &rec.Players); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(results, &rec.Results); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(seconds) * time.Second
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
