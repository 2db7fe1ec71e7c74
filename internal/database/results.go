// internal/database/results.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/fraud/internal/models"
)

// DB is the part of *pgxpool.Pool the store needs.
type DB interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS fraud_games (
	id            BIGSERIAL PRIMARY KEY,
	lobby_id      TEXT        NOT NULL,
	lobby_name    TEXT        NOT NULL,
	winner_id     TEXT        NOT NULL,
	winner_name   TEXT        NOT NULL,
	rounds_played INTEGER     NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS fraud_game_standings (
	game_id     BIGINT  NOT NULL REFERENCES fraud_games (id) ON DELETE CASCADE,
	player_id   TEXT    NOT NULL,
	player_name TEXT    NOT NULL,
	points      INTEGER NOT NULL,
	place       INTEGER NOT NULL,
	PRIMARY KEY (game_id, player_id)
);
CREATE TABLE IF NOT EXISTS fraud_actions (
	id              BIGSERIAL PRIMARY KEY,
	lobby_id        TEXT        NOT NULL,
	round_id        TEXT        NOT NULL DEFAULT '',
	action_index    INTEGER     NOT NULL,
	actor_player_id TEXT        NOT NULL DEFAULT '',
	action_type     TEXT        NOT NULL,
	action_payload  JSONB,
	recorded_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS fraud_actions_lobby_idx ON fraud_actions (lobby_id, action_index);`

// Store persists finished games and the lobby action history.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// RecordGame stores the game row and its final standings in one transaction.
func (s *Store) RecordGame(ctx context.Context, rec models.GameRecord) error {
	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		insertGame := `
			INSERT INTO fraud_games (lobby_id, lobby_name, winner_id, winner_name, rounds_played, started_at, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`
		var gameID int64
		if e := tx.QueryRow(ctx, insertGame,
			rec.LobbyID, rec.LobbyName, rec.WinnerID, rec.WinnerName,
			rec.RoundsPlayed, rec.StartedAt, rec.FinishedAt,
		).Scan(&gameID); e != nil {
			return e
		}

		for i, row := range rec.Standings {
			q := `
				INSERT INTO fraud_game_standings (game_id, player_id, player_name, points, place)
				VALUES ($1, $2, $3, $4, $5)
			`
			if _, e := tx.Exec(ctx, q, gameID, row.PlayerID, row.Name, row.Points, i+1); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx insert game result: %w", err)
	}
	return nil
}
