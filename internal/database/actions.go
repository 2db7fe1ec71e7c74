// internal/database/actions.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/fraud/internal/models"
)

// InsertActions writes a batch of action log entries in one transaction.
func (s *Store) InsertActions(ctx context.Context, recs []models.ActionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO fraud_actions (
				lobby_id, round_id, action_index, actor_player_id, action_type, action_payload, recorded_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for _, rec := range recs {
			var payload []byte
			if rec.ActionPayload != nil {
				b, err := json.Marshal(rec.ActionPayload)
				if err != nil {
					return fmt.Errorf("marshal payload of %s: %w", rec.ActionType, err)
				}
				payload = b
			}
			if _, err := tx.Exec(ctx, q,
				rec.LobbyID, rec.RoundID, rec.ActionIndex, rec.ActorPlayerID, rec.ActionType,
				payload, time.UnixMilli(rec.Timestamp).UTC(),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx insert actions: %w", err)
	}
	return nil
}
