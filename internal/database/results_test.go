// internal/database/results_test.go
package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/fraud/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	id  int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.id
	return nil
}

// fakeTx records statements. Methods it does not override panic if called.
type fakeTx struct {
	pgx.Tx
	statements []string
	args       [][]any
	execErr    error
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.statements = append(tx.statements, sql)
	tx.args = append(tx.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), tx.execErr
}

func (tx *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	tx.statements = append(tx.statements, sql)
	tx.args = append(tx.args, args)
	return fakeRow{id: 7}
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if tx.committed {
		return pgx.ErrTxClosed
	}
	tx.rolledBack = true
	return nil
}

type fakeDB struct {
	tx    *fakeTx
	execs []string
}

func (db *fakeDB) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return db.tx, nil
}

func (db *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	db.execs = append(db.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func sampleGame() models.GameRecord {
	start := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	return models.GameRecord{
		LobbyID:      "ABCDEF",
		LobbyName:    "Friday",
		WinnerID:     "p2",
		WinnerName:   "Bea",
		RoundsPlayed: 6,
		StartedAt:    start,
		FinishedAt:   start.Add(30 * time.Minute),
		Standings: []models.LeaderboardEntry{
			{PlayerID: "p2", Name: "Bea", Points: 10},
			{PlayerID: "p1", Name: "Al", Points: 7},
		},
	}
}

func TestRecordGame(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	store := NewStore(db)

	require.NoError(t, store.RecordGame(context.Background(), sampleGame()))
	assert.True(t, db.tx.committed)
	assert.False(t, db.tx.rolledBack)

	require.Len(t, db.tx.statements, 3)
	assert.Contains(t, db.tx.statements[0], "INSERT INTO fraud_games")
	assert.Equal(t, "ABCDEF", db.tx.args[0][0])
	assert.Equal(t, 6, db.tx.args[0][4])

	assert.Contains(t, db.tx.statements[1], "INSERT INTO fraud_game_standings")
	assert.Equal(t, []any{int64(7), "p2", "Bea", 10, 1}, db.tx.args[1])
	assert.Equal(t, []any{int64(7), "p1", "Al", 7, 2}, db.tx.args[2])
}

func TestRecordGameRollsBack(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{execErr: errors.New("disk full")}}
	store := NewStore(db)

	err := store.RecordGame(context.Background(), sampleGame())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, db.tx.committed)
	assert.True(t, db.tx.rolledBack)
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewStore(db).EnsureSchema(context.Background()))
	require.Len(t, db.execs, 1)
	assert.True(t, strings.Contains(db.execs[0], "fraud_game_standings"))
}

func TestInsertActions(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	store := NewStore(db)

	recs := []models.ActionRecord{
		{LobbyID: "ABCDEF", ActionIndex: 1, ActionType: "lobby_create", Timestamp: 1_700_000_000_000},
		{LobbyID: "ABCDEF", RoundID: "R1", ActionIndex: 2, ActorPlayerID: "p1", ActionType: "clue_submit",
			ActionPayload: map[string]interface{}{"length": 5}, Timestamp: 1_700_000_001_000},
	}
	require.NoError(t, store.InsertActions(context.Background(), recs))
	assert.True(t, db.tx.committed)
	require.Len(t, db.tx.statements, 2)
	assert.Contains(t, db.tx.statements[0], "INSERT INTO fraud_actions")

	first := db.tx.args[0]
	assert.Nil(t, first[5], "no payload is stored as NULL")
	assert.Equal(t, time.UnixMilli(1_700_000_000_000).UTC(), first[6])

	second := db.tx.args[1]
	assert.Equal(t, "p1", second[3])
	assert.JSONEq(t, `{"length":5}`, string(second[5].([]byte)))
}

func TestInsertActionsEmptyBatch(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewStore(db).InsertActions(context.Background(), nil))
}
