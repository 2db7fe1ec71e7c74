// internal/cache/redis_test.go
package cache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jason-s-yu/fraud/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()

	rdb, err := Connect(context.Background(), addr, 0)
	require.NoError(t, err)
	defer rdb.Close()

	s.Close()
	_, err = Connect(context.Background(), addr, 0)
	assert.Error(t, err)
}

func TestActionLogRecord(t *testing.T) {
	s := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), s.Addr(), 0)
	require.NoError(t, err)
	defer rdb.Close()

	log := NewActionLog(rdb, "", nil)
	for i := 1; i <= 3; i++ {
		log.Record(models.ActionRecord{
			LobbyID:     "ABCDEF",
			ActionIndex: i,
			ActionType:  "vote_submit",
		})
	}
	log.Wait()

	items, err := s.List(DefaultQueueName)
	require.NoError(t, err)
	require.Len(t, items, 3)

	seen := map[int]bool{}
	for _, item := range items {
		var rec models.ActionRecord
		require.NoError(t, json.Unmarshal([]byte(item), &rec))
		assert.Equal(t, "ABCDEF", rec.LobbyID)
		assert.Equal(t, "vote_submit", rec.ActionType)
		seen[rec.ActionIndex] = true
	}
	assert.Len(t, seen, 3)
}

func TestActionLogPublishUsesQueue(t *testing.T) {
	s := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), s.Addr(), 0)
	require.NoError(t, err)
	defer rdb.Close()

	log := NewActionLog(rdb, "custom_queue", nil)
	require.NoError(t, log.Publish(context.Background(), models.ActionRecord{LobbyID: "ABCDEF", ActionType: "chat_send"}))

	items, err := s.List("custom_queue")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.False(t, s.Exists(DefaultQueueName))
}

func TestNilActionLogDiscards(t *testing.T) {
	var log *ActionLog
	assert.NotPanics(t, func() {
		log.Record(models.ActionRecord{LobbyID: "ABCDEF"})
		log.Wait()
	})
	assert.NotPanics(t, func() {
		NewActionLog(nil, "", nil).Record(models.ActionRecord{LobbyID: "ABCDEF"})
	})
}
