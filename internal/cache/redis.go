// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/fraud/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list (queue) name for lobby action logs.
const DefaultQueueName = "fraud_actions"

const publishTimeout = 2 * time.Second

// Connect opens a Redis client for addr and db and checks it answers.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ActionLog pushes accepted lobby actions onto a Redis list for offline
// analysis. A nil *ActionLog discards everything.
type ActionLog struct {
	rdb    *redis.Client
	queue  string
	logger *logrus.Logger
	wg     sync.WaitGroup
}

// NewActionLog publishes to queue, or DefaultQueueName when queue is empty.
func NewActionLog(rdb *redis.Client, queue string, logger *logrus.Logger) *ActionLog {
	if queue == "" {
		queue = DefaultQueueName
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ActionLog{rdb: rdb, queue: queue, logger: logger}
}

// Record publishes rec in the background. It never blocks the caller.
func (a *ActionLog) Record(rec models.ActionRecord) {
	if a == nil || a.rdb == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := a.Publish(ctx, rec); err != nil {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"lobby":  rec.LobbyID,
				"action": rec.ActionType,
			}).Warn("dropping action log entry")
		}
	}()
}

// Publish serializes rec to JSON and pushes it to the queue.
func (a *ActionLog) Publish(ctx context.Context, rec models.ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := a.rdb.RPush(ctx, a.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", a.queue, err)
	}
	return nil
}

// Wait blocks until every background publish has finished.
func (a *ActionLog) Wait() {
	if a == nil {
		return
	}
	a.wg.Wait()
}
