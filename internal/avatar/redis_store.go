// internal/avatar/redis_store.go
package avatar

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "fraud:avatar:"
	// DefaultTTL is how long an avatar is kept after its last upload.
	DefaultTTL = 30 * 24 * time.Hour
)

// RedisStore keeps avatars in Redis hashes keyed by player id.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore uses DefaultTTL when ttl is not positive.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func key(playerID string) string { return keyPrefix + playerID }

func (s *RedisStore) Put(ctx context.Context, playerID string, img Image) error {
	if img.UpdatedAt.IsZero() {
		img.UpdatedAt = time.Now()
	}
	k := key(playerID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, map[string]interface{}{
			"type":    img.ContentType,
			"data":    img.Data,
			"updated": img.UpdatedAt.UnixMilli(),
		})
		pipe.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store avatar for %s: %w", playerID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, playerID string) (Image, error) {
	vals, err := s.rdb.HGetAll(ctx, key(playerID)).Result()
	if err != nil {
		return Image{}, fmt.Errorf("failed to load avatar for %s: %w", playerID, err)
	}
	if len(vals) == 0 || vals["data"] == "" {
		return Image{}, ErrNotFound
	}
	img := Image{ContentType: vals["type"], Data: []byte(vals["data"])}
	if ms, err := strconv.ParseInt(vals["updated"], 10, 64); err == nil {
		img.UpdatedAt = time.UnixMilli(ms)
	}
	return img, nil
}

func (s *RedisStore) Has(ctx context.Context, playerID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key(playerID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check avatar for %s: %w", playerID, err)
	}
	return n > 0, nil
}
