// internal/historian/historian.go

// Package historian drains the lobby action log from its Redis queue and
// persists it to PostgreSQL in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/fraud/internal/cache"
	"github.com/jason-s-yu/fraud/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBatchSize  = 20
	DefaultFlushDelay = 500 * time.Millisecond
	DefaultPopTimeout = 3 * time.Second

	finalFlushTimeout = 5 * time.Second
)

// Sink stores a batch of actions.
type Sink interface {
	InsertActions(ctx context.Context, recs []models.ActionRecord) error
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	PopTimeout time.Duration
	Logger     *logrus.Logger
}

// Service pops action records with BLPOP and flushes them to the sink when
// the batch is full, when FlushDelay has passed since the last flush, and on
// shutdown.
type Service struct {
	rdb        *redis.Client
	sink       Sink
	queue      string
	batchSize  int
	flushDelay time.Duration
	popTimeout time.Duration
	logger     *logrus.Logger

	batchMu   sync.Mutex
	batch     []models.ActionRecord
	lastFlush time.Time
}

func New(rdb *redis.Client, sink Sink, opts Options) *Service {
	s := &Service{
		rdb:        rdb,
		sink:       sink,
		queue:      opts.Queue,
		batchSize:  opts.BatchSize,
		flushDelay: opts.FlushDelay,
		popTimeout: opts.PopTimeout,
		logger:     opts.Logger,
	}
	if s.queue == "" {
		s.queue = cache.DefaultQueueName
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.flushDelay <= 0 {
		s.flushDelay = DefaultFlushDelay
	}
	if s.popTimeout <= 0 {
		s.popTimeout = DefaultPopTimeout
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	s.batch = make([]models.ActionRecord, 0, s.batchSize)
	return s
}

// Run consumes the queue until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	s.logger.WithField("queue", s.queue).Info("historian started")
	s.lastFlush = time.Now()

	for {
		if ctx.Err() != nil {
			flushCtx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
			s.Flush(flushCtx)
			cancel()
			s.logger.Info("historian stopped")
			return nil
		}

		res, err := s.rdb.BLPop(ctx, s.popTimeout, s.queue).Result()
		switch {
		case errors.Is(err, redis.Nil):
			// idle, fall through to the time based flush
		case err != nil:
			if ctx.Err() == nil {
				s.logger.WithError(err).Warn("BLPOP failed")
				time.Sleep(s.flushDelay)
			}
			continue
		case len(res) == 2:
			// res[0] is the queue name and res[1] the payload.
			var rec models.ActionRecord
			if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
				s.logger.WithError(err).Warn("skipping invalid action record")
				break
			}
			if s.append(rec) {
				s.Flush(ctx)
				continue
			}
		}

		if time.Since(s.lastFlush) >= s.flushDelay {
			s.Flush(ctx)
		}
	}
}

// append adds rec to the batch and reports whether the batch is full.
func (s *Service) append(rec models.ActionRecord) bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, rec)
	return len(s.batch) >= s.batchSize
}

// Flush writes the pending batch. A failed batch is logged and dropped.
func (s *Service) Flush(ctx context.Context) int {
	s.batchMu.Lock()
	pending := make([]models.ActionRecord, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.lastFlush = time.Now()
	s.batchMu.Unlock()

	if len(pending) == 0 {
		return 0
	}
	if err := s.sink.InsertActions(ctx, pending); err != nil {
		s.logger.WithError(err).WithField("count", len(pending)).Error("failed to flush actions")
		return 0
	}
	s.logger.WithField("count", len(pending)).Debug("flushed actions")
	return len(pending)
}
