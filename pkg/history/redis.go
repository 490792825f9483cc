package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

const (
	keyPrefix = "history"

	// Threads are conversational state, not durable records.
	threadTTL = 24 * time.Hour

	// WATCH/EXEC conflicts under concurrent writers are transient; a few
	// retries against fresh state are enough.
	maxCASAttempts = 5
)

// envelope is the stored thread record. Version increments on every
// successful write and backs the optimistic concurrency check.
type envelope struct {
	Version  int64            `json:"version"`
	Messages []models.Message `json:"messages"`
}

// RedisStore keeps thread histories in Redis with compare-and-set writes.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.Named("history"),
	}
}

func threadKey(agent, threadID string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, agent, threadID)
}

// Get returns the stored thread, or the placeholder turn for unknown threads.
func (s *RedisStore) Get(ctx context.Context, agent, threadID string) ([]models.Message, error) {
	raw, err := s.client.Get(ctx, threadKey(agent, threadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NoHistoryPlaceholder(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read thread %s: %w", threadID, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("corrupt thread %s: %w", threadID, err)
	}
	if len(env.Messages) == 0 {
		return models.NoHistoryPlaceholder(), nil
	}
	return env.Messages, nil
}

// Set replaces the thread under WATCH so a concurrent overwrite loses the
// race instead of silently clobbering a newer version.
func (s *RedisStore) Set(ctx context.Context, agent, threadID string, messages []models.Message) error {
	key := threadKey(agent, threadID)

	txn := func(tx *redis.Tx) error {
		var version int64
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			// First write for this thread.
		case err != nil:
			return fmt.Errorf("failed to read thread %s: %w", threadID, err)
		default:
			var current envelope
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("corrupt thread %s: %w", threadID, err)
			}
			version = current.Version
		}

		next, err := json.Marshal(envelope{Version: version + 1, Messages: messages})
		if err != nil {
			return fmt.Errorf("failed to encode thread %s: %w", threadID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, threadTTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("history write conflicted, retrying",
				zap.String("agent", agent),
				zap.String("thread_id", threadID),
				zap.Int("attempt", attempt+1))
			continue
		}
		return err
	}

	return fmt.Errorf("failed to write thread %s after %d attempts: %w", threadID, maxCASAttempts, redis.TxFailedErr)
}
