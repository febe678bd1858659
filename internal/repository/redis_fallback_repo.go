package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisFallbackPrefix = "todohabit:fallback:"

// RedisFallbackStore keeps fallback values in Redis, for deployments without a local disk.
type RedisFallbackStore struct {
	rdb    redis.Cmdable
	logger *zap.Logger
}

func NewRedisFallbackStore(rdb redis.Cmdable, logger *zap.Logger) *RedisFallbackStore {
	return &RedisFallbackStore{rdb: rdb, logger: logger}
}

func (s *RedisFallbackStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.rdb.Get(ctx, redisFallbackPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("fallback get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisFallbackStore) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, redisFallbackPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("fallback set %s: %w", key, err)
	}
	s.logger.Debug("Fallback value stored", zap.String("key", key), zap.Int("bytes", len(value)))
	return nil
}
