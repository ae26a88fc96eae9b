package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/exam-proctor-api/pkg/errors"
)

// RosterKey builds the cache key for one proctor's duty roster.
func RosterKey(proctorID string) string {
	return "roster:" + proctorID
}

// CacheRepository provides Redis helpers for duty roster caching. A nil
// client degrades to pass-through so the engine runs without Redis.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

// Get retrieves and unmarshals the cached value into dest.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}

	return nil
}

// Set marshals the provided value and stores it with the given TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// Invalidate drops the cached rosters for the given proctors; called after
// every committed plan or swap.
func (r *CacheRepository) Invalidate(ctx context.Context, proctorIDs ...string) {
	if r.client == nil {
		return
	}
	for _, id := range proctorIDs {
		if id == "" {
			continue
		}
		if err := r.client.Del(ctx, RosterKey(id)).Err(); err != nil {
			r.logger.Warn("failed to invalidate roster cache", zap.String("proctor_id", id), zap.Error(err))
		}
	}
}
