// internal/adapter/storage/redis_store.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pulse/internal/domain/signal"
)

const redisKeyPrefix = "pulse:snapshot:"

// KV is the subset of *redis.Client used by the Redis store
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisSnapshotStore keeps each snapshot as a JSON string value
type RedisSnapshotStore struct {
	kv  KV
	ttl time.Duration
}

// NewRedisSnapshotStore creates a store. A zero ttl keeps snapshots forever.
func NewRedisSnapshotStore(kv KV, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{kv: kv, ttl: ttl}
}

// Get returns the snapshot stored under key, or nil if there is none
func (s *RedisSnapshotStore) Get(ctx context.Context, key string) (*signal.AnalysisSnapshot, error) {
	data, err := s.kv.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get snapshot: %w", err)
	}
	return decodeSnapshot(key, data)
}

// Put overwrites the snapshot for key
func (s *RedisSnapshotStore) Put(ctx context.Context, key string, snap signal.AnalysisSnapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, redisKeyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}
	return nil
}
