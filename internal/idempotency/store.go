// Package idempotency replays the first response recorded for a client-supplied
// Idempotency-Key so retried mutating requests do not apply twice.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Record is a completed response.
type Record struct {
	Status      int         `json:"status"`
	Header      http.Header `json:"header"`
	Body        []byte      `json:"body"`
	Fingerprint string      `json:"fingerprint"`
}

// Store keeps completed records and short-lived in-flight claims.
type Store interface {
	// Get returns the record for key, or nil when none is stored.
	Get(ctx context.Context, key string) (*Record, error)
	// Claim marks key in flight. It reports false when another request holds the claim.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Save(ctx context.Context, key string, rec *Record, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

type RedisStore struct {
	client *redis.Client
	log    *zap.Logger
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(addr, password string, db int, log *zap.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis connected successfully", zap.String("addr", addr))
	return &RedisStore{client: rdb, log: log}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func recordKey(key string) string { return "idem:" + key }
func claimKey(key string) string  { return "idem:claim:" + key }

func (r *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	data, err := r.client.Get(ctx, recordKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt idempotency record %s: %w", key, err)
	}
	return &rec, nil
}

func (r *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, claimKey(key), "1", ttl).Result()
}

func (r *RedisStore) Save(ctx context.Context, key string, rec *Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, recordKey(key), data, ttl).Err()
}

func (r *RedisStore) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, claimKey(key)).Err()
}
