// Package idempotency stores the outcome of write requests so a retried
// request with the same key replays the first response instead of running
// twice.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idempotency:"

// Record is what a key resolves to. A pending record means the first request
// is still in flight.
type Record struct {
	Pending     bool   `json:"pending"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Store persists idempotency records.
type Store interface {
	// Claim marks key as in flight. It returns false when the key already
	// exists.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Load returns the record for key, or nil when there is none.
	Load(ctx context.Context, key string) (*Record, error)
	// Save replaces the pending marker with the finished response.
	Save(ctx context.Context, key string, rec Record, ttl time.Duration) error
	// Release forgets key so the request may be retried.
	Release(ctx context.Context, key string) error
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisStore keeps records in Redis with a TTL.
type RedisStore struct {
	client redis.Cmdable
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns nil if client is nil.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	if client == nil {
		return nil
	}
	return &RedisStore{client: client}
}

func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	val, err := json.Marshal(Record{Pending: true})
	if err != nil {
		return false, err
	}

	ok, err := s.client.SetNX(ctx, keyPrefix+key, val, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (*Record, error) {
	val, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	rec.Pending = false
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, keyPrefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}
