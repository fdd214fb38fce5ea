package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "shop:draft:"

// cmdable is the subset of redis commands the store uses.
type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	GetDel(context.Context, string) *redis.StringCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// RedisStore keeps drafts in Redis with a key TTL, so they survive restarts
// and are shared between server instances.
type RedisStore struct {
	store cmdable
	raw   *redis.Client
	ttl   time.Duration
}

// NewRedisStore parses url, connects and verifies connectivity.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{store: raw, raw: raw, ttl: ttl}, nil
}

func key(token string) string { return keyPrefix + token }

func (s *RedisStore) Put(ctx context.Context, d Draft) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.store.Set(ctx, key(d.Token), string(b), s.ttl).Err(); err != nil {
		return fmt.Errorf("store draft: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (Draft, error) {
	return decode(s.store.Get(ctx, key(token)).Result())
}

func (s *RedisStore) Take(ctx context.Context, token string) (Draft, error) {
	return decode(s.store.GetDel(ctx, key(token)).Result())
}

func decode(raw string, err error) (Draft, error) {
	if errors.Is(err, redis.Nil) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("load draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	return d, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.store.Del(ctx, key(token)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// Ping checks connectivity for health endpoints.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
}
