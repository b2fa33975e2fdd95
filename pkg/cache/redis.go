package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/prompteval/prompteval/internal/logger"
)

const redisKeyPrefix = "prompteval:"

// Redis stores entries in a shared Redis instance so cache hits can be
// shared across machines (e.g. CI workers).
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to the Redis URL and verifies the connection.
func NewRedis(url string, ttl time.Duration) (*Redis, error) {
	if url == "" {
		url = "redis://localhost:6379"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Redis{client: client, ttl: ttl}, nil
}

// Get fetches and decodes the entry for key.
func (r *Redis) Get(key string) (*Entry, bool) {
	data, err := r.client.Get(context.Background(), redisKeyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		lg := logger.Get()
		lg.Warn().Str("key", key).Err(err).Msg("dropping corrupt redis cache entry")
		r.client.Del(context.Background(), redisKeyPrefix+key)
		return nil, false
	}
	return &e, true
}

// Set stores the entry with the configured TTL.
func (r *Redis) Set(key string, e *Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := r.client.Set(context.Background(), redisKeyPrefix+key, data, r.ttl).Err(); err != nil {
		lg := logger.Get()
		lg.Warn().Str("key", key).Err(err).Msg("failed to write redis cache entry")
	}
}

// Close closes the Redis connection.
func (r *Redis) Close() error { return r.client.Close() }
