// Package cache stores analysis results keyed by replay content.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/redis/go-redis/v9"

	"sc2-replay-analyzer/internal/ipc"
)

const keyPrefix = "sc2ra:result:"

// Cache looks up and stores results. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (*ipc.Result, bool, error)
	Set(ctx context.Context, key string, res *ipc.Result) error
}

// Key derives the cache key of a replay analyzed with the given settings.
func Key(data []byte, fingerprint string) string {
	d := xxhash.New()
	_, _ = d.Write(data)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(fingerprint)
	return keyPrefix + strconv.FormatUint(d.Sum64(), 16)
}

// RedisCache implements Cache on a Redis server.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects lazily to addr. A zero ttl keeps entries forever.
func NewRedisCache(addr string, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
	})
	return &RedisCache{client: client, ttl: ttl}
}

// Ping checks that the server answers.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*ipc.Result, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	res, err := decodeResult(data)
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, res *ipc.Result) error {
	data, err := encodeResult(res)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// encodeResult stores results as snappy-compressed JSON. Time series make
// the documents large and repetitive.
func encodeResult(res *ipc.Result) ([]byte, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return snappy.Encode(nil, data), nil
}

func decodeResult(data []byte) (*ipc.Result, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress cached result: %w", err)
	}
	var res ipc.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return &res, nil
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
