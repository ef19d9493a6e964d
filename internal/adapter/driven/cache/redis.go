// Package cache provides a Redis-backed implementation of port.Cache used for
// the rule cache, device binding cache, tenant-context cache, and the
// cross-process cache invalidation bus.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "platform:cache:"

// Cache provides Redis-backed caching and pub/sub invalidation.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a new Redis-backed cache, verifying connectivity with a ping.
func New(redisURL string, logger *slog.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Cache{client: client, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Get retrieves a cached value. Returns domain.ErrCacheUnavailable wrapping
// redis.Nil is deliberately avoided here: a miss is not an error condition
// for callers, so they check for an empty string plus a nil error.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores a value with the given TTL. A zero ttl means no expiry.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, keyPrefix+key, value, ttl).Err()
}

// GetJSON retrieves and unmarshals a cached JSON value into dest.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if val == "" {
		return nil
	}
	return json.Unmarshal([]byte(val), dest)
}

// SetJSON marshals and stores a JSON value with the given TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, string(data), ttl)
}

// Delete removes a key from the cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, keyPrefix+key).Err()
}

// Publish broadcasts message on channel, used to invalidate rule/device/
// tenant caches held by other API/worker instances.
func (c *Cache) Publish(ctx context.Context, channel, message string) error {
	return c.client.Publish(ctx, keyPrefix+channel, message).Err()
}

// Subscribe returns a channel of messages published to channel, and a close
// function the caller must invoke to release the subscription.
func (c *Cache) Subscribe(ctx context.Context, channel string) (<-chan string, func() error) {
	sub := c.client.Subscribe(ctx, keyPrefix+channel)
	raw := sub.Channel()

	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range raw {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Close
}
