// Package dedup remembers which webhook events have already been accepted.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix namespaces event keys in Redis.
	KeyPrefix = "webhook:event:"
	// DefaultTTL covers the provider's redelivery window.
	DefaultTTL = 72 * time.Hour
)

// Deduper records event ids. MarkSeen reports true the first time an id is
// recorded and false for every later call within the TTL.
type Deduper interface {
	MarkSeen(ctx context.Context, eventID string) (bool, error)
}

// Redis records event ids with SETNX.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps client. A non-positive ttl uses DefaultTTL.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// NewRedisClient builds a client from a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("dedup: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("dedup: ping redis: %w", err)
	}
	return client, nil
}

func (r *Redis) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, KeyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: mark %s: %w", eventID, err)
	}
	return ok, nil
}

// Noop treats every event as new.
type Noop struct{}

func (Noop) MarkSeen(context.Context, string) (bool, error) {
	return true, nil
}
