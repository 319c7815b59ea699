package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTrackingKeyPrefix = "tracking:view:"

// TrackingCache holds rendered tracking views in Redis for a short TTL so a
// burst of clients polling the same code costs one store round-trip.
//
// Values are opaque bytes; the service owns the encoding.
type TrackingCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewTrackingCache creates a cache with the given TTL.
func NewTrackingCache(client *redis.Client, ttl time.Duration) *TrackingCache {
	return &TrackingCache{redis: client, ttl: ttl}
}

func trackingKey(code string) string {
	return redisTrackingKeyPrefix + code
}

// Get returns the cached view for code. A miss is (nil, false, nil).
func (c *TrackingCache) Get(ctx context.Context, code string) ([]byte, bool, error) {
	b, err := c.redis.Get(ctx, trackingKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("tracking cache get %s: %w", code, err)
	}
	return b, true, nil
}

// Set stores the view for code until the TTL lapses.
func (c *TrackingCache) Set(ctx context.Context, code string, view []byte) error {
	if err := c.redis.Set(ctx, trackingKey(code), view, c.ttl).Err(); err != nil {
		return fmt.Errorf("tracking cache set %s: %w", code, err)
	}
	return nil
}

// Invalidate drops the cached view for code.
func (c *TrackingCache) Invalidate(ctx context.Context, code string) error {
	if err := c.redis.Del(ctx, trackingKey(code)).Err(); err != nil {
		return fmt.Errorf("tracking cache invalidate %s: %w", code, err)
	}
	return nil
}
