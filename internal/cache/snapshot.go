// Package cache is a small Redis-backed read cache for the public queue
// snapshot, the one projection every kiosk and display polls. A nil
// *SnapshotCache is valid and disables caching.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// SnapshotCache stores JSON-encoded snapshots under short TTLs.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration

	hits   prometheus.Counter
	misses prometheus.Counter
	errors prometheus.Counter
}

// New connects a snapshot cache. The TTL is deliberately short; the cache
// only absorbs display polling bursts, not state.
func New(addr, password string, db int, ttl time.Duration) (*SnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &SnapshotCache{
		client: client,
		ttl:    ttl,
		hits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "snapshot_cache_hits_total",
			Help: "Snapshot cache hits",
		}),
		misses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "snapshot_cache_misses_total",
			Help: "Snapshot cache misses",
		}),
		errors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "snapshot_cache_errors_total",
			Help: "Snapshot cache errors",
		}),
	}, nil
}

// Get unmarshals a cached snapshot into dest. The second return is false on
// miss or when the cache is disabled.
func (c *SnapshotCache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.errors.Inc()
		}
		c.misses.Inc()
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.errors.Inc()
		return false
	}
	c.hits.Inc()
	return true
}

// Set stores a snapshot. Failures are counted, not surfaced.
func (c *SnapshotCache) Set(ctx context.Context, key string, v interface{}) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.errors.Inc()
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.errors.Inc()
	}
}

// Close releases the connection.
func (c *SnapshotCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
