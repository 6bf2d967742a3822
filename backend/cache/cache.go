// Package cache keeps short-lived copies of dashboard statistics in Redis.
// A nil *StatsCache is valid and caches nothing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cleanstreet/backend/metrics"

	"github.com/apex/log"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cleanstreet:stats:"

type StatsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect opens a Redis client and checks it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func New(rdb *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{rdb: rdb, ttl: ttl}
}

// Get decodes the cached value for key into v and reports whether it was found.
func (c *StatsCache) Get(ctx context.Context, key string, v any) bool {
	if c == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.StatsCacheTotal.WithLabelValues("miss").Inc()
		return false
	}
	if err == nil {
		err = json.Unmarshal(raw, v)
	}
	if err != nil {
		metrics.StatsCacheTotal.WithLabelValues("error").Inc()
		log.Warnf("stats cache get %s: %v", key, err)
		return false
	}
	metrics.StatsCacheTotal.WithLabelValues("hit").Inc()
	return true
}

func (c *StatsCache) Set(ctx context.Context, key string, v any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err == nil {
		err = c.rdb.Set(ctx, keyPrefix+key, raw, c.ttl).Err()
	}
	if err != nil {
		log.Warnf("stats cache set %s: %v", key, err)
	}
}

// Invalidate drops every cached statistic. Called after any write that
// changes counts.
func (c *StatsCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Warnf("stats cache scan: %v", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Warnf("stats cache invalidate: %v", err)
	}
}
