package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counts struct {
	Total    int `json:"total"`
	Resolved int `json:"resolved"`
}

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *StatsCache) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, New(rdb, 30*time.Second)
}

func TestGetSet(t *testing.T) {
	mr, c := setupTestCache(t)
	ctx := context.Background()

	var got counts
	assert.False(t, c.Get(ctx, "dashboard", &got))

	c.Set(ctx, "dashboard", counts{Total: 7, Resolved: 2})
	require.True(t, c.Get(ctx, "dashboard", &got))
	assert.Equal(t, counts{Total: 7, Resolved: 2}, got)

	ttl := mr.TTL(keyPrefix + "dashboard")
	assert.Equal(t, 30*time.Second, ttl)

	mr.FastForward(31 * time.Second)
	assert.False(t, c.Get(ctx, "dashboard", &got))
}

func TestInvalidate(t *testing.T) {
	mr, c := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("unrelated", "keep"))
	c.Set(ctx, "dashboard", counts{Total: 1})
	c.Set(ctx, "status:v1", counts{Total: 2})

	c.Invalidate(ctx)

	var got counts
	assert.False(t, c.Get(ctx, "dashboard", &got))
	assert.False(t, c.Get(ctx, "status:v1", &got))
	assert.True(t, mr.Exists("unrelated"))
}

func TestCorruptEntryIsMiss(t *testing.T) {
	mr, c := setupTestCache(t)
	require.NoError(t, mr.Set(keyPrefix+"dashboard", "{oops"))

	var got counts
	assert.False(t, c.Get(context.Background(), "dashboard", &got))
}

func TestNilCache(t *testing.T) {
	var c *StatsCache
	ctx := context.Background()
	var got counts
	assert.False(t, c.Get(ctx, "dashboard", &got))
	c.Set(ctx, "dashboard", counts{})
	c.Invalidate(ctx)
}
