// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, newRedisCacheWithClient(client, "rtcrelay:", zerolog.Nop())
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "status:s1", []byte(`{"http_status":200}`), time.Minute)
	assert.True(t, mr.Exists("rtcrelay:status:s1"))

	val, ok := c.Get(ctx, "status:s1")
	require.True(t, ok)
	assert.JSONEq(t, `{"http_status":200}`, string(val))

	_, ok = c.Get(ctx, "status:none")
	assert.False(t, ok)

	st := c.Stats(ctx)
	assert.EqualValues(t, 1, st.Hits)
	assert.EqualValues(t, 1, st.Misses)
	assert.EqualValues(t, 1, st.Sets)
	assert.Equal(t, 1, st.CurrentSize)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "ttl", []byte("v"), 3*time.Second)
	_, ok := c.Get(ctx, "ttl")
	require.True(t, ok)

	mr.FastForward(4 * time.Second)
	_, ok = c.Get(ctx, "ttl")
	assert.False(t, ok)
}

func TestRedisCache_Delete(t *testing.T) {
	_, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	c.Delete(ctx, "k")
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCache_HealthCheck(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, c.HealthCheck(ctx))
	mr.Close()
	assert.Error(t, c.HealthCheck(ctx))
}

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), RedisConfig{Addr: mr.Addr(), KeyPrefix: "x:"}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = NewRedisCache(context.Background(), RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop())
	assert.Error(t, err)
}
