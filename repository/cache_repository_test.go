package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	_, ok := cache.Get(ctx, "missing")
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", `{"mean_loss":1}`))
	val, ok := cache.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, `{"mean_loss":1}`, val)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cache := NewRedisCache(mr.Addr(), time.Hour)
	defer cache.Close()
	require.NoError(t, cache.Ping(ctx))

	_, ok := cache.Get(ctx, "abc")
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "abc", "payload"))
	val, ok := cache.Get(ctx, "abc")
	assert.True(t, ok)
	assert.Equal(t, "payload", val)

	// las claves llevan prefijo y expiran
	assert.True(t, mr.Exists(redisKeyPrefix+"abc"))
	mr.FastForward(2 * time.Hour)
	_, ok = cache.Get(ctx, "abc")
	assert.False(t, ok)
}

func TestRedisCache_ServerDown(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cache := NewRedisCache(mr.Addr(), 0)
	defer cache.Close()
	mr.Close()

	_, ok := cache.Get(ctx, "abc")
	assert.False(t, ok)
	assert.Error(t, cache.Set(ctx, "abc", "payload"))
}
