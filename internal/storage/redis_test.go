package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	cache := NewRedisCacheFromClient(client)
	t.Cleanup(func() { _ = cache.Close() })

	return cache, mr
}

func TestRedisCache_SetGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := testContext(t)

	t.Run("missing key is a miss", func(t *testing.T) {
		data, found, err := cache.Get(ctx, "portfolio:none")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, data)
	})

	t.Run("stored key round trips", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "portfolio:0xabc", []byte(`{"a":1}`), time.Minute))

		data, found, err := cache.Get(ctx, "portfolio:0xabc")
		require.NoError(t, err)
		assert.True(t, found)
		assert.JSONEq(t, `{"a":1}`, string(data))

		ttl, err := cache.TTL(ctx, "portfolio:0xabc")
		require.NoError(t, err)
		assert.Equal(t, time.Minute, ttl)
	})

	t.Run("expired key is a miss", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "portfolio:short", []byte("x"), time.Second))
		mr.FastForward(2 * time.Second)

		_, found, err := cache.Get(ctx, "portfolio:short")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestRedisCache_DelPrefix(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := testContext(t)

	for _, k := range []string{"opportunities:a:low", "opportunities:b:medium", "portfolio:a"} {
		require.NoError(t, cache.Set(ctx, k, []byte("1"), time.Hour))
	}

	require.NoError(t, cache.DelPrefix(ctx, "opportunities:"))

	assert.False(t, mr.Exists("opportunities:a:low"))
	assert.False(t, mr.Exists("opportunities:b:medium"))
	assert.True(t, mr.Exists("portfolio:a"))
}

func TestRedisCache_ServerDown(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := testContext(t)
	mr.Close()

	_, found, err := cache.Get(ctx, "portfolio:a")
	assert.Error(t, err)
	assert.False(t, found)
}
