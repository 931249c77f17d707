package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uxerra/studio-api/internal/config"
	"github.com/uxerra/studio-api/internal/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
		DialTimeout:  time.Second,
		TimeoutRedis: time.Second,
	}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestSetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	periodEnd := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	expected := models.Subscription{
		ID: "row-1", UserID: "user-1", Status: models.SubscriptionActive,
		Plan: models.PlanPro, CurrentPeriodEnd: &periodEnd,
	}
	require.NoError(t, cache.Set(ctx, SubscriptionKey("user-1"), expected, time.Minute))

	var actual models.Subscription
	found, err := cache.Get(ctx, SubscriptionKey("user-1"), &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected.Status, actual.Status)
	assert.True(t, periodEnd.Equal(*actual.CurrentPeriodEnd))
}

func TestGetNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out models.Subscription
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExpiration(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, DashboardKey, map[string]int{"users": 3}, DashboardTTL))
	mr.FastForward(DashboardTTL + time.Second)

	var out map[string]int
	found, err := cache.Get(ctx, DashboardKey, &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", "value", time.Minute))
	require.NoError(t, cache.Set(ctx, "b", "value", time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "a", "b"))

	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
}

func TestGetInvalidJSON(t *testing.T) {
	cache, mr := setupTestCache(t)
	require.NoError(t, mr.Set("bad", "not-json"))

	var out models.Subscription
	found, err := cache.Get(context.Background(), "bad", &out)
	assert.False(t, found)
	assert.Error(t, err)
}

func TestNilCacheIsDisabled(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	found, err := cache.Get(ctx, "key", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Set(ctx, "key", 1, time.Minute))
	assert.NoError(t, cache.Invalidate(ctx, "key"))
	assert.Error(t, cache.Ping(ctx))
}

func TestInitServerInvalidAddr(t *testing.T) {
	cfg := config.RedisConnection{
		AddressRedis: "127.0.0.1:9999",
		DialTimeout:  100 * time.Millisecond,
	}

	cache, err := InitServer(context.Background(), cfg)
	assert.Nil(t, cache)
	assert.Error(t, err)
}
