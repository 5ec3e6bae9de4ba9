package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) CacheInterface {
	t.Helper()
	_ = godotenv.Load("../../../.env")
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	c, err := NewCache(url, time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.Clear(context.Background()))
	t.Cleanup(func() { c.Disconnect() })
	return c
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	type payload struct {
		Name  string
		Count int
	}
	require.NoError(t, c.Set(ctx, "public:recipes:a", payload{"oats", 3}))
	require.NoError(t, c.Set(ctx, "public:recipes:b", payload{"soup", 1}))
	require.NoError(t, c.Set(ctx, "email:1", true))

	var got payload
	require.NoError(t, c.Get(ctx, "public:recipes:a", &got))
	assert.Equal(t, payload{"oats", 3}, got)

	n, err := c.DeletePrefix(ctx, "public:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, c.Get(ctx, "public:recipes:b", &got), ErrMiss)

	var sent bool
	require.NoError(t, c.Get(ctx, "email:1", &sent))
	assert.True(t, sent)
	require.NoError(t, c.Delete(ctx, "email:1"))
	assert.ErrorIs(t, c.Get(ctx, "email:1", &sent), ErrMiss)
}

func TestNopCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var c CacheInterface = NopCache{}
	require.NoError(t, c.Set(ctx, "k", 1))
	var v int
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrMiss)
}
