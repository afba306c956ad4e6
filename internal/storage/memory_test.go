package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGet(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	ok, err := cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = cache.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))

	ok, err = cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	val, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestMemoryCacheHGetAllReturnsCopy(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, cache.HSet(ctx, "h", "f1", "v1"))

	fields, err := cache.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"f1": "v1"}, fields)

	// 修改返回值不影响缓存内容
	fields["f1"] = "dirty"
	again, err := cache.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, "v1", again["f1"])
}

func TestMemoryCacheHGetAllMissingKey(t *testing.T) {
	cache := NewMemoryCache()
	fields, err := cache.HGetAll(context.Background(), "absent")
	require.NoError(t, err)
	assert.Empty(t, fields)
}
