package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextCacheRoundTrip(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewContextCache(client, nil)
	convID := uuid.New()
	savedAt := time.Now().UTC().Truncate(time.Millisecond)
	ctx := context.Background()

	snapshot := map[string]any{
		"problemId": "42",
		"followUp":  map[string]any{"askedBy": "problemDetails"},
	}
	require.NoError(t, cache.Save(ctx, convID, snapshot, savedAt))

	got, gotAt, hit, err := cache.Load(ctx, convID)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "42", got["problemId"])
	assert.Equal(t, map[string]any{"askedBy": "problemDetails"}, got["followUp"])
	assert.True(t, gotAt.Equal(savedAt))
}

func TestContextCacheMiss(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewContextCache(client, nil)

	got, gotAt, hit, err := cache.Load(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, got)
	assert.True(t, gotAt.IsZero())
}

func TestContextCacheExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewContextCache(client, nil)
	convID := uuid.New()
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, convID, map[string]any{"problemId": "42"}, time.Now().UTC()))
	mr.FastForward(25 * time.Hour)

	_, _, hit, err := cache.Load(ctx, convID)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestContextCacheOverwrite(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewContextCache(client, nil)
	convID := uuid.New()
	now := time.Now().UTC()
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, convID, map[string]any{"problemId": "42"}, now))
	require.NoError(t, cache.Save(ctx, convID, map[string]any{"problemId": "43"}, now.Add(time.Second)))

	got, gotAt, hit, err := cache.Load(ctx, convID)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "43", got["problemId"])
	assert.True(t, gotAt.After(now))
}
