package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLeaseAcquireRelease(t *testing.T) {
	mr, client := newTestRedis(t)
	mgr := NewLeaseManager(client, 30*time.Second, WithAcquireWait(0))
	convID := uuid.New()
	ctx := context.Background()

	lease, err := mgr.Acquire(ctx, convID)
	require.NoError(t, err)
	assert.True(t, mr.Exists("conversation-lease:"+convID.String()))

	// A second worker cannot take the same conversation.
	_, err = mgr.Acquire(ctx, convID)
	assert.ErrorIs(t, err, ErrLeaseHeld)

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists("conversation-lease:"+convID.String()))

	// Released means acquirable again.
	_, err = mgr.Acquire(ctx, convID)
	require.NoError(t, err)
}

func TestLeaseAcquireWaitsForHolder(t *testing.T) {
	_, client := newTestRedis(t)
	mgr := NewLeaseManager(client, 30*time.Second, WithAcquireWait(2*time.Second))
	convID := uuid.New()
	ctx := context.Background()

	first, err := mgr.Acquire(ctx, convID)
	require.NoError(t, err)

	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = first.Release(ctx)
	}()

	// The contended acquire polls until the holder releases instead of
	// failing immediately.
	second, err := mgr.Acquire(ctx, convID)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestLeaseAcquireGivesUpAfterWait(t *testing.T) {
	_, client := newTestRedis(t)
	mgr := NewLeaseManager(client, 30*time.Second, WithAcquireWait(150*time.Millisecond))
	convID := uuid.New()
	ctx := context.Background()

	_, err := mgr.Acquire(ctx, convID)
	require.NoError(t, err)

	start := time.Now()
	_, err = mgr.Acquire(ctx, convID)
	assert.ErrorIs(t, err, ErrLeaseHeld)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestLeaseAcquireStopsOnContextCancel(t *testing.T) {
	_, client := newTestRedis(t)
	mgr := NewLeaseManager(client, 30*time.Second)
	convID := uuid.New()

	_, err := mgr.Acquire(context.Background(), convID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = mgr.Acquire(ctx, convID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLeaseReleaseOnlyOwnToken(t *testing.T) {
	mr, client := newTestRedis(t)
	mgr := NewLeaseManager(client, 30*time.Second)
	convID := uuid.New()
	ctx := context.Background()

	stale, err := mgr.Acquire(ctx, convID)
	require.NoError(t, err)

	// Simulate the lease expiring and another worker taking over.
	mr.Del("conversation-lease:" + convID.String())
	_, err = mgr.Acquire(ctx, convID)
	require.NoError(t, err)

	// The stale holder's release must not evict the new owner.
	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("conversation-lease:"+convID.String()))
}

func TestLeaseReleaseNilSafe(t *testing.T) {
	var lease *Lease
	assert.NoError(t, lease.Release(context.Background()))
}

func TestLeaseExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	mgr := NewLeaseManager(client, time.Second)
	convID := uuid.New()
	ctx := context.Background()

	_, err := mgr.Acquire(ctx, convID)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = mgr.Acquire(ctx, convID)
	assert.NoError(t, err)
}
