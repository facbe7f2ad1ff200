package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseHeld indicates another turn currently holds the conversation.
var ErrLeaseHeld = errors.New("conversation: lease already held")

// releaseScript deletes the lease only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// LeaseManager serializes concurrent turns for the same conversation with a
// Redis lease held from turn start through persistence. Without it, two
// simultaneous turns read the same context snapshot and the later write
// wins, dropping the earlier turn's context updates.
type LeaseManager struct {
	redis         *redis.Client
	ttl           time.Duration
	acquireWait   time.Duration
	retryInterval time.Duration
}

// LeaseOption customizes the lease manager.
type LeaseOption func(*LeaseManager)

// WithAcquireWait bounds how long Acquire polls for a held lease before
// giving up with ErrLeaseHeld. Zero means a single attempt.
func WithAcquireWait(d time.Duration) LeaseOption {
	return func(m *LeaseManager) {
		if d >= 0 {
			m.acquireWait = d
		}
	}
}

// Lease is a held per-conversation lock.
type Lease struct {
	manager *LeaseManager
	key     string
	token   string
}

// NewLeaseManager builds a lease manager with the given hold TTL. By
// default a contended Acquire polls for up to two seconds, so a second
// message from the same user serializes behind the turn in flight instead
// of surfacing an error.
func NewLeaseManager(client *redis.Client, ttl time.Duration, opts ...LeaseOption) *LeaseManager {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	m := &LeaseManager{
		redis:         client,
		ttl:           ttl,
		acquireWait:   2 * time.Second,
		retryInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire takes the lease for conversationID, polling a held lease until
// the acquire wait is exhausted or ctx is done. Fails with ErrLeaseHeld
// when the holder does not release in time.
func (m *LeaseManager) Acquire(ctx context.Context, conversationID uuid.UUID) (*Lease, error) {
	key := leaseKey(conversationID)
	token := uuid.NewString()
	deadline := time.Now().Add(m.acquireWait)

	for {
		ok, err := m.redis.SetNX(ctx, key, token, m.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("conversation: failed to acquire lease: %w", err)
		}
		if ok {
			return &Lease{manager: m, key: key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLeaseHeld
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.retryInterval):
		}
	}
}

// Release frees the lease if this holder still owns it. Safe to call after
// TTL expiry; an expired lease releases as a no-op.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.manager == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.manager.redis, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("conversation: failed to release lease: %w", err)
	}
	return nil
}

func leaseKey(conversationID uuid.UUID) string {
	return fmt.Sprintf("conversation-lease:%s", conversationID)
}
