package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const contextCacheTTL = 24 * time.Hour

// ContextCache keeps the most recently persisted context snapshot per
// conversation in Redis so a new turn can skip the history query on the
// hot path. Write-through on save; misses fall back to the store. Each
// entry carries the persisted turn's updatedAt so readers can compare the
// cached snapshot against store history and take the fresher one.
type ContextCache struct {
	redis  *redis.Client
	tracer trace.Tracer
}

type cachedContext struct {
	UpdatedAt time.Time      `json:"updatedAt"`
	Context   map[string]any `json:"context"`
}

// NewContextCache builds a cache around the provided Redis client.
func NewContextCache(client *redis.Client, tracer trace.Tracer) *ContextCache {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("argus.internal.conversation.contextcache")
	}
	return &ContextCache{redis: client, tracer: tracer}
}

// Save stores the context snapshot for conversationID, stamped with the
// persisted turn's updatedAt.
func (c *ContextCache) Save(ctx context.Context, conversationID uuid.UUID, snapshot map[string]any, updatedAt time.Time) error {
	ctx, span := c.tracer.Start(ctx, "conversation.cache_context")
	defer span.End()

	data, err := json.Marshal(cachedContext{UpdatedAt: updatedAt, Context: snapshot})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal context: %w", err)
	}
	if err := c.redis.Set(ctx, contextKey(conversationID), data, contextCacheTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to cache context: %w", err)
	}
	return nil
}

// Load returns the cached context snapshot with its updatedAt stamp, or
// (nil, zero, false, nil) on miss.
func (c *ContextCache) Load(ctx context.Context, conversationID uuid.UUID) (map[string]any, time.Time, bool, error) {
	ctx, span := c.tracer.Start(ctx, "conversation.load_cached_context")
	defer span.End()

	data, err := c.redis.Get(ctx, contextKey(conversationID)).Bytes()
	if err == redis.Nil {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, time.Time{}, false, fmt.Errorf("conversation: failed to load cached context: %w", err)
	}

	var entry cachedContext
	if err := json.Unmarshal(data, &entry); err != nil {
		span.RecordError(err)
		return nil, time.Time{}, false, fmt.Errorf("conversation: failed to decode cached context: %w", err)
	}
	return entry.Context, entry.UpdatedAt, true, nil
}

func contextKey(conversationID uuid.UUID) string {
	return fmt.Sprintf("conversation-context:%s", conversationID)
}
