package assistant

import (
	"context"
	"errors"
	"time"

	"github.com/argus-ai/argus/internal/conversation"
	"github.com/argus-ai/argus/pkg/logging"
)

// Engine owns the shared collaborators of every turn: the conversation
// store, the optional per-conversation lease, and the optional context
// snapshot cache. Safe for concurrent use; turns for different
// conversations proceed fully in parallel.
type Engine struct {
	store        conversation.Store
	leases       *conversation.LeaseManager
	cache        *conversation.ContextCache
	historyLimit int
	stepTimeout  time.Duration
	logger       *logging.Logger
}

// EngineOption customizes engine behavior.
type EngineOption func(*Engine)

// WithLeaseManager serializes concurrent turns per conversation. Without
// it, simultaneous turns for one conversation race on the context snapshot
// and the later persist wins.
func WithLeaseManager(m *conversation.LeaseManager) EngineOption {
	return func(e *Engine) { e.leases = m }
}

// WithContextCache enables the Redis read-your-writes context cache.
func WithContextCache(c *conversation.ContextCache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithHistoryLimit overrides how many prior turns a new turn loads.
func WithHistoryLimit(limit int) EngineOption {
	return func(e *Engine) {
		if limit > 0 {
			e.historyLimit = limit
		}
	}
}

// WithStepTimeout bounds each suspending pipeline step. Exceeding it
// surfaces as a retryable TimeoutError, not a process failure.
func WithStepTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.stepTimeout = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine builds an engine around the given store.
func NewEngine(store conversation.Store, opts ...EngineOption) *Engine {
	if store == nil {
		panic("assistant: conversation store cannot be nil")
	}
	e := &Engine{
		store:        store,
		historyLimit: conversation.DefaultHistoryLimit,
		logger:       logging.Default().Component("exchange"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewExchange creates a turn orchestrator for the given user.
func (e *Engine) NewExchange(user User) *Exchange {
	return &Exchange{
		engine:          e,
		user:            user,
		state:           stateCreated,
		flags:           make(map[string]bool),
		templateContext: make(map[string]any),
		raw:             newRawResponse(),
	}
}

// step runs one suspending pipeline operation under the engine's timeout,
// mapping deadline expiry to a retryable TimeoutError.
func (e *Engine) step(ctx context.Context, op string, fn func(context.Context) error) error {
	if e.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()
	}
	err := fn(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}
	return err
}
