package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local development.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // userID -> conversation
	exchanges     map[uuid.UUID][]ExchangeRecord

	// now is swappable so tests can control updatedAt ordering.
	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		exchanges:     make(map[uuid.UUID][]ExchangeRecord),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) FindConversation(ctx context.Context, userID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[userID]
	if !ok {
		return nil, nil
	}
	cp := *conv
	return &cp, nil
}

func (s *MemoryStore) CreateConversation(ctx context.Context, userID string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	conv := &Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[userID] = conv
	cp := *conv
	return &cp, nil
}

func (s *MemoryStore) ListRecentExchanges(ctx context.Context, conversationID uuid.UUID, limit int) ([]ExchangeRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := append([]ExchangeRecord(nil), s.exchanges[conversationID]...)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].UpdatedAt.After(recs[j].UpdatedAt)
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *MemoryStore) SaveExchange(ctx context.Context, rec *ExchangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.exchanges[rec.ConversationID] = append(s.exchanges[rec.ConversationID], *rec)
	return nil
}

// InsertExchange backdates a record into the store, preserving the
// timestamps it carries. Test helper for out-of-order history fixtures.
func (s *MemoryStore) InsertExchange(rec ExchangeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	s.exchanges[rec.ConversationID] = append(s.exchanges[rec.ConversationID], rec)
}
