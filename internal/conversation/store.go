package conversation

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// DefaultHistoryLimit bounds how many prior turns a new turn loads.
const DefaultHistoryLimit = 10

// ErrConversationNotFound is returned by stores that cannot distinguish an
// empty result internally; FindConversation itself reports absence as
// (nil, nil).
var ErrConversationNotFound = errors.New("conversation: not found")

// Store persists conversations and their exchanges.
type Store interface {
	// FindConversation returns the conversation for userID, or (nil, nil)
	// when the user has never talked to the assistant.
	FindConversation(ctx context.Context, userID string) (*Conversation, error)

	// CreateConversation starts a new conversation for userID.
	CreateConversation(ctx context.Context, userID string) (*Conversation, error)

	// ListRecentExchanges returns up to limit prior turns ordered by
	// most-recent-update first.
	ListRecentExchanges(ctx context.Context, conversationID uuid.UUID, limit int) ([]ExchangeRecord, error)

	// SaveExchange persists a finished turn and stamps its timestamps.
	SaveExchange(ctx context.Context, rec *ExchangeRecord) error
}
