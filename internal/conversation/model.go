package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Conversation identifies an ongoing dialogue for one user. Created lazily
// on first contact; never deleted by this engine.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RequestRecord is the inbound half of a turn.
type RequestRecord struct {
	Raw      string         `json:"raw"`
	Analysed map[string]any `json:"analysed,omitempty"`
}

// ResponseRecord is the outbound half of a turn.
type ResponseRecord struct {
	Audible  AudibleResponse `json:"audible"`
	Visual   VisualResponse  `json:"visual"`
	Finished bool            `json:"finished"`
}

// AudibleResponse carries the spoken channel.
type AudibleResponse struct {
	SSML string `json:"ssml,omitempty"`
}

// VisualResponse carries the displayed channels.
type VisualResponse struct {
	Card string `json:"card,omitempty"`
	Text string `json:"text,omitempty"`
}

// ExchangeRecord is one persisted request/response cycle. Written exactly
// once at turn end and never mutated afterwards.
type ExchangeRecord struct {
	ID                  uuid.UUID      `json:"id"`
	ConversationID      uuid.UUID      `json:"conversationId"`
	Source              string         `json:"source"`
	Request             RequestRecord  `json:"request"`
	Response            ResponseRecord `json:"response"`
	ConversationContext map[string]any `json:"conversationContext"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}
