package archive

import (
	"time"

	"github.com/google/uuid"
)

// ArchivedExchange is one finished turn copied into the analytics
// database. Request text is scrubbed of obvious PII before it lands here.
type ArchivedExchange struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         string    `json:"userId"`
	Source         string    `json:"source"`
	Request        string    `json:"request"`
	ResponseText   string    `json:"responseText"`
	Finished       bool      `json:"finished"`
	ArchivedAt     time.Time `json:"archivedAt"`
}
