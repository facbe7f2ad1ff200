// Package archive copies finished exchanges into a separate analytics
// database, decoupled from the hot conversation store.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/argus-ai/argus/internal/conversation"
	"github.com/argus-ai/argus/pkg/logging"
)

// Store archives finished exchanges. A nil or unconfigured Store is a
// no-op, so callers never need to branch on whether archival is enabled.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewStore wraps an existing analytics database handle.
func NewStore(db *sql.DB, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger.Component("archive")}
}

// Open connects to the analytics database. An empty DSN yields a disabled
// store.
func Open(dsn string, logger *logging.Logger) (*Store, error) {
	if dsn == "" {
		return NewStore(nil, logger), nil
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open database: %w", err)
	}
	return NewStore(db, logger), nil
}

// Enabled reports whether archival is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.db != nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.db.Close()
}

// ArchiveExchange copies one finished turn. The request text is scrubbed
// before it is stored.
func (s *Store) ArchiveExchange(ctx context.Context, userID string, rec *conversation.ExchangeRecord) error {
	if !s.Enabled() {
		return nil
	}

	const q = `
		INSERT INTO archived_exchanges
			(id, conversation_id, user_id, source, request, response_text, finished, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, q,
		rec.ID,
		rec.ConversationID,
		userID,
		rec.Source,
		ScrubPII(rec.Request.Raw),
		rec.Response.Visual.Text,
		rec.Response.Finished,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("archive: insert exchange %s: %w", rec.ID, err)
	}

	s.logger.Debug("archived exchange", "exchange_id", rec.ID, "conversation_id", rec.ConversationID)
	return nil
}

// ListArchived returns the most recently archived exchanges.
func (s *Store) ListArchived(ctx context.Context, limit int) ([]ArchivedExchange, error) {
	if !s.Enabled() {
		return nil, nil
	}
	if limit < 1 {
		limit = 50
	}

	const q = `
		SELECT id, conversation_id, user_id, source, request, response_text, finished, archived_at
		FROM archived_exchanges
		ORDER BY archived_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: list exchanges: %w", err)
	}
	defer rows.Close()

	var out []ArchivedExchange
	for rows.Next() {
		var a ArchivedExchange
		if err := rows.Scan(&a.ID, &a.ConversationID, &a.UserID, &a.Source, &a.Request, &a.ResponseText, &a.Finished, &a.ArchivedAt); err != nil {
			return nil, fmt.Errorf("archive: scan exchange: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate exchanges: %w", err)
	}
	return out, nil
}
