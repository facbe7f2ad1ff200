package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxAPI is the subset of pgxpool.Pool the store uses. Narrowed so tests
// can substitute pgxmock.
type pgxAPI interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists conversations and exchanges in PostgreSQL.
type PostgresStore struct {
	pool pgxAPI
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool pgxAPI) *PostgresStore {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FindConversation(ctx context.Context, userID string) (*Conversation, error) {
	query := `
		SELECT id, user_id, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
	`
	var conv Conversation
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&conv.ID, &conv.UserID, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: find failed: %w", err)
	}
	return &conv, nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, userID string) (*Conversation, error) {
	id := uuid.New()
	query := `
		INSERT INTO conversations (id, user_id)
		VALUES ($1, $2)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := s.pool.QueryRow(ctx, query, id, userID).Scan(&createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("conversation: create failed: %w", err)
	}
	return &Conversation{
		ID:        id,
		UserID:    userID,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func (s *PostgresStore) ListRecentExchanges(ctx context.Context, conversationID uuid.UUID, limit int) ([]ExchangeRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	query := `
		SELECT id, conversation_id, source, request, response, conversation_context, created_at, updated_at
		FROM exchanges
		WHERE conversation_id = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: list exchanges failed: %w", err)
	}
	defer rows.Close()

	var recs []ExchangeRecord
	for rows.Next() {
		var (
			rec          ExchangeRecord
			request      []byte
			response     []byte
			contextBytes []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.ConversationID, &rec.Source,
			&request, &response, &contextBytes,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("conversation: scan exchange failed: %w", err)
		}
		if err := json.Unmarshal(request, &rec.Request); err != nil {
			return nil, fmt.Errorf("conversation: decode request failed: %w", err)
		}
		if err := json.Unmarshal(response, &rec.Response); err != nil {
			return nil, fmt.Errorf("conversation: decode response failed: %w", err)
		}
		if len(contextBytes) > 0 {
			if err := json.Unmarshal(contextBytes, &rec.ConversationContext); err != nil {
				return nil, fmt.Errorf("conversation: decode context failed: %w", err)
			}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate exchanges failed: %w", err)
	}
	return recs, nil
}

func (s *PostgresStore) SaveExchange(ctx context.Context, rec *ExchangeRecord) error {
	if rec == nil {
		return errors.New("conversation: exchange record required")
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	request, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("conversation: encode request failed: %w", err)
	}
	response, err := json.Marshal(rec.Response)
	if err != nil {
		return fmt.Errorf("conversation: encode response failed: %w", err)
	}
	contextBytes, err := json.Marshal(rec.ConversationContext)
	if err != nil {
		return fmt.Errorf("conversation: encode context failed: %w", err)
	}

	query := `
		INSERT INTO exchanges (id, conversation_id, source, request, response, conversation_context, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.pool.Exec(ctx, query,
		rec.ID, rec.ConversationID, rec.Source,
		request, response, contextBytes,
		rec.CreatedAt, rec.UpdatedAt,
	); err != nil {
		return fmt.Errorf("conversation: save exchange failed: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE conversations SET updated_at = $1 WHERE id = $2`,
		rec.UpdatedAt, rec.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("conversation: touch conversation failed: %w", err)
	}
	return nil
}
