package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/argus-ai/argus/pkg/logging"
)

const conversationUpdatedIndex = "conversationId-updatedAt-index"

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore is the DynamoDB-backed Store used by serverless deployments.
// Conversations are keyed by userId; exchanges live in their own table with
// a conversationId/updatedAt index for recency queries.
type DynamoStore struct {
	client             dynamoAPI
	conversationsTable string
	exchangesTable     string
	logger             *logging.Logger
}

var _ Store = (*DynamoStore)(nil)

type dynamoConversation struct {
	UserID    string `dynamodbav:"userId"`
	ID        string `dynamodbav:"id"`
	CreatedAt string `dynamodbav:"createdAt"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

type dynamoExchange struct {
	ID                  string         `dynamodbav:"id"`
	ConversationID      string         `dynamodbav:"conversationId"`
	Source              string         `dynamodbav:"source"`
	Request             RequestRecord  `dynamodbav:"request"`
	Response            ResponseRecord `dynamodbav:"response"`
	ConversationContext map[string]any `dynamodbav:"conversationContext,omitempty"`
	CreatedAt           string         `dynamodbav:"createdAt"`
	UpdatedAt           string         `dynamodbav:"updatedAt"`
}

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, conversationsTable, exchangesTable string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if conversationsTable == "" || exchangesTable == "" {
		panic("conversation: table names cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		client:             client,
		conversationsTable: conversationsTable,
		exchangesTable:     exchangesTable,
		logger:             logger,
	}
}

func (s *DynamoStore) FindConversation(ctx context.Context, userID string) (*Conversation, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.conversationsTable),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to fetch conversation: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item dynamoConversation
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode conversation: %w", err)
	}
	return item.toConversation()
}

func (s *DynamoStore) CreateConversation(ctx context.Context, userID string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := dynamoConversation{
		UserID:    userID,
		ID:        uuid.NewString(),
		CreatedAt: now.Format(time.RFC3339Nano),
		UpdatedAt: now.Format(time.RFC3339Nano),
	}
	item, err := attributevalue.MarshalMap(conv)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to marshal conversation: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.conversationsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(userId)"),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to persist conversation: %w", err)
	}
	return conv.toConversation()
}

func (s *DynamoStore) ListRecentExchanges(ctx context.Context, conversationID uuid.UUID, limit int) ([]ExchangeRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.exchangesTable),
		IndexName:              aws.String(conversationUpdatedIndex),
		KeyConditionExpression: aws.String("conversationId = :conversation"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":conversation": &types.AttributeValueMemberS{Value: conversationID.String()},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to query exchanges: %w", err)
	}

	recs := make([]ExchangeRecord, 0, len(out.Items))
	for _, raw := range out.Items {
		var item dynamoExchange
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("conversation: failed to decode exchange: %w", err)
		}
		rec, err := item.toRecord()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *DynamoStore) SaveExchange(ctx context.Context, rec *ExchangeRecord) error {
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

	item, err := attributevalue.MarshalMap(dynamoExchange{
		ID:                  rec.ID.String(),
		ConversationID:      rec.ConversationID.String(),
		Source:              rec.Source,
		Request:             rec.Request,
		Response:            rec.Response,
		ConversationContext: rec.ConversationContext,
		CreatedAt:           rec.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:           rec.UpdatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal exchange: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.exchangesTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("conversation: failed to persist exchange: %w", err)
	}
	return nil
}

func (c dynamoConversation) toConversation() (*Conversation, error) {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return nil, fmt.Errorf("conversation: invalid conversation id %q: %w", c.ID, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("conversation: invalid createdAt: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("conversation: invalid updatedAt: %w", err)
	}
	return &Conversation{ID: id, UserID: c.UserID, CreatedAt: createdAt, UpdatedAt: updatedAt}, nil
}

func (e dynamoExchange) toRecord() (ExchangeRecord, error) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return ExchangeRecord{}, fmt.Errorf("conversation: invalid exchange id %q: %w", e.ID, err)
	}
	conversationID, err := uuid.Parse(e.ConversationID)
	if err != nil {
		return ExchangeRecord{}, fmt.Errorf("conversation: invalid conversation id %q: %w", e.ConversationID, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, e.CreatedAt)
	if err != nil {
		return ExchangeRecord{}, fmt.Errorf("conversation: invalid createdAt: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, e.UpdatedAt)
	if err != nil {
		return ExchangeRecord{}, fmt.Errorf("conversation: invalid updatedAt: %w", err)
	}
	return ExchangeRecord{
		ID:                  id,
		ConversationID:      conversationID,
		Source:              e.Source,
		Request:             e.Request,
		Response:            e.Response,
		ConversationContext: e.ConversationContext,
		CreatedAt:           createdAt,
		UpdatedAt:           updatedAt,
	}, nil
}
