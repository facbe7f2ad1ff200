// Package bootstrap wires shared infrastructure for the binaries: the
// conversation store, Redis, and the assembled assistant service.
package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/argus-ai/argus/internal/config"
	"github.com/argus-ai/argus/internal/conversation"
	"github.com/argus-ai/argus/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildConversationStore selects the persistence backend from config.
// Returns the store and a cleanup function for any pooled resources.
func BuildConversationStore(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (conversation.Store, func(), error) {
	if logger == nil {
		logger = logging.Default()
	}
	noop := func() {}

	switch cfg.StoreBackend {
	case "dynamo":
		client := dynamodb.NewFromConfig(awsCfg)
		store := conversation.NewDynamoStore(client, cfg.ConversationsTable, cfg.ExchangesTable, logger)
		logger.Info("using DynamoDB conversation store",
			"conversations_table", cfg.ConversationsTable,
			"exchanges_table", cfg.ExchangesTable,
		)
		return store, noop, nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			logger.Warn("DATABASE_URL not set, falling back to in-memory conversation store")
			return conversation.NewMemoryStore(), noop, nil
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: connect to postgres: %w", err)
		}
		logger.Info("using Postgres conversation store")
		return conversation.NewPostgresStore(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown store backend %q", cfg.StoreBackend)
	}
}
