package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Conversation store
	DatabaseURL        string
	StoreBackend       string // "postgres" or "dynamo"
	ConversationsTable string // DynamoDB table when StoreBackend is "dynamo"
	ExchangesTable     string // DynamoDB table when StoreBackend is "dynamo"
	HistoryLimit       int
	ArchiveDatabaseURL string

	// Redis (per-conversation lease + context snapshot cache)
	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	ConversationLease time.Duration

	// Monitoring platform API
	MonitoringBaseURL string
	MonitoringToken   string
	MonitoringTimeout time.Duration

	// Turn pipeline
	TurnTimeout time.Duration

	// Notification worker
	NotificationQueueURL string
	WorkerCount          int
	ReceiveWaitSeconds   int
	ReceiveBatchSize     int

	// AWS
	AWSRegion           string
	AWSEndpointOverride string

	// Channels / admin surface
	AdminJWTSecret     string
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		DatabaseURL:        getEnv("DATABASE_URL", ""),
		StoreBackend:       strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", "postgres"))),
		ConversationsTable: getEnv("CONVERSATIONS_TABLE", "conversations"),
		ExchangesTable:     getEnv("EXCHANGES_TABLE", "exchanges"),
		HistoryLimit:       getEnvAsInt("HISTORY_LIMIT", 10),
		ArchiveDatabaseURL: getEnv("ARCHIVE_DATABASE_URL", ""),

		RedisAddr:         getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),
		ConversationLease: getEnvAsDuration("CONVERSATION_LEASE_TTL", 15*time.Second),

		MonitoringBaseURL: getEnv("MONITORING_BASE_URL", ""),
		MonitoringToken:   getEnv("MONITORING_API_TOKEN", ""),
		MonitoringTimeout: getEnvAsDuration("MONITORING_TIMEOUT", 10*time.Second),

		TurnTimeout: getEnvAsDuration("TURN_TIMEOUT", 15*time.Second),

		NotificationQueueURL: getEnv("NOTIFICATION_QUEUE_URL", ""),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),
		ReceiveWaitSeconds:   getEnvAsInt("RECEIVE_WAIT_SECONDS", 2),
		ReceiveBatchSize:     getEnvAsInt("RECEIVE_BATCH_SIZE", 5),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
