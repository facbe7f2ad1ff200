package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/argus-ai/argus/cmd/mainconfig"
	"github.com/argus-ai/argus/internal/app/bootstrap"
	"github.com/argus-ai/argus/internal/archive"
	appconfig "github.com/argus-ai/argus/internal/config"
	"github.com/argus-ai/argus/internal/worker/notifications"
	"github.com/argus-ai/argus/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting argus notification worker",
		"env", cfg.Env,
		"workers", cfg.WorkerCount,
	)

	if cfg.NotificationQueueURL == "" {
		logger.Error("NOTIFICATION_QUEUE_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := bootstrap.BuildConversationStore(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build conversation store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	archiveStore, err := archive.Open(cfg.ArchiveDatabaseURL, logger)
	if err != nil {
		logger.Error("failed to open archive database", "error", err)
		os.Exit(1)
	}
	defer archiveStore.Close()

	service := bootstrap.BuildAssistant(cfg, store, redisClient, archiveStore, prometheus.NewRegistry(), logger)

	queue := notifications.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotificationQueueURL)
	worker := notifications.New(queue, service, nil, notifications.Config{
		Workers:          cfg.WorkerCount,
		ReceiveBatchSize: cfg.ReceiveBatchSize,
		ReceiveWaitSecs:  cfg.ReceiveWaitSeconds,
	}, logger)

	worker.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down worker...")
	worker.Wait()
	logger.Info("worker stopped")
}
