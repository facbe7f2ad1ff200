package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/argus-ai/argus/cmd/mainconfig"
	"github.com/argus-ai/argus/internal/api/router"
	"github.com/argus-ai/argus/internal/app/bootstrap"
	"github.com/argus-ai/argus/internal/archive"
	"github.com/argus-ai/argus/internal/channels/slack"
	"github.com/argus-ai/argus/internal/channels/voice"
	appconfig "github.com/argus-ai/argus/internal/config"
	"github.com/argus-ai/argus/internal/http/handlers"
	"github.com/argus-ai/argus/internal/webchat"
	"github.com/argus-ai/argus/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting argus API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
	)

	ctx := context.Background()

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

	registry := prometheus.NewRegistry()
	service := bootstrap.BuildAssistant(cfg, store, redisClient, archiveStore, registry, logger)

	webchatHandler := webchat.NewHandler(service, logger)

	routerCfg := &router.Config{
		Logger:             logger,
		Slack:              slack.NewHandler(service, logger),
		Voice:              voice.NewHandler(service, logger),
		Webchat:            webchatHandler,
		AdminConversations: handlers.NewAdminConversationsHandler(store, logger),
		AdminArchive:       handlers.NewAdminArchiveHandler(archiveStore, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
