package bootstrap

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/argus-ai/argus/internal/archive"
	"github.com/argus-ai/argus/internal/assistant"
	appconfig "github.com/argus-ai/argus/internal/config"
	"github.com/argus-ai/argus/internal/conversation"
	"github.com/argus-ai/argus/internal/intents/fallback"
	"github.com/argus-ai/argus/internal/intents/problemdetails"
	"github.com/argus-ai/argus/internal/monitoring"
	"github.com/argus-ai/argus/internal/nlu"
	"github.com/argus-ai/argus/internal/observability/metrics"
	"github.com/argus-ai/argus/internal/templates"
	"github.com/argus-ai/argus/pkg/logging"
)

// BuildAssistant assembles the turn pipeline: engine, analyzer, intent
// handlers, and metrics. The same service backs every channel.
func BuildAssistant(
	cfg *appconfig.Config,
	store conversation.Store,
	redisClient *redis.Client,
	archiveStore *archive.Store,
	registry prometheus.Registerer,
	logger *logging.Logger,
) *assistant.Service {
	if logger == nil {
		logger = logging.Default()
	}

	tmpl := templates.Embedded()
	turnMetrics := metrics.NewTurnMetrics(registry)

	engineOpts := []assistant.EngineOption{
		assistant.WithHistoryLimit(cfg.HistoryLimit),
		assistant.WithStepTimeout(cfg.TurnTimeout),
		assistant.WithLogger(logger),
	}
	if redisClient != nil {
		engineOpts = append(engineOpts,
			assistant.WithLeaseManager(conversation.NewLeaseManager(redisClient, cfg.ConversationLease)),
			assistant.WithContextCache(conversation.NewContextCache(redisClient, otel.Tracer("conversation"))),
		)
	}
	engine := assistant.NewEngine(store, engineOpts...)

	serviceOpts := []assistant.ServiceOption{
		assistant.WithMetrics(turnMetrics),
		assistant.WithServiceLogger(logger.Component("service")),
	}
	if archiveStore.Enabled() {
		serviceOpts = append(serviceOpts, assistant.WithArchiver(archiveStore))
	}

	service := assistant.NewService(engine, nlu.Keyword{}, fallback.New(tmpl, logger), serviceOpts...)

	monitoringClient := monitoring.NewClient(
		cfg.MonitoringBaseURL,
		cfg.MonitoringToken,
		monitoring.WithHTTPClient(&http.Client{Timeout: cfg.MonitoringTimeout}),
		monitoring.WithLogger(logger.Component("monitoring")),
	)
	service.Register(problemdetails.New(monitoringClient, tmpl,
		problemdetails.WithMetrics(turnMetrics),
		problemdetails.WithLogger(logger),
	))

	return service
}
