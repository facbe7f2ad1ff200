// Package router assembles the HTTP surface: channel webhooks, the
// webchat socket, health and metrics, and JWT-protected admin routes.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/argus-ai/argus/internal/channels/slack"
	"github.com/argus-ai/argus/internal/channels/voice"
	"github.com/argus-ai/argus/internal/http/handlers"
	httpmiddleware "github.com/argus-ai/argus/internal/http/middleware"
	"github.com/argus-ai/argus/internal/webchat"
	"github.com/argus-ai/argus/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	Slack   *slack.Handler
	Voice   *voice.Handler
	Webchat *webchat.Handler

	AdminConversations *handlers.AdminConversationsHandler
	AdminArchive       *handlers.AdminArchiveHandler

	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates the Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/channels", func(ch chi.Router) {
		if cfg.Slack != nil {
			ch.Post("/slack", cfg.Slack.ServeHTTP)
		}
		if cfg.Voice != nil {
			ch.Post("/voice", cfg.Voice.ServeHTTP)
		}
	})

	if cfg.Webchat != nil {
		r.Route("/webchat", func(wc chi.Router) {
			wc.Get("/ws", cfg.Webchat.HandleWebSocket)
			wc.Post("/message", cfg.Webchat.HandleMessage)
		})
	}

	// Admin routes require an operator-role JWT; transcripts are user
	// speech and never public.
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.OperatorJWT(cfg.AdminAuthSecret))
			if cfg.AdminConversations != nil {
				admin.Get("/users/{userID}/conversation", cfg.AdminConversations.GetUserConversation)
				admin.Get("/conversations/{conversationID}/exchanges", cfg.AdminConversations.GetExchanges)
			}
			if cfg.AdminArchive != nil {
				admin.Get("/archive/exchanges", cfg.AdminArchive.ListArchived)
			}
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
