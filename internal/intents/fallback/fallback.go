// Package fallback answers turns no other handler understood.
package fallback

import (
	"context"

	"github.com/argus-ai/argus/internal/assistant"
	"github.com/argus-ai/argus/internal/assistant/respond"
	"github.com/argus-ai/argus/internal/nlu"
	"github.com/argus-ai/argus/internal/templates"
	"github.com/argus-ai/argus/pkg/logging"
)

const reply = "I'm sorry, I didn't quite catch that. Could you rephrase?"

// Handler is the catch-all intent.
type Handler struct {
	templates *templates.Engine
	logger    *logging.Logger
}

// New builds the fallback handler.
func New(eng *templates.Engine, logger *logging.Logger) *Handler {
	if eng == nil {
		panic("fallback: template engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{templates: eng, logger: logger.Component("fallback")}
}

func (h *Handler) Name() string { return "fallback" }

func (h *Handler) Process(ctx context.Context, ex *assistant.Exchange, data nlu.Analysed) error {
	h.logger.Info("no handler understood the request", "intent", data.Intent(), "source", ex.RequestSource())
	if err := ex.Respond(assistant.Payload{Text: reply, Say: reply}); err != nil {
		return err
	}
	_, err := respond.Resolve(h.templates, ex, nil)
	return err
}
