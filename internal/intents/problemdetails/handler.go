// Package problemdetails answers questions about a monitored problem:
// direct queries ("what about problem 42?"), proactive notifications, and
// follow-up answers riding on a prior turn.
package problemdetails

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/argus-ai/argus/internal/assistant"
	"github.com/argus-ai/argus/internal/assistant/respond"
	"github.com/argus-ai/argus/internal/monitoring"
	"github.com/argus-ai/argus/internal/nlu"
	"github.com/argus-ai/argus/internal/observability/metrics"
	"github.com/argus-ai/argus/internal/templates"
	"github.com/argus-ai/argus/pkg/logging"
)

// IntentName is the classified intent this handler answers.
const IntentName = "problemDetails"

// unknownProblemReply is spoken when no problem ID can be recovered from
// the request, the pending follow-up, or the conversation context.
const unknownProblemReply = "Unfortunately my memory seems to be failing me. I'm not sure what problem you're talking about!"

const templateBase = "intents/problemdetails/"

// ProblemFetcher is the slice of the monitoring client this handler needs.
type ProblemFetcher interface {
	ProblemDetails(ctx context.Context, problemID string) (*monitoring.Problem, error)
}

// Handler resolves problem details turns.
type Handler struct {
	problems  ProblemFetcher
	templates *templates.Engine
	metrics   *metrics.TurnMetrics
	logger    *logging.Logger
}

// Option configures the handler.
type Option func(*Handler)

// WithMetrics wires decision latency metrics.
func WithMetrics(m *metrics.TurnMetrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithLogger sets the handler logger.
func WithLogger(l *logging.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l.Component("problemdetails")
		}
	}
}

// New builds the problem details handler.
func New(problems ProblemFetcher, eng *templates.Engine, opts ...Option) *Handler {
	if problems == nil {
		panic("problemdetails: problem fetcher cannot be nil")
	}
	if eng == nil {
		panic("problemdetails: template engine cannot be nil")
	}
	h := &Handler{
		problems:  problems,
		templates: eng,
		logger:    logging.Default().Component("problemdetails"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Name() string { return IntentName }

// Process answers one problem details turn. Notification turns skip the
// greeting and ask whether the user wants the full details; direct queries
// are greeted and answered in full.
func (h *Handler) Process(ctx context.Context, ex *assistant.Exchange, data nlu.Analysed) error {
	problemID := h.resolveProblemID(ex, data)
	if problemID == "" {
		h.logger.Warn("turn carries no problem ID", "user_id", ex.User().ID, "source", ex.RequestSource())
		ex.End()
		if err := ex.Respond(assistant.Payload{Text: unknownProblemReply, Say: unknownProblemReply}); err != nil {
			return err
		}
		_, err := respond.Resolve(h.templates, ex, nil)
		return err
	}

	problem, err := h.problems.ProblemDetails(ctx, problemID)
	if errors.Is(err, monitoring.ErrProblemNotFound) {
		h.logger.Warn("problem unknown to the monitoring platform", "problem_id", problemID)
		ex.End()
		if err := ex.RespondText("I couldn't find a problem with the ID " + problemID + ". It may have aged out."); err != nil {
			return err
		}
		_, err = respond.Resolve(h.templates, ex, nil)
		return err
	}
	if err != nil {
		return err
	}

	// Remember which problem we talked about so a bare follow-up like
	// "and the root cause?" can find it again.
	ex.SetConversationContextValue("problemId", problem.ID)

	tags := tag(data, problem)
	started := time.Now()
	decision, err := model.Predict(tags)
	if err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.ObserveDecision(time.Since(started).Seconds())
	}

	if !tags.Bool("notification") {
		ex.Greet()
	}
	ex.AddTemplateContext(map[string]any{"problem": templateView(problem)})

	base := templateBase + decision.Template + "/"
	if err := ex.Respond(assistant.Payload{
		TextPath: base + "text.tmpl",
		SayPath:  base + "say.tmpl",
		ShowPath: base + "show.tmpl",
	}); err != nil {
		return err
	}

	switch {
	case tags.Bool("notification"):
		ex.FollowUpQuestion(IntentName, assistant.FollowUp{
			Question: "Would you like to hear the details?",
			Data:     map[string]any{"problemId": problem.ID},
			Routes:   map[string]string{"yes": IntentName, IntentName: IntentName},
		})
	case !tags.Bool("open"):
		// Nothing left to discuss about a resolved problem.
		ex.End()
	}

	_, err = respond.Resolve(h.templates, ex, &decision)
	return err
}

// resolveProblemID recovers the problem ID in priority order: the analysed
// request, the follow-up the user is answering, then the conversation
// context from earlier turns.
func (h *Handler) resolveProblemID(ex *assistant.Exchange, data nlu.Analysed) string {
	if id, ok := data.String("problemId"); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	if fu, ok := ex.InheritedFollowUp(); ok && fu.AskedBy == IntentName {
		if id, ok := fu.Data["problemId"].(string); ok && id != "" {
			return id
		}
	}
	if id, ok := ex.ConversationContext()["problemId"].(string); ok && id != "" {
		return id
	}
	return ""
}

// templateView flattens the problem into the map shape the templates read.
// Every key is always present so strict rendering never trips on a
// missing field.
func templateView(p *monitoring.Problem) map[string]any {
	return map[string]any{
		"id":             p.ID,
		"displayName":    p.DisplayName,
		"status":         strings.ToLower(p.Status),
		"severityLevel":  p.SeverityLevel,
		"impactLevel":    p.ImpactLevel,
		"hasRootCause":   p.HasRootCause,
		"rootCauseText":  p.RootCauseText,
		"affectedEntity": p.AffectedEntity,
		"ownerEmail":     p.OwnerEmail,
	}
}
