package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/argus-ai/argus/internal/conversation"
	"github.com/argus-ai/argus/internal/nlu"
	"github.com/argus-ai/argus/internal/observability/metrics"
	"github.com/argus-ai/argus/pkg/logging"
)

// Archiver copies finished turns into long-term storage. Archival is
// best-effort; failures never surface to the user.
type Archiver interface {
	ArchiveExchange(ctx context.Context, userID string, rec *conversation.ExchangeRecord) error
}

// Handler processes one intent for a turn: it inspects the analysed
// request, supplies the raw response, and resolves it.
type Handler interface {
	Name() string
	Process(ctx context.Context, ex *Exchange, data nlu.Analysed) error
}

// Service routes inbound turns to intent handlers. All channel adapters
// share one Service; it holds no per-turn state.
type Service struct {
	engine   *Engine
	analyzer nlu.Analyzer
	handlers map[string]Handler
	fallback Handler
	archiver Archiver
	metrics  *metrics.TurnMetrics
	logger   *logging.Logger
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithArchiver wires long-term archival of finished turns.
func WithArchiver(a Archiver) ServiceOption {
	return func(s *Service) { s.archiver = a }
}

// WithMetrics wires turn metrics.
func WithMetrics(m *metrics.TurnMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *logging.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService builds the turn router.
func NewService(engine *Engine, analyzer nlu.Analyzer, fallback Handler, opts ...ServiceOption) *Service {
	if engine == nil {
		panic("assistant: engine cannot be nil")
	}
	if analyzer == nil {
		panic("assistant: analyzer cannot be nil")
	}
	if fallback == nil {
		panic("assistant: fallback handler cannot be nil")
	}
	s := &Service{
		engine:   engine,
		analyzer: analyzer,
		handlers: make(map[string]Handler),
		fallback: fallback,
		logger:   logging.Default().Component("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds an intent handler. Registering two handlers under the same
// name is a wiring bug and panics at startup.
func (s *Service) Register(h Handler) {
	if _, exists := s.handlers[h.Name()]; exists {
		panic(fmt.Sprintf("assistant: handler %q registered twice", h.Name()))
	}
	s.handlers[h.Name()] = h
}

// Interact runs one full turn. On persistence failure the exchange is
// still returned alongside the error so the adapter can choose to show
// the in-memory response; that path is logged as a durability gap.
func (s *Service) Interact(ctx context.Context, user User, text, source string) (*Exchange, error) {
	return s.interact(ctx, user, text, source, nil)
}

// InteractAnalysed runs one turn with a pre-analysed payload, bypassing
// the language-understanding step. Used by system-triggered turns such as
// problem notifications, whose payload arrives already structured.
func (s *Service) InteractAnalysed(ctx context.Context, user User, text, source string, analysed nlu.Analysed) (*Exchange, error) {
	return s.interact(ctx, user, text, source, analysed)
}

func (s *Service) interact(ctx context.Context, user User, text, source string, analysed nlu.Analysed) (*Exchange, error) {
	started := time.Now()

	ex, err := s.engine.NewExchange(user).Start(ctx, text, source)
	if err != nil {
		s.observe(source, err, started)
		return nil, err
	}

	if analysed == nil {
		analysed, err = s.analyzer.Analyse(ctx, ex.RawRequest(), ex.ConversationContext())
		if err != nil {
			s.observe(source, err, started)
			return nil, fmt.Errorf("assistant: analyse request: %w", err)
		}
	}
	ex.AddAnalysedData(analysed)

	handler := s.route(ex, analysed)
	s.logger.Debug("routing turn",
		"user_id", user.ID,
		"source", source,
		"intent", analysed.Intent(),
		"handler", handler.Name(),
	)

	if err := handler.Process(ctx, ex, analysed); err != nil {
		s.observe(source, err, started)
		return nil, err
	}

	if _, err := ex.Finish(ctx); err != nil {
		s.observe(source, err, started)
		var persistence *PersistenceError
		if errors.As(err, &persistence) {
			// The user still gets the in-memory response; the turn itself
			// was not durably recorded.
			s.logger.Error("turn persisted nothing (durability gap)",
				"error", err,
				"user_id", user.ID,
				"source", source,
			)
			if s.metrics != nil {
				s.metrics.ObservePersistenceFailure()
			}
			return ex, err
		}
		return nil, err
	}

	if s.archiver != nil && ex.ShouldConversationEnd() {
		if err := s.archiver.ArchiveExchange(ctx, user.ID, ex.Record()); err != nil {
			s.logger.Warn("exchange archival failed", "error", err, "user_id", user.ID)
		}
	}

	s.observe(source, nil, started)
	return ex, nil
}

// route picks the handler for this turn. A follow-up asked on the prior
// turn wins: its routes map answer patterns to the handler that asked,
// matched exactly against the classified intent and then the raw answer.
func (s *Service) route(ex *Exchange, analysed nlu.Analysed) Handler {
	if fu, ok := ex.InheritedFollowUp(); ok {
		if h := s.followUpHandler(fu, analysed, ex.RawRequest()); h != nil {
			// The question is answered. Consuming drops it from the context
			// carried forward but keeps it readable for the handler, which
			// checks AskedBy and recovers the question's data.
			ex.consumeInheritedFollowUp()
			return h
		}
	}
	if h, ok := s.handlers[analysed.Intent()]; ok {
		return h
	}
	return s.fallback
}

func (s *Service) followUpHandler(fu FollowUp, analysed nlu.Analysed, raw string) Handler {
	if name, ok := fu.Routes[analysed.Intent()]; ok {
		if h, registered := s.handlers[name]; registered {
			return h
		}
		s.logger.Warn("follow-up routed to unregistered handler", "handler", name)
	}
	answer := strings.ToLower(strings.TrimSpace(raw))
	if name, ok := fu.Routes[answer]; ok {
		if h, registered := s.handlers[name]; registered {
			return h
		}
		s.logger.Warn("follow-up routed to unregistered handler", "handler", name)
	}
	return nil
}

func (s *Service) observe(source string, err error, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveTurn(source, statusLabel(err), time.Since(started).Seconds())
	var tmpl *TemplateError
	if errors.As(err, &tmpl) {
		s.metrics.ObserveTemplateFailure()
	}
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var (
		validation  *ValidationError
		decision    *DecisionError
		tmpl        *TemplateError
		persistence *PersistenceError
		timeout     *TimeoutError
	)
	switch {
	case errors.As(err, &validation):
		return "validation_error"
	case errors.As(err, &decision):
		return "decision_error"
	case errors.As(err, &tmpl):
		return "template_error"
	case errors.As(err, &persistence):
		return "persistence_error"
	case errors.As(err, &timeout):
		return "timeout"
	default:
		return "error"
	}
}
