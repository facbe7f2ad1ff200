// Package slack serves the Slack channel. The integration posts the
// user's message and expects the assistant envelope back in the response
// body.
package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/argus-ai/argus/internal/assistant"
	"github.com/argus-ai/argus/pkg/logging"
)

// Source identifies Slack turns in exchange records.
const Source = "slack"

// Interactor runs one assistant turn.
type Interactor interface {
	Interact(ctx context.Context, user assistant.User, text, source string) (*assistant.Exchange, error)
}

// Request is the inbound Slack integration payload.
type Request struct {
	User struct {
		ID        string `json:"id"`
		Email     string `json:"email,omitempty"`
		FirstName string `json:"firstName,omitempty"`
		LastName  string `json:"lastName,omitempty"`
		Timezone  string `json:"timezone,omitempty"`
	} `json:"user"`
	Text string `json:"text"`
}

// Envelope is the response shape the Slack integration consumes.
type Envelope struct {
	Version  string   `json:"version"`
	Response Response `json:"response"`
}

type Response struct {
	ShouldEndSession bool         `json:"shouldEndSession"`
	OutputSpeech     OutputSpeech `json:"outputSpeech"`
	Card             *Card        `json:"card,omitempty"`
}

type OutputSpeech struct {
	Type string `json:"type"` // always "PlainText" for Slack
	Text string `json:"text"`
}

type Card struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Handler serves the Slack webhook.
type Handler struct {
	service Interactor
	logger  *logging.Logger
}

// NewHandler builds the Slack channel handler.
func NewHandler(service Interactor, logger *logging.Logger) *Handler {
	if service == nil {
		panic("slack: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger.Component("slack")}
}

// ServeHTTP handles one Slack turn.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.User.ID == "" || strings.TrimSpace(req.Text) == "" {
		http.Error(w, "user.id and text are required", http.StatusBadRequest)
		return
	}

	user := assistant.User{
		ID:       req.User.ID,
		Email:    req.User.Email,
		Name:     assistant.Name{First: req.User.FirstName, Last: req.User.LastName},
		Timezone: req.User.Timezone,
		Channels: map[string]string{Source: req.User.ID},
	}

	ex, err := h.service.Interact(r.Context(), user, req.Text, Source)
	if err != nil && ex == nil {
		if text, ok := assistant.FallbackText(err); ok {
			h.logger.Warn("turn failed, replying with fallback", "error", err, "user_id", user.ID)
			writeEnvelope(w, fallbackEnvelope(text))
			return
		}
		h.logger.Error("turn failed", "error", err, "user_id", user.ID)
		http.Error(w, "turn failed", http.StatusInternalServerError)
		return
	}

	writeEnvelope(w, BuildEnvelope(ex))
}

func writeEnvelope(w http.ResponseWriter, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(env)
}

// fallbackEnvelope wraps a conversational apology for a turn that produced
// no exchange. The session ends so the user starts clean.
func fallbackEnvelope(text string) Envelope {
	return Envelope{
		Version: "1.0",
		Response: Response{
			ShouldEndSession: true,
			OutputSpeech:     OutputSpeech{Type: "PlainText", Text: text},
		},
	}
}

// BuildEnvelope shapes a finished exchange into the Slack envelope. Slack
// is text-first: the visual text wins, the card rides along when present.
func BuildEnvelope(ex *assistant.Exchange) Envelope {
	env := Envelope{
		Version: "1.0",
		Response: Response{
			ShouldEndSession: ex.ShouldConversationEnd(),
			OutputSpeech:     OutputSpeech{Type: "PlainText", Text: ex.VisualText()},
		},
	}
	if card := ex.VisualResponse(); card != "" {
		env.Response.Card = &Card{Type: "Simple", Content: card}
	}
	return env
}
