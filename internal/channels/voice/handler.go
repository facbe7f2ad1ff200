// Package voice serves spoken-assistant turns. The voice platform sends
// the recognized utterance and expects SSML plus a companion card back.
package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/argus-ai/argus/internal/assistant"
	"github.com/argus-ai/argus/pkg/logging"
)

// Source identifies voice turns in exchange records.
const Source = "voice"

// Interactor runs one assistant turn.
type Interactor interface {
	Interact(ctx context.Context, user assistant.User, text, source string) (*assistant.Exchange, error)
}

// Request is the inbound voice platform payload.
type Request struct {
	User struct {
		ID        string `json:"id"`
		FirstName string `json:"firstName,omitempty"`
		Timezone  string `json:"timezone,omitempty"`
	} `json:"user"`
	Utterance string `json:"utterance"`
}

// Envelope is the voice platform response shape.
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
	Type string `json:"type"` // always "SSML"
	SSML string `json:"ssml"`
}

type Card struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Handler serves the voice webhook.
type Handler struct {
	service Interactor
	logger  *logging.Logger
}

// NewHandler builds the voice channel handler.
func NewHandler(service Interactor, logger *logging.Logger) *Handler {
	if service == nil {
		panic("voice: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger.Component("voice")}
}

// ServeHTTP handles one voice turn.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.User.ID == "" || strings.TrimSpace(req.Utterance) == "" {
		http.Error(w, "user.id and utterance are required", http.StatusBadRequest)
		return
	}

	user := assistant.User{
		ID:       req.User.ID,
		Name:     assistant.Name{First: req.User.FirstName},
		Timezone: req.User.Timezone,
		Channels: map[string]string{Source: req.User.ID},
	}

	ex, err := h.service.Interact(r.Context(), user, req.Utterance, Source)
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

// fallbackEnvelope speaks a conversational apology for a turn that
// produced no exchange. The platform must always receive valid SSML.
func fallbackEnvelope(text string) Envelope {
	return Envelope{
		Version: "1.0",
		Response: Response{
			ShouldEndSession: true,
			OutputSpeech:     OutputSpeech{Type: "SSML", SSML: WrapSSML(text)},
		},
	}
}

// BuildEnvelope shapes a finished exchange for the voice platform. The
// spoken channel is wrapped in a speak element; plain turns fall back to
// the visual text so the platform never receives empty speech.
func BuildEnvelope(ex *assistant.Exchange) Envelope {
	say := ex.AudibleResponse()
	if say == "" {
		say = ex.VisualText()
	}
	env := Envelope{
		Version: "1.0",
		Response: Response{
			ShouldEndSession: ex.ShouldConversationEnd(),
			OutputSpeech:     OutputSpeech{Type: "SSML", SSML: WrapSSML(say)},
		},
	}
	if card := ex.VisualResponse(); card != "" {
		env.Response.Card = &Card{Type: "Simple", Content: card}
	}
	return env
}

// WrapSSML ensures the speech is a valid SSML document without double
// wrapping content that already is one.
func WrapSSML(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "<speak>") {
		return trimmed
	}
	return "<speak>" + trimmed + "</speak>"
}
