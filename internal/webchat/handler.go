// Package webchat serves the browser chat channel over WebSocket, with an
// HTTP fallback for environments that block upgrades.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/argus-ai/argus/internal/assistant"
	"github.com/argus-ai/argus/pkg/logging"
)

// Source identifies webchat turns in exchange records.
const Source = "webchat"

// Interactor runs one assistant turn.
type Interactor interface {
	Interact(ctx context.Context, user assistant.User, text, source string) (*assistant.Exchange, error)
}

// Handler manages web chat connections and turns.
type Handler struct {
	service Interactor
	logger  *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*wsConn // userID -> active connection
}

type wsConn struct {
	conn *websocket.Conn
	done chan struct{}
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string `json:"type"` // "message", "typing", "session", "pong", "error"
	Text      string `json:"text,omitempty"`
	Say       string `json:"say,omitempty"`
	Show      string `json:"show,omitempty"`
	Role      string `json:"role,omitempty"` // "assistant" or "user"
	SessionID string `json:"session_id,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// NewHandler creates a web chat handler.
func NewHandler(service Interactor, logger *logging.Logger) *Handler {
	if service == nil {
		panic("webchat: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:  service,
		logger:   logger.Component("webchat"),
		sessions: make(map[string]*wsConn),
	}
}

// generateSessionID creates a random session identifier for anonymous
// visitors.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and handles real-time turns.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	user := userFromQuery(r)
	if user.ID == "" {
		user.ID = "webchat:" + generateSessionID()
	}

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: user.ID})

	wsc := &wsConn{conn: conn, done: make(chan struct{})}
	h.mu.Lock()
	h.sessions[user.ID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[user.ID] == wsc {
			delete(h.sessions, user.ID)
		}
		h.mu.Unlock()
		close(wsc.done)
	}()

	h.logger.Info("connection opened", "user_id", user.ID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("connection closed", "user_id", user.ID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		h.SendToSession(user.ID, OutboundMessage{Type: "typing"})
		h.SendToSession(user.ID, h.runTurn(r.Context(), user, msg.Text))
	}
}

// runTurn executes one turn and shapes the reply. A persistence failure
// still surfaces the in-memory response to the visitor.
func (h *Handler) runTurn(ctx context.Context, user assistant.User, text string) OutboundMessage {
	ex, err := h.service.Interact(ctx, user, text, Source)
	if err != nil && ex == nil {
		if fallback, ok := assistant.FallbackText(err); ok {
			h.logger.Warn("turn failed, replying with fallback", "error", err, "user_id", user.ID)
			return OutboundMessage{
				Type:      "message",
				Role:      "assistant",
				Text:      fallback,
				Finished:  true,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}
		}
		h.logger.Error("turn failed", "error", err, "user_id", user.ID)
		return OutboundMessage{
			Type: "error",
			Text: "Sorry, something went wrong. Please try again.",
		}
	}
	return OutboundMessage{
		Type:      "message",
		Role:      "assistant",
		Text:      ex.VisualText(),
		Say:       ex.AudibleResponse(),
		Show:      ex.VisualResponse(),
		Finished:  ex.ShouldConversationEnd(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// SendToSession sends a message to an active WebSocket session. Used by
// the notification worker to push proactive turns to connected visitors.
func (h *Handler) SendToSession(userID string, msg OutboundMessage) {
	h.mu.RLock()
	wsc, ok := h.sessions[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	_ = websocket.JSON.Send(wsc.conn, msg)
}

// HandleMessage is the HTTP fallback for sending one message.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"user_id"`
		FirstName string `json:"first_name"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		req.UserID = "webchat:" + generateSessionID()
	}

	user := assistant.User{ID: req.UserID, Name: assistant.Name{First: req.FirstName}}
	reply := h.runTurn(r.Context(), user, req.Text)
	reply.SessionID = req.UserID

	w.Header().Set("Content-Type", "application/json")
	if reply.Type == "error" {
		w.WriteHeader(http.StatusInternalServerError)
	}
	_ = json.NewEncoder(w).Encode(reply)
}

func userFromQuery(r *http.Request) assistant.User {
	q := r.URL.Query()
	return assistant.User{
		ID:       q.Get("user"),
		Name:     assistant.Name{First: q.Get("name")},
		Timezone: q.Get("tz"),
	}
}
