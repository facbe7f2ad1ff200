package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/argus-ai/argus/internal/conversation"
	"github.com/argus-ai/argus/pkg/logging"
)

// AdminConversationsHandler exposes read-only conversation inspection for
// operators: which conversation a user has, and its recent turns.
type AdminConversationsHandler struct {
	store  conversation.Store
	logger *logging.Logger
}

// NewAdminConversationsHandler builds the inspection handler.
func NewAdminConversationsHandler(store conversation.Store, logger *logging.Logger) *AdminConversationsHandler {
	if store == nil {
		panic("handlers: conversation store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminConversationsHandler{store: store, logger: logger.Component("admin")}
}

// GetUserConversation returns the user's conversation with its recent
// exchanges, most recently updated first.
func (h *AdminConversationsHandler) GetUserConversation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "userID required", http.StatusBadRequest)
		return
	}

	conv, err := h.store.FindConversation(r.Context(), userID)
	if err != nil {
		h.logger.Error("conversation lookup failed", "error", err, "user_id", userID)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if conv == nil {
		http.Error(w, "no conversation for user", http.StatusNotFound)
		return
	}

	exchanges, err := h.store.ListRecentExchanges(r.Context(), conv.ID, limitParam(r, conversation.DefaultHistoryLimit))
	if err != nil {
		h.logger.Error("exchange listing failed", "error", err, "conversation_id", conv.ID)
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"conversation": conv,
		"exchanges":    exchanges,
	})
}

// GetExchanges returns the recent exchanges of one conversation.
func (h *AdminConversationsHandler) GetExchanges(w http.ResponseWriter, r *http.Request) {
	convID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		http.Error(w, "invalid conversation ID", http.StatusBadRequest)
		return
	}

	exchanges, err := h.store.ListRecentExchanges(r.Context(), convID, limitParam(r, conversation.DefaultHistoryLimit))
	if err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		h.logger.Error("exchange listing failed", "error", err, "conversation_id", convID)
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"exchanges": exchanges})
}

func limitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 100 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
