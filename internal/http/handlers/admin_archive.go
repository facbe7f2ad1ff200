package handlers

import (
	"net/http"

	"github.com/argus-ai/argus/internal/archive"
	"github.com/argus-ai/argus/pkg/logging"
)

// AdminArchiveHandler exposes the analytics archive to operators.
type AdminArchiveHandler struct {
	store  *archive.Store
	logger *logging.Logger
}

// NewAdminArchiveHandler builds the archive inspection handler.
func NewAdminArchiveHandler(store *archive.Store, logger *logging.Logger) *AdminArchiveHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminArchiveHandler{store: store, logger: logger.Component("admin")}
}

// ListArchived returns the most recently archived exchanges.
func (h *AdminArchiveHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	if !h.store.Enabled() {
		http.Error(w, "archive not configured", http.StatusNotFound)
		return
	}

	archived, err := h.store.ListArchived(r.Context(), limitParam(r, 50))
	if err != nil {
		h.logger.Error("archive listing failed", "error", err)
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}
	if archived == nil {
		archived = []archive.ArchivedExchange{}
	}

	writeJSON(w, map[string]any{"exchanges": archived})
}
