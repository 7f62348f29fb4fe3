package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"localdocs/internal/contextutil"
	"localdocs/internal/coordinator"
)

// ReindexHandler serves force-reindex of a collection.
type ReindexHandler struct {
	coordinator *coordinator.Coordinator
}

// NewReindexHandler creates a new ReindexHandler.
func NewReindexHandler(c *coordinator.Coordinator) *ReindexHandler {
	return &ReindexHandler{coordinator: c}
}

// ServeHTTP triggers a full rescan of every folder in a collection.
//
// swagger:route POST /collections/{name}/reindex collections forceReindex
//
// # Force a full reindex
//
// ---
// responses:
//
//	'202':
//	  description: Rescan enqueued
func (h *ReindexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "a collection name is required")
		return
	}

	if err := h.coordinator.ForceReindex(ctx, name); err != nil {
		logger.ErrorContext(ctx, "force reindex failed", "collection", name, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
