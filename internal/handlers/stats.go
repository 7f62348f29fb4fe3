package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"localdocs/internal/contextutil"
	"localdocs/internal/store"
)

// StatsHandler serves per-folder document/word/token counts for a
// collection.
type StatsHandler struct {
	store store.Queryer
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(q store.Queryer) *StatsHandler {
	return &StatsHandler{store: q}
}

type folderStatsResponse struct {
	FolderID      int64  `json:"folder_id"`
	FolderPath    string `json:"folder_path"`
	DocumentCount int    `json:"document_count"`
	TotalWords    int64  `json:"total_words"`
	TotalTokens   int64  `json:"total_tokens"`
}

// ServeHTTP reports document/word/token counts per folder of a collection.
//
// swagger:route GET /collections/{name}/stats collections collectionStats
//
// # Per-folder statistics
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: One entry per folder backing the collection
//	'404':
//	  description: Unknown collection
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "a collection name is required")
		return
	}

	cols, err := store.ListCollections(ctx, h.store)
	if err != nil {
		logger.ErrorContext(ctx, "list collections failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list collections")
		return
	}

	var out []folderStatsResponse
	for _, col := range cols {
		if col.Name != name {
			continue
		}
		folder, err := store.FolderByID(ctx, h.store, col.FolderID)
		if err != nil {
			logger.ErrorContext(ctx, "folder lookup failed", "folder_id", col.FolderID, "error", err)
			continue
		}
		stats, err := store.FolderStatistics(ctx, h.store, col.FolderID)
		if err != nil {
			logger.ErrorContext(ctx, "folder statistics failed", "folder_id", col.FolderID, "error", err)
			continue
		}
		out = append(out, folderStatsResponse{
			FolderID:      stats.FolderID,
			FolderPath:    folder.Path,
			DocumentCount: stats.DocumentCount,
			TotalWords:    stats.TotalWords,
			TotalTokens:   stats.TotalTokens,
		})
	}
	if out == nil {
		writeError(w, http.StatusNotFound, "collection not found")
		return
	}

	writeJSON(w, http.StatusOK, out)
}
