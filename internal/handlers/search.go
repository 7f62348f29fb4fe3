package handlers

import (
	"encoding/json"
	"net/http"

	"localdocs/internal/contextutil"
	"localdocs/internal/retriever"
)

// SearchHandler serves retrieval queries.
type SearchHandler struct {
	retriever *retriever.Retriever
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(r *retriever.Retriever) *SearchHandler {
	return &SearchHandler{retriever: r}
}

type searchRequest struct {
	Collections []string `json:"collections"`
	Query       string   `json:"query"`
	K           int      `json:"k"`
}

// ServeHTTP handles retrieval queries.
//
// swagger:route POST /search search
//
// # Query the indexed corpus
//
// Returns the top-k chunks for a natural-language query restricted to the
// named collections, with file/title/author/page provenance.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Ranked results
//	'400':
//	  description: Missing query
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.K <= 0 {
		req.K = 10
	}

	results, err := h.retriever.Search(ctx, req.Collections, req.Query, req.K)
	if err != nil {
		logger.ErrorContext(ctx, "search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
