package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"localdocs/internal/contextutil"
	"localdocs/internal/coordinator"
)

// FolderHandler serves the folder-management surface: adding a folder to
// a collection and removing one.
type FolderHandler struct {
	coordinator *coordinator.Coordinator
}

// NewFolderHandler creates a new FolderHandler.
func NewFolderHandler(c *coordinator.Coordinator) *FolderHandler {
	return &FolderHandler{coordinator: c}
}

type addFolderRequest struct {
	Collection     string `json:"collection"`
	Folder         string `json:"folder"`
	EmbeddingModel string `json:"embedding_model"`
}

// Add attaches a folder to a collection and starts scanning it.
//
// swagger:route POST /folders folders addFolder
//
// # Add a folder to a collection
//
// ---
// consumes:
// - application/json
// responses:
//
//	'202':
//	  description: Folder registered, scan enqueued
//	'400':
//	  description: Invalid body, missing path, or empty embedding model
func (h *FolderHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req addFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Collection = strings.TrimSpace(req.Collection)
	req.Folder = strings.TrimSpace(req.Folder)
	if req.Collection == "" || req.Folder == "" {
		writeError(w, http.StatusBadRequest, "collection and folder are required")
		return
	}

	if err := h.coordinator.AddFolder(ctx, req.Collection, req.Folder, req.EmbeddingModel); err != nil {
		logger.ErrorContext(ctx, "add folder failed", "collection", req.Collection, "folder", req.Folder, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Remove detaches a folder from a collection, cascading to the folder's
// documents, chunks and vectors once no collection references it.
//
// swagger:route DELETE /folders/{collection}/{folderID} folders removeFolder
//
// # Remove a folder from a collection
//
// ---
// responses:
//
//	'200':
//	  description: Removed
//	'400':
//	  description: Unknown folder or invalid parameters
func (h *FolderHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	collection := strings.TrimSpace(chi.URLParam(r, "collection"))
	folderID, err := strconv.ParseInt(chi.URLParam(r, "folderID"), 10, 64)
	if err != nil || collection == "" {
		writeError(w, http.StatusBadRequest, "a valid collection and folderID are required")
		return
	}

	if err := h.coordinator.RemoveFolderFromCollection(ctx, collection, folderID); err != nil {
		logger.ErrorContext(ctx, "remove folder failed", "collection", collection, "folder_id", folderID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
