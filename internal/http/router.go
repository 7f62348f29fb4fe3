package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"localdocs/internal/coordinator"
	"localdocs/internal/handlers"
	"localdocs/internal/retriever"
	"localdocs/internal/store"
	"localdocs/internal/vectorindex"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Coordinator *coordinator.Coordinator
	Retriever   *retriever.Retriever
	Store       store.Queryer
	Index       vectorindex.Index
}

// NewRouter creates a new HTTP router over the operational surface:
// folder management, reindex, stats, search, and health.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	folders := handlers.NewFolderHandler(deps.Coordinator)
	reindex := handlers.NewReindexHandler(deps.Coordinator)
	stats := handlers.NewStatsHandler(deps.Store)
	search := handlers.NewSearchHandler(deps.Retriever)
	health := handlers.NewHealthHandler(deps.Store, deps.Index)

	r.Post("/folders", folders.Add)
	r.Delete("/folders/{collection}/{folderID}", folders.Remove)
	r.Method(http.MethodPost, "/collections/{name}/reindex", reindex)
	r.Method(http.MethodGet, "/collections/{name}/stats", stats)
	r.Method(http.MethodPost, "/search", search)
	r.Method(http.MethodGet, "/healthz", health)

	return r
}
