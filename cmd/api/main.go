package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"path/filepath"
	"time"

	"localdocs/internal/chunker"
	"localdocs/internal/config"
	"localdocs/internal/coordinator"
	"localdocs/internal/docreader"
	"localdocs/internal/embedding"
	"localdocs/internal/folderwatcher"
	"localdocs/internal/http"
	"localdocs/internal/retriever"
	"localdocs/internal/scheduler"
	"localdocs/internal/store"
	"localdocs/internal/vectorindex"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API drives a local document retrieval engine: user-configured
// folders are scanned into a searchable corpus of text chunks backed by a
// SQLite metadata store with trigram full-text search and a Qdrant vector
// index over per-chunk embeddings.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: LocalDocs API
//   description: |
//     Indexing and retrieval API for local document collections. Register
//     folders into named collections, let the scan worker chunk and embed
//     their files, and query them by vector similarity or trigram search.
//   version: 1.0.0
// schemes:
//   - http
// consumes:
//   - application/json
// produces:
//   - application/json

// tickInterval is the cadence of the scan worker's timer; each tick does at
// most ~100ms of productive work, so a short interval keeps indexing
// responsive without monopolizing the process.
const tickInterval = 250 * time.Millisecond

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	// Open (and if needed migrate) the metadata store
	s, err := store.Open(cfg.ModelPath)
	if err != nil {
		log.Fatalf("Failed to open metadata store: %v", err)
	}
	defer func() {
		_ = s.Close()
	}()
	slog.Info("Metadata store ready", "path", s.Path())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the Qdrant-backed vector index
	index, err := vectorindex.Open(cfg.QdrantURL, cfg.QdrantCollection, cfg.QdrantVectorSize, cfg.ModelPath)
	if err != nil {
		log.Fatalf("Failed to create vector index: %v", err)
	}
	if err := index.EnsureCollection(ctx); err != nil {
		log.Fatalf("Failed to ensure vector collection: %v", err)
	}
	loaded, err := index.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load vector index: %v", err)
	}
	slog.Info("Vector index ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize, "loaded", loaded)

	// Embedding client (external service layer)
	embedder := embedding.NewHTTPService(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)

	// Chunker, document readers and scan scheduler
	chk := chunker.New(cfg.ChunkSize)
	sched := scheduler.New(chk,
		docreader.NewPlainReader(chk),
		docreader.NewPDFReader(chk, docreader.UnavailablePdfReader{}),
	)

	watcher, err := folderwatcher.New(ctx)
	if err != nil {
		log.Fatalf("Failed to start folder watcher: %v", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	coord := coordinator.New(s, sched, chk, index, embedder, watcher)

	// Register the configured watched folders, one collection per folder
	for _, folder := range cfg.WatchedFolders {
		name := filepath.Base(folder)
		if err := coord.AddFolder(ctx, name, folder, cfg.EmbeddingModelName); err != nil {
			slog.Error("Failed to add watched folder", "collection", name, "folder", folder, "error", err)
		} else {
			slog.Info("Watching folder", "collection", name, "folder", folder)
		}
	}

	// Re-run any reindex requested by a schema migration, then re-dispatch
	// chunks whose embeddings never completed
	cols, err := store.ListCollections(ctx, s.DB())
	if err != nil {
		log.Fatalf("Failed to list collections: %v", err)
	}
	for _, col := range cols {
		if !col.ForceIndexing {
			continue
		}
		if err := coord.ForceReindex(ctx, col.Name); err != nil {
			slog.Error("Startup reindex failed", "collection", col.Name, "error", err)
		}
	}
	if err := coord.DispatchUncompletedEmbeddings(ctx); err != nil {
		slog.Error("Dispatching uncompleted embeddings failed", "error", err)
	}

	// Start the single indexing worker
	go coord.Run(ctx, tickInterval)

	deps := &http.Deps{
		Coordinator: coord,
		Retriever:   retriever.New(s.DB(), index, embedder),
		Store:       s.DB(),
		Index:       index,
	}
	router := http.NewRouter(deps)

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
