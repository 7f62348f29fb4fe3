// Package coordinator owns the metadata store and scan scheduler and
// orchestrates add/remove folder, force-reindex, chunk-size changes,
// cleanup, and embedding-result ingress, each on the calling goroutine.
package coordinator

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"localdocs/internal/chunker"
	"localdocs/internal/contextutil"
	"localdocs/internal/docreader"
	"localdocs/internal/embedding"
	"localdocs/internal/folderwatcher"
	"localdocs/internal/scheduler"
	"localdocs/internal/store"
	"localdocs/internal/vectorindex"
)

// tickBudget is the per-tick time slice the scheduler is given.
const tickBudget = 100 * time.Millisecond

// Coordinator owns the store and scheduler and is the sole writer of
// metadata and vector-index state. Its methods run on the goroutine that
// calls them: Run's ticks and watcher handling on the worker goroutine,
// AddFolder, RemoveFolderFromCollection and ForceReindex on whichever
// goroutine calls them (the HTTP handlers in cmd/api), and OnResults and
// OnError on the embedding service's delivery goroutine. These writes are
// not funnelled through the worker; they are ordered only by SQLite's own
// locking and the scheduler's mutex.
type Coordinator struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
	chunker   *chunker.Chunker
	index     vectorindex.Index
	embed     embedding.Service
	watcher   folderwatcher.Watcher
}

// New constructs a Coordinator over its collaborators. watcher may be nil
// if folder-change notifications are not wired (e.g. in tests).
func New(s *store.Store, sched *scheduler.Scheduler, c *chunker.Chunker, index vectorindex.Index, embed embedding.Service, watcher folderwatcher.Watcher) *Coordinator {
	return &Coordinator{store: s, scheduler: sched, chunker: c, index: index, embed: embed, watcher: watcher}
}

// Run drives the worker loop: a tick timer and, if a watcher is wired, its
// change notifications. It blocks until ctx is done.
func (c *Coordinator) Run(ctx context.Context, tickInterval time.Duration) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var changes <-chan string
	if c.watcher != nil {
		changes = c.watcher.Changes()
	}

	logger := contextutil.LoggerFromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.scheduler.Pending() {
				continue
			}
			if err := c.RunTick(ctx); err != nil {
				logger.Error("scan tick failed", "error", err)
			}
		case path, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			c.handleWatcherChange(ctx, path)
		}
	}
}

// RunTick runs exactly one scheduler tick: dequeue work for up to 100ms
// inside one transaction, commit, then apply vector-index removals and
// dispatch embedding batches. Index mutations happen strictly after a
// successful commit.
func (c *Coordinator) RunTick(ctx context.Context) error {
	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return err
	}

	result, err := c.scheduler.Tick(ctx, tx, tickBudget)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logger := contextutil.LoggerFromContext(ctx)
	for _, id := range result.RemovedChunkIDs {
		if err := c.index.Remove(ctx, id); err != nil {
			logger.Error("vector index remove failed", "chunk_id", id, "error", err)
		}
	}
	if len(result.RemovedChunkIDs) > 0 {
		if err := c.index.Save(ctx); err != nil {
			logger.Error("vector index save failed", "error", err)
		}
	}

	for i := 0; i < len(result.EmbeddingChunks); i += store.BatchSize {
		end := min(i+store.BatchSize, len(result.EmbeddingChunks))
		c.embed.GenerateAsync(ctx, result.EmbeddingChunks[i:end], c)
	}
	return nil
}

// OnResults implements embedding.Sink, the embedding-ingress step: write
// each vector to the index, then flip has_embedding for that chunk.
func (c *Coordinator) OnResults(ctx context.Context, results []embedding.Result) {
	if len(results) == 0 {
		return
	}
	logger := contextutil.LoggerFromContext(ctx)
	db := c.store.DB()

	var anyApplied bool
	for _, res := range results {
		ok, err := c.index.Add(ctx, res.Vector, res.ChunkID)
		if err != nil {
			logger.Error("vector index add failed", "chunk_id", res.ChunkID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := store.SetHasEmbedding(ctx, db, res.ChunkID, true); err != nil {
			logger.Error("set has_embedding failed", "chunk_id", res.ChunkID, "error", err)
			continue
		}
		anyApplied = true
	}

	if file, err := store.FileForChunk(ctx, db, results[0].ChunkID); err == nil {
		logger.Info("embedding batch applied", "file", file, "count", len(results))
	}
	if anyApplied {
		if err := c.index.Save(ctx); err != nil {
			logger.Error("vector index save failed", "error", err)
		}
	}
}

// OnError implements embedding.Sink. Failure is surfaced as a structured
// log line; the affected chunks keep has_embedding = false and are retried
// by DispatchUncompletedEmbeddings on next startup.
func (c *Coordinator) OnError(ctx context.Context, folderID int64, err error) {
	contextutil.LoggerFromContext(ctx).Error("embedding batch failed", "folder_id", folderID, "error", err)
}

// AddFolder validates the path, upserts folder and collection rows,
// registers with the folder watcher, and enqueues a recursive scan.
func (c *Coordinator) AddFolder(ctx context.Context, collectionName, path, embeddingModel string) error {
	if embeddingModel == "" {
		return store.New(store.KindStoreFailure, "embedding model name is required", nil)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return store.New(store.KindIoMissing, "folder not found", err)
	}
	if !fi.IsDir() {
		return store.New(store.KindIoUnreadable, "path is not a directory", nil)
	}

	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	folder, err := store.UpsertFolder(ctx, tx, path)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	exists, err := store.CollectionExists(ctx, tx, collectionName, folder.ID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if !exists {
		if err := store.AddCollection(ctx, tx, &store.Collection{
			Name:           collectionName,
			FolderID:       folder.ID,
			EmbeddingModel: embeddingModel,
		}); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if c.watcher != nil {
		c.watcher.Add(path)
	}
	return c.enqueueScan(folder.ID, path)
}

// enqueueScan walks root recursively and enqueues a DocumentInfo for every
// supported extension.
func (c *Coordinator) enqueueScan(folderID int64, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entry: skip it, non-fatal, same policy the
			// scheduler applies to io errors.
			return nil
		}
		if d.IsDir() {
			return nil
		}
		kind, ok := docreader.ClassifyPath(p)
		if !ok {
			return nil
		}
		c.scheduler.Enqueue(folderID, scheduler.DocumentInfo{
			FolderID: folderID,
			Path:     p,
			IsPDF:    kind == docreader.KindPDF,
		})
		return nil
	})
}

// RemoveFolderFromCollection deletes the (collection, folder) row and
// cascade-deletes the folder, its documents and chunks only once no
// collection references it.
func (c *Coordinator) RemoveFolderFromCollection(ctx context.Context, collectionName string, folderID int64) error {
	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return err
	}

	folder, err := store.FolderByID(ctx, tx, folderID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := store.RemoveCollection(ctx, tx, collectionName, folderID); err != nil {
		_ = tx.Rollback()
		return err
	}

	remaining, err := store.CollectionCountForFolder(ctx, tx, folderID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if remaining > 0 {
		return tx.Commit()
	}

	c.scheduler.CancelFolder(folderID)

	docs, err := store.DocumentsForFolder(ctx, tx, folderID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	var removedChunkIDs []int64
	for _, doc := range docs {
		ids, err := store.RemoveChunksByDocument(ctx, tx, doc.ID)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		removedChunkIDs = append(removedChunkIDs, ids...)
		if err := store.RemoveDocument(ctx, tx, doc.ID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := store.RemoveFolder(ctx, tx, folderID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logger := contextutil.LoggerFromContext(ctx)
	for _, id := range removedChunkIDs {
		if err := c.index.Remove(ctx, id); err != nil {
			logger.Error("vector index remove failed", "chunk_id", id, "error", err)
		}
	}
	if len(removedChunkIDs) > 0 {
		if err := c.index.Save(ctx); err != nil {
			logger.Error("vector index save failed", "error", err)
		}
	}
	if c.watcher != nil {
		c.watcher.Remove(folder.Path)
	}
	return nil
}

// ForceReindex clears force_indexing and re-runs AddFolder for every
// folder backing the collection; stale chunks are removed during the
// rescan by the mtime-change path.
func (c *Coordinator) ForceReindex(ctx context.Context, collectionName string) error {
	cols, err := store.ListCollections(ctx, c.store.DB())
	if err != nil {
		return err
	}
	for _, col := range cols {
		if col.Name != collectionName {
			continue
		}
		if err := store.ClearForceIndexing(ctx, c.store.DB(), col.Name, col.FolderID); err != nil {
			return err
		}
		folder, err := store.FolderByID(ctx, c.store.DB(), col.FolderID)
		if err != nil {
			return err
		}
		if err := c.AddFolder(ctx, col.Name, folder.Path, col.EmbeddingModel); err != nil {
			return err
		}
	}
	return nil
}

// ChangeChunkSize deletes every chunk and document, drops the vectors,
// then re-adds and re-scans every current folder from scratch.
func (c *Coordinator) ChangeChunkSize(ctx context.Context, newSize int) error {
	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	docs, err := store.AllDocuments(ctx, tx)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	var removedChunkIDs []int64
	for _, doc := range docs {
		ids, err := store.RemoveChunksByDocument(ctx, tx, doc.ID)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		removedChunkIDs = append(removedChunkIDs, ids...)
		if err := store.RemoveDocument(ctx, tx, doc.ID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logger := contextutil.LoggerFromContext(ctx)
	for _, id := range removedChunkIDs {
		if err := c.index.Remove(ctx, id); err != nil {
			logger.Error("vector index remove failed", "chunk_id", id, "error", err)
		}
	}
	if len(removedChunkIDs) > 0 {
		if err := c.index.Save(ctx); err != nil {
			logger.Error("vector index save failed", "error", err)
		}
	}

	c.chunker.ChunkSize = newSize

	folders, err := store.AllFolders(ctx, c.store.DB())
	if err != nil {
		return err
	}
	folderByID := make(map[int64]store.Folder, len(folders))
	for _, f := range folders {
		folderByID[f.ID] = f
	}
	cols, err := store.ListCollections(ctx, c.store.DB())
	if err != nil {
		return err
	}
	for _, col := range cols {
		folder, ok := folderByID[col.FolderID]
		if !ok {
			continue
		}
		if err := c.AddFolder(ctx, col.Name, folder.Path, col.EmbeddingModel); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup drops folders and documents whose path no longer exists or is
// unreadable.
func (c *Coordinator) Cleanup(ctx context.Context) error {
	db := c.store.DB()
	readable := func(p string) bool {
		f, err := os.Open(p)
		if err != nil {
			return false
		}
		_ = f.Close()
		return true
	}

	cols, err := store.ListCollections(ctx, db)
	if err != nil {
		return err
	}
	checked := make(map[int64]bool, len(cols))
	for _, col := range cols {
		if checked[col.FolderID] {
			continue
		}
		checked[col.FolderID] = true

		folder, err := store.FolderByID(ctx, db, col.FolderID)
		if err != nil {
			continue
		}
		if fi, statErr := os.Stat(folder.Path); statErr != nil || !fi.IsDir() || !readable(folder.Path) {
			names, err := store.CollectionsForFolder(ctx, db, folder.ID)
			if err != nil {
				return err
			}
			for _, name := range names {
				if err := c.RemoveFolderFromCollection(ctx, name, folder.ID); err != nil {
					return err
				}
			}
		}
	}

	docs, err := store.AllDocuments(ctx, db)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if readable(doc.Path) {
			continue
		}
		if err := c.removeDocument(ctx, doc.ID); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) removeDocument(ctx context.Context, documentID int64) error {
	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	ids, err := store.RemoveChunksByDocument(ctx, tx, documentID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := store.RemoveDocument(ctx, tx, documentID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logger := contextutil.LoggerFromContext(ctx)
	for _, id := range ids {
		if err := c.index.Remove(ctx, id); err != nil {
			logger.Error("vector index remove failed", "chunk_id", id, "error", err)
		}
	}
	if len(ids) > 0 {
		if err := c.index.Save(ctx); err != nil {
			logger.Error("vector index save failed", "error", err)
		}
	}
	return nil
}

// handleWatcherChange runs cleanup in response to a watched-directory
// change, then rescans the changed directory.
func (c *Coordinator) handleWatcherChange(ctx context.Context, path string) {
	logger := contextutil.LoggerFromContext(ctx)
	if err := c.Cleanup(ctx); err != nil {
		logger.Error("cleanup after folder change failed", "path", path, "error", err)
		return
	}

	folder, err := store.FolderByPath(ctx, c.store.DB(), path)
	if err != nil {
		// Cleanup may have just removed this folder (it vanished); nothing
		// left to rescan.
		return
	}
	names, err := store.CollectionsForFolder(ctx, c.store.DB(), folder.ID)
	if err != nil {
		logger.Error("list collections for folder failed", "path", path, "error", err)
		return
	}
	cols, err := store.ListCollections(ctx, c.store.DB())
	if err != nil {
		logger.Error("list collections failed", "error", err)
		return
	}
	modelByName := make(map[string]string, len(cols))
	for _, col := range cols {
		if col.FolderID == folder.ID {
			modelByName[col.Name] = col.EmbeddingModel
		}
	}
	for _, name := range names {
		if err := c.AddFolder(ctx, name, folder.Path, modelByName[name]); err != nil {
			logger.Error("rescan after folder change failed", "path", path, "collection", name, "error", err)
		}
	}
}

// DispatchUncompletedEmbeddings re-dispatches chunks with has_embedding =
// 0 in batches of store.BatchSize for every collection not flagged
// force_indexing, for use at startup.
func (c *Coordinator) DispatchUncompletedEmbeddings(ctx context.Context) error {
	db := c.store.DB()
	cols, err := store.ListCollections(ctx, db)
	if err != nil {
		return err
	}
	for _, col := range cols {
		if col.ForceIndexing {
			continue
		}
		chunks, err := store.UncompletedChunks(ctx, db, col.FolderID)
		if err != nil {
			return err
		}
		for i := 0; i < len(chunks); i += store.BatchSize {
			end := min(i+store.BatchSize, len(chunks))
			batch := make([]embedding.Chunk, 0, end-i)
			for _, ch := range chunks[i:end] {
				batch = append(batch, embedding.Chunk{FolderID: col.FolderID, ChunkID: ch.ID, Text: ch.Text})
			}
			c.embed.GenerateAsync(ctx, batch, c)
		}
	}
	return nil
}
