// Package scheduler maintains a per-folder FIFO of pending documents
// serviced by a single cooperative worker within a bounded per-tick time
// budget, with resumable per-document cursors.
package scheduler

import (
	"container/list"
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"localdocs/internal/chunker"
	"localdocs/internal/contextutil"
	"localdocs/internal/docreader"
	"localdocs/internal/embedding"
	"localdocs/internal/store"
)

// DocumentInfo is a resumable scan work item: which document to process
// next and where to pick it up.
type DocumentInfo struct {
	FolderID            int64
	Path                string
	IsPDF               bool
	CurrentlyProcessing bool
	CurrentPage         int   // 1-based; meaningful when IsPDF.
	CurrentPosition     int64 // byte offset into the (possibly flattened) text stream; meaningful when !IsPDF.
}

// Progress accumulates the counters the coordinator surfaces to
// observers.
type Progress struct {
	TotalDocs              int
	TotalWords             int
	TotalEmbeddingsToIndex int
	CurrentBytesToIndex    int64
	PendingDocuments       int
}

// TickResult is everything one Tick call produced: chunks ready for the
// embedding pipeline, chunk ids the vector index must drop, and progress
// deltas for this tick.
type TickResult struct {
	EmbeddingChunks []embedding.Chunk
	RemovedChunkIDs []int64
	Progress        Progress
}

// Scheduler holds the ordered per-folder queues: insertion order of
// folder keys, strict FIFO within a folder, with prepend used to resume a
// partially processed document. Servicing always starts from the earliest
// registered folder, so a folder with a never-draining queue can starve
// later ones; round-robining across folders per tick is a known
// alternative, not implemented here.
type Scheduler struct {
	mu     sync.Mutex
	order  []int64
	queues map[int64]*list.List

	plain   *docreader.PlainReader
	pdf     *docreader.PDFReader
	chunker *chunker.Chunker
}

// New constructs an empty Scheduler.
func New(c *chunker.Chunker, plain *docreader.PlainReader, pdf *docreader.PDFReader) *Scheduler {
	return &Scheduler{
		queues:  make(map[int64]*list.List),
		chunker: c,
		plain:   plain,
		pdf:     pdf,
	}
}

// Enqueue appends info to folderID's FIFO, registering the folder at the
// back of the service order on first use.
func (s *Scheduler) Enqueue(folderID int64, info DocumentInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[folderID]
	if !ok {
		q = list.New()
		s.queues[folderID] = q
		s.order = append(s.order, folderID)
	}
	q.PushBack(info)
}

// prepend re-queues a partially processed document at the front of its
// folder's FIFO so it is resumed next.
func (s *Scheduler) prepend(folderID int64, info DocumentInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[folderID]; ok {
		q.PushFront(info)
	}
}

// dequeue pops the front item of the smallest-key folder (by first-insert
// order) whose queue is non-empty.
func (s *Scheduler) dequeue() (int64, DocumentInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, folderID := range s.order {
		q, ok := s.queues[folderID]
		if !ok || q.Len() == 0 {
			continue
		}
		front := q.Front()
		q.Remove(front)
		return folderID, front.Value.(DocumentInfo), true
	}
	return 0, DocumentInfo{}, false
}

// CancelFolder drops every queued item for folderID, used by folder
// removal before the folder's rows are deleted.
func (s *Scheduler) CancelFolder(folderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, folderID)
	for i, id := range s.order {
		if id == folderID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Pending reports whether any folder has queued work.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, folderID := range s.order {
		if q, ok := s.queues[folderID]; ok && q.Len() > 0 {
			return true
		}
	}
	return false
}

// Tick processes dequeued documents one at a time for up to budget of
// wall time, all within the caller-supplied transaction. The caller
// commits the transaction and then applies RemovedChunkIDs to the vector
// index and dispatches EmbeddingChunks, exactly in that order.
func (s *Scheduler) Tick(ctx context.Context, tx store.Queryer, budget time.Duration) (TickResult, error) {
	deadline := time.Now().Add(budget)
	var result TickResult

	for time.Now().Before(deadline) {
		folderID, doc, ok := s.dequeue()
		if !ok {
			break
		}

		removed, embChunks, more, err := s.processDocument(ctx, tx, folderID, doc, &result.Progress)
		if err != nil {
			return result, err
		}

		result.RemovedChunkIDs = append(result.RemovedChunkIDs, removed...)
		result.EmbeddingChunks = append(result.EmbeddingChunks, embChunks...)
		if more != nil {
			s.prepend(folderID, *more)
			result.Progress.PendingDocuments++
		}
	}

	return result, nil
}

// processDocument runs one dequeue step: re-stat the file, insert or
// rescan the document row, read the next slice, and report whether the
// document needs another tick.
func (s *Scheduler) processDocument(ctx context.Context, tx store.Queryer, folderID int64, doc DocumentInfo, progress *Progress) ([]int64, []embedding.Chunk, *DocumentInfo, error) {
	fi, statErr := os.Stat(doc.Path)
	if statErr != nil {
		// Step 1: vanished or unreadable. Drop this work item, no error row.
		return nil, nil, nil, nil
	}
	mtime := fi.ModTime().UnixMilli()

	existing, err := store.DocumentByPath(ctx, tx, doc.Path)
	var documentID int64
	var removedIDs []int64

	switch {
	case errors.Is(err, store.ErrNotFound):
		documentID, err = store.AddDocument(ctx, tx, folderID, mtime, doc.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		progress.TotalDocs++
	case err != nil:
		return nil, nil, nil, err
	case existing.MTime == mtime && !doc.CurrentlyProcessing:
		// Found, unchanged, not mid-processing: skip.
		return nil, nil, nil, nil
	case existing.MTime != mtime:
		removedIDs, err = store.RemoveChunksByDocument(ctx, tx, existing.ID)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := store.UpdateDocumentMTime(ctx, tx, existing.ID, mtime); err != nil {
			return nil, nil, nil, err
		}
		documentID = existing.ID
	default:
		// Found, unchanged, mid-processing: resume with the same document id.
		documentID = existing.ID
	}

	pieces, provenances, next, complete, bytesRead, err := s.readSlice(doc)
	if err != nil {
		if store.IsNonFatal(err) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			contextutil.LoggerFromContext(ctx).Warn("document dropped", "path", doc.Path, "error", err)
			return removedIDs, nil, nil, nil
		}
		return nil, nil, nil, err
	}

	var embChunks []embedding.Chunk
	for i, piece := range pieces {
		row := chunker.NewChunkRow(documentID, piece, provenances[i])
		chunkID, err := store.AddChunk(ctx, tx, &row)
		if err != nil {
			return nil, nil, nil, err
		}
		progress.TotalWords += piece.Words
		progress.TotalEmbeddingsToIndex++
		embChunks = append(embChunks, embedding.Chunk{FolderID: folderID, ChunkID: chunkID, Text: piece.Text})
	}
	progress.CurrentBytesToIndex += bytesRead

	if complete {
		return removedIDs, embChunks, nil, nil
	}

	more := DocumentInfo{
		FolderID:            folderID,
		Path:                doc.Path,
		IsPDF:               doc.IsPDF,
		CurrentlyProcessing: true,
		CurrentPage:         next.CurrentPage,
		CurrentPosition:     next.CurrentPosition,
	}
	return removedIDs, embChunks, &more, nil
}

// readSlice dispatches to the PDF or plain-text/markdown reader and
// normalizes their distinct cursor types into DocumentInfo's shared shape.
func (s *Scheduler) readSlice(doc DocumentInfo) ([]chunker.Piece, []store.Provenance, DocumentInfo, bool, int64, error) {
	if doc.IsPDF {
		slice, next, meta, err := s.pdf.ReadSlice(doc.Path, docreader.PDFCursor{Page: max(doc.CurrentPage, 1)})
		if err != nil {
			return nil, nil, DocumentInfo{}, false, 0, err
		}
		provenances := make([]store.Provenance, len(slice.Chunks))
		var bytes int64
		for i, p := range slice.Chunks {
			provenances[i] = s.pdf.Provenance(doc.Path, max(doc.CurrentPage, 1), meta)
			bytes += int64(len(p.Text))
		}
		return slice.Chunks, provenances, DocumentInfo{CurrentPage: next.Page}, slice.Complete, bytes, nil
	}

	kind, _ := docreader.ClassifyPath(doc.Path)
	slice, next, err := s.plain.ReadSlice(doc.Path, kind, docreader.PlainCursor{Position: doc.CurrentPosition})
	if err != nil {
		return nil, nil, DocumentInfo{}, false, 0, err
	}
	prov := s.plain.Provenance(doc.Path)
	provenances := make([]store.Provenance, len(slice.Chunks))
	for i := range slice.Chunks {
		provenances[i] = prov
	}
	return slice.Chunks, provenances, DocumentInfo{CurrentPosition: next.Position}, slice.Complete, next.Position - doc.CurrentPosition, nil
}
