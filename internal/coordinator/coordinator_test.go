package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"localdocs/internal/chunker"
	"localdocs/internal/docreader"
	"localdocs/internal/embedding"
	"localdocs/internal/folderwatcher/mocks"
	"localdocs/internal/scheduler"
	"localdocs/internal/store"
)

// fakeIndex is an in-memory stand-in for vectorindex.Index.
type fakeIndex struct {
	mu      sync.Mutex
	loaded  bool
	vectors map[int64][]float32
	removed []int64
	saves   int
}

func newFakeIndex() *fakeIndex { return &fakeIndex{vectors: map[int64][]float32{}} }

func (f *fakeIndex) Add(ctx context.Context, vector []float32, chunkID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[chunkID] = vector
	return true, nil
}

func (f *fakeIndex) Remove(ctx context.Context, chunkID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vectors, chunkID)
	f.removed = append(f.removed, chunkID)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, k int) ([]int64, error) { return nil, nil }
func (f *fakeIndex) Load(ctx context.Context) (bool, error)                               { return f.loaded, nil }
func (f *fakeIndex) Save(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	return nil
}
func (f *fakeIndex) IsLoaded() bool   { return f.loaded }
func (f *fakeIndex) FileExists() bool { return true }

// syncEmbedService resolves GenerateAsync synchronously, in-line, so tests
// don't need to coordinate goroutines.
type syncEmbedService struct {
	vector func(text string) []float32
}

func (s *syncEmbedService) Model() string { return "test-model" }

func (s *syncEmbedService) GenerateAsync(ctx context.Context, batch []embedding.Chunk, sink embedding.Sink) {
	results := make([]embedding.Result, len(batch))
	for i, c := range batch {
		results[i] = embedding.Result{FolderID: c.FolderID, ChunkID: c.ChunkID, Vector: s.vector(c.Text)}
	}
	sink.OnResults(ctx, results)
}

func (s *syncEmbedService) GenerateSync(ctx context.Context, text string) ([]float32, error) {
	return s.vector(text), nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, *store.Store, *fakeIndex) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	c := chunker.New(20)
	sched := scheduler.New(c, docreader.NewPlainReader(c), docreader.NewPDFReader(c, nil))
	index := newFakeIndex()
	embed := &syncEmbedService{vector: func(string) []float32 { return []float32{0.1, 0.2} }}

	return New(s, sched, c, index, embed, nil), s, index
}

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCoordinator_AddFolder_ScansAndEmbeds(t *testing.T) {
	co, s, index := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "hello world this is a short document")

	if err := co.AddFolder(ctx, "work", dir, "text-embedding-3-small"); err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}

	if err := co.RunTick(ctx); err != nil {
		t.Fatalf("RunTick() error = %v", err)
	}

	doc, err := store.DocumentByPath(ctx, s.DB(), filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("DocumentByPath() error = %v", err)
	}
	chunks, err := store.ChunksByDocument(ctx, s.DB(), doc.ID)
	if err != nil {
		t.Fatalf("ChunksByDocument() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk after a tick")
	}
	for _, c := range chunks {
		if !c.HasEmbedding {
			t.Errorf("chunk %d has_embedding = false, want true after embedding ingress", c.ID)
		}
	}
	if index.saves == 0 {
		t.Error("expected VectorIndex.Save to be called after embedding ingress")
	}
}

func TestCoordinator_AddFolder_RequiresEmbeddingModel(t *testing.T) {
	co, _, _ := newTestCoordinator(t)
	if err := co.AddFolder(context.Background(), "work", t.TempDir(), ""); err == nil {
		t.Fatal("expected an error for an empty embedding model name")
	}
}

func TestCoordinator_AddFolder_MissingPath(t *testing.T) {
	co, _, _ := newTestCoordinator(t)
	if err := co.AddFolder(context.Background(), "work", "/nonexistent/does/not/exist", "m"); err == nil {
		t.Fatal("expected an error for a missing folder path")
	}
}

func TestCoordinator_RemoveFolderFromCollection_CascadesOnLastCollection(t *testing.T) {
	co, s, index := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "some words to index here")
	if err := co.AddFolder(ctx, "work", dir, "m"); err != nil {
		t.Fatal(err)
	}
	if err := co.RunTick(ctx); err != nil {
		t.Fatal(err)
	}

	folder, err := store.FolderByPath(ctx, s.DB(), dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := co.RemoveFolderFromCollection(ctx, "work", folder.ID); err != nil {
		t.Fatalf("RemoveFolderFromCollection() error = %v", err)
	}

	if _, err := store.FolderByID(ctx, s.DB(), folder.ID); err == nil {
		t.Error("expected the folder row to be gone once its last collection is removed")
	}
	if len(index.removed) == 0 {
		t.Error("expected the document's chunks to be removed from the vector index")
	}
}

func TestCoordinator_RemoveFolderFromCollection_KeepsFolderIfOtherCollectionRemains(t *testing.T) {
	co, s, _ := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	if err := co.AddFolder(ctx, "work", dir, "m"); err != nil {
		t.Fatal(err)
	}
	if err := co.AddFolder(ctx, "personal", dir, "m"); err != nil {
		t.Fatal(err)
	}

	folder, err := store.FolderByPath(ctx, s.DB(), dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := co.RemoveFolderFromCollection(ctx, "work", folder.ID); err != nil {
		t.Fatalf("RemoveFolderFromCollection() error = %v", err)
	}
	if _, err := store.FolderByID(ctx, s.DB(), folder.ID); err != nil {
		t.Error("expected the folder row to survive while another collection still references it")
	}
}

func TestCoordinator_ChangeChunkSize_ClearsAndRescans(t *testing.T) {
	co, s, _ := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "one two three four five six seven eight nine ten")
	if err := co.AddFolder(ctx, "work", dir, "m"); err != nil {
		t.Fatal(err)
	}
	if err := co.RunTick(ctx); err != nil {
		t.Fatal(err)
	}

	if err := co.ChangeChunkSize(ctx, 5); err != nil {
		t.Fatalf("ChangeChunkSize() error = %v", err)
	}
	if co.chunker.ChunkSize != 5 {
		t.Errorf("chunker.ChunkSize = %d, want 5", co.chunker.ChunkSize)
	}

	if err := co.RunTick(ctx); err != nil {
		t.Fatal(err)
	}
	doc, err := store.DocumentByPath(ctx, s.DB(), filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := store.ChunksByDocument(ctx, s.DB(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Errorf("expected the smaller chunk size to produce more than one chunk, got %d", len(chunks))
	}
}

func TestCoordinator_Cleanup_RemovesVanishedFolder(t *testing.T) {
	co, s, _ := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	if err := co.AddFolder(ctx, "work", dir, "m"); err != nil {
		t.Fatal(err)
	}
	folder, err := store.FolderByPath(ctx, s.DB(), dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	if err := co.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := store.FolderByID(ctx, s.DB(), folder.ID); err == nil {
		t.Error("expected the vanished folder to be removed by Cleanup")
	}
}

func TestCoordinator_Cleanup_RemovesVanishedDocumentOnly(t *testing.T) {
	co, s, _ := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	docPath := writeFile(t, dir, "a.txt", "stays or goes")
	if err := co.AddFolder(ctx, "work", dir, "m"); err != nil {
		t.Fatal(err)
	}
	if err := co.RunTick(ctx); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(docPath); err != nil {
		t.Fatal(err)
	}
	if err := co.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}

	if _, err := store.DocumentByPath(ctx, s.DB(), docPath); err == nil {
		t.Error("expected the vanished document to be removed")
	}
	folder, err := store.FolderByPath(ctx, s.DB(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.FolderByID(ctx, s.DB(), folder.ID); err != nil {
		t.Error("expected the folder itself to survive, only its document was removed")
	}
}

func TestCoordinator_ForceReindex(t *testing.T) {
	co, s, _ := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "content to reindex")
	if err := co.AddFolder(ctx, "work", dir, "m"); err != nil {
		t.Fatal(err)
	}
	if err := co.RunTick(ctx); err != nil {
		t.Fatal(err)
	}

	if err := co.ForceReindex(ctx, "work"); err != nil {
		t.Fatalf("ForceReindex() error = %v", err)
	}
	if !co.scheduler.Pending() {
		t.Error("expected ForceReindex to re-enqueue the folder's documents")
	}

	folder, err := store.FolderByPath(ctx, s.DB(), dir)
	if err != nil {
		t.Fatal(err)
	}
	cols, err := store.ListCollections(ctx, s.DB())
	if err != nil {
		t.Fatal(err)
	}
	for _, col := range cols {
		if col.FolderID == folder.ID && col.ForceIndexing {
			t.Error("expected force_indexing to be cleared after ForceReindex")
		}
	}
}

func TestCoordinator_DispatchUncompletedEmbeddings(t *testing.T) {
	co, s, index := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "words that need an embedding")
	if err := co.AddFolder(ctx, "work", dir, "m"); err != nil {
		t.Fatal(err)
	}
	if err := co.RunTick(ctx); err != nil {
		t.Fatal(err)
	}

	doc, err := store.DocumentByPath(ctx, s.DB(), filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := store.ChunksByDocument(ctx, s.DB(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range chunks {
		if err := store.SetHasEmbedding(ctx, s.DB(), c.ID, false); err != nil {
			t.Fatal(err)
		}
	}
	index.vectors = map[int64][]float32{}

	if err := co.DispatchUncompletedEmbeddings(ctx); err != nil {
		t.Fatalf("DispatchUncompletedEmbeddings() error = %v", err)
	}

	chunks, err = store.ChunksByDocument(ctx, s.DB(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range chunks {
		if !c.HasEmbedding {
			t.Errorf("chunk %d has_embedding = false after DispatchUncompletedEmbeddings", c.ID)
		}
	}
}

func TestCoordinator_WatcherRegistration(t *testing.T) {
	ctrl := gomock.NewController(t)
	watcher := mocks.NewMockWatcher(ctrl)

	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	c := chunker.New(20)
	sched := scheduler.New(c, docreader.NewPlainReader(c), docreader.NewPDFReader(c, nil))
	embed := &syncEmbedService{vector: func(string) []float32 { return []float32{0.1} }}
	co := New(s, sched, c, newFakeIndex(), embed, watcher)

	ctx := context.Background()
	dir := t.TempDir()

	watcher.EXPECT().Add(dir).Return(true)
	if err := co.AddFolder(ctx, "work", dir, "m"); err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}

	folder, err := store.FolderByPath(ctx, s.DB(), dir)
	if err != nil {
		t.Fatal(err)
	}

	watcher.EXPECT().Remove(dir).Return(true)
	if err := co.RemoveFolderFromCollection(ctx, "work", folder.ID); err != nil {
		t.Fatalf("RemoveFolderFromCollection() error = %v", err)
	}
}

func TestCoordinator_Run_StopsOnContextCancel(t *testing.T) {
	co, _, _ := newTestCoordinator(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		co.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}
