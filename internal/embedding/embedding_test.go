package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestNewHTTPService(t *testing.T) {
	svc := NewHTTPService("http://localhost:8080", "test-key", "test-model", 768)
	if svc.Model() != "test-model" {
		t.Errorf("Model() = %v, want test-model", svc.Model())
	}
}

func TestHTTPService_GenerateSync(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		expectedSize int
		serverResp   func(w http.ResponseWriter, r *http.Request)
		wantErr      bool
		wantLen      int
	}{
		{
			name:         "successful embedding",
			text:         "hello world",
			expectedSize: 4,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/embeddings" {
					t.Errorf("expected /v1/embeddings, got %s", r.URL.Path)
				}
				resp := embeddingsResponse{Data: []embeddingData{{Embedding: []float64{0.1, 0.2, 0.3, 0.4}}}}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantErr: false,
			wantLen: 4,
		},
		{
			name:         "size mismatch",
			text:         "hello",
			expectedSize: 8,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				resp := embeddingsResponse{Data: []embeddingData{{Embedding: []float64{0.1, 0.2}}}}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantErr: true,
		},
		{
			name:         "bad status",
			text:         "hello",
			expectedSize: 4,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			svc := NewHTTPService(server.URL, "key", "model", tt.expectedSize)
			vec, err := svc.GenerateSync(context.Background(), tt.text)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(vec) != tt.wantLen {
				t.Errorf("len(vec) = %d, want %d", len(vec), tt.wantLen)
			}
		})
	}
}

type recordingSink struct {
	mu      sync.Mutex
	results []Result
	errs    []error
	done    chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{}, 1)}
}

func (s *recordingSink) OnResults(ctx context.Context, results []Result) {
	s.mu.Lock()
	s.results = append(s.results, results...)
	s.mu.Unlock()
	s.done <- struct{}{}
}

func (s *recordingSink) OnError(ctx context.Context, folderID int64, err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
	s.done <- struct{}{}
}

func TestHTTPService_GenerateAsync_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := embeddingsResponse{Data: []embeddingData{
			{Embedding: []float64{1, 2}},
			{Embedding: []float64{3, 4}},
		}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc := NewHTTPService(server.URL, "key", "model", 2)
	sink := newRecordingSink()
	batch := []Chunk{
		{FolderID: 1, ChunkID: 10, Text: "a"},
		{FolderID: 1, ChunkID: 11, Text: "b"},
	}
	svc.GenerateAsync(context.Background(), batch, sink)

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async result")
	}

	if len(sink.results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(sink.results))
	}
	if sink.results[0].ChunkID != 10 || sink.results[1].ChunkID != 11 {
		t.Errorf("results out of order or mismatched: %+v", sink.results)
	}
}

func TestHTTPService_GenerateAsync_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewHTTPService(server.URL, "key", "model", 2)
	sink := newRecordingSink()
	svc.GenerateAsync(context.Background(), []Chunk{{FolderID: 7, ChunkID: 1, Text: "a"}}, sink)

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async error")
	}

	if len(sink.errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(sink.errs))
	}
}

func TestHTTPService_GenerateAsync_EmptyBatch(t *testing.T) {
	svc := NewHTTPService("http://unused", "key", "model", 2)
	sink := newRecordingSink()
	svc.GenerateAsync(context.Background(), nil, sink)

	select {
	case <-sink.done:
		t.Fatal("sink should not be invoked for an empty batch")
	case <-time.After(100 * time.Millisecond):
	}
}
