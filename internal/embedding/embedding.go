// Package embedding is the client side of the embedding service: a
// batched async text-to-vector dispatcher plus a synchronous single-text
// path used by the retriever's vector query.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"localdocs/internal/contextutil"
)

// Chunk is the in-flight message sent to the embedding service.
type Chunk struct {
	FolderID int64
	ChunkID  int64
	Text     string
}

// Result is the reply for one chunk, mirroring the EmbeddingResult entity.
type Result struct {
	FolderID int64
	ChunkID  int64
	Vector   []float32
}

// Sink receives the asynchronous replies to a GenerateAsync call. The
// service may run its HTTP round trip on another goroutine; Sink
// implementations that need single-threaded handling should hand off onto
// their own worker loop (e.g. by pushing onto a channel that loop drains)
// rather than acting on the sink callback's own goroutine.
type Sink interface {
	// OnResults delivers a successful batch of vectors.
	OnResults(ctx context.Context, results []Result)
	// OnError delivers a batch failure for a folder.
	OnError(ctx context.Context, folderID int64, err error)
}

// Service is the embedding-service contract the coordinator and retriever
// depend on.
type Service interface {
	// Model returns the configured embedding model name.
	Model() string
	// GenerateAsync dispatches a batch for embedding and returns
	// immediately; results or an error arrive later via sink.
	GenerateAsync(ctx context.Context, batch []Chunk, sink Sink)
	// GenerateSync embeds a single piece of text and blocks for the reply,
	// used by the retriever to embed a query.
	GenerateSync(ctx context.Context, text string) ([]float32, error)
}

// HTTPService is a client for a llama.cpp-compatible /v1/embeddings API.
type HTTPService struct {
	BaseURL      string
	APIKey       string
	ModelName    string
	ExpectedSize int
	client       *http.Client
}

// NewHTTPService creates a new embedding service client. expectedSize, if
// nonzero, validates every returned vector's dimension.
func NewHTTPService(baseURL, apiKey, model string, expectedSize int) *HTTPService {
	return &HTTPService{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		ModelName:    model,
		ExpectedSize: expectedSize,
		client:       http.DefaultClient,
	}
}

// Model returns the configured embedding model name.
func (s *HTTPService) Model() string { return s.ModelName }

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingData struct {
	Embedding []float64 `json:"embedding"`
}

type embeddingsResponse struct {
	Data []embeddingData `json:"data"`
}

// GenerateAsync dispatches the batch's texts to the embedding endpoint on
// a separate goroutine and delivers the outcome to sink. The batch is
// assumed to be single-folder, which is how the scheduler and the startup
// uncompleted-embeddings path both build batches.
func (s *HTTPService) GenerateAsync(ctx context.Context, batch []Chunk, sink Sink) {
	if len(batch) == 0 {
		return
	}
	folderID := batch[0].FolderID
	batchID := uuid.New().String()

	go func() {
		vectors, err := s.embed(ctx, textsOf(batch))
		if err != nil {
			contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "embedding batch failed", "batch_id", batchID, "folder_id", folderID, "count", len(batch), "error", err)
			sink.OnError(ctx, folderID, err)
			return
		}
		results := make([]Result, len(batch))
		for i, c := range batch {
			results[i] = Result{FolderID: c.FolderID, ChunkID: c.ChunkID, Vector: vectors[i]}
		}
		sink.OnResults(ctx, results)
	}()
}

// GenerateSync embeds a single text and blocks for the reply.
func (s *HTTPService) GenerateSync(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return vectors[0], nil
}

func textsOf(batch []Chunk) []string {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}
	return texts
}

func (s *HTTPService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	url := fmt.Sprintf("%s/v1/embeddings", s.BaseURL)
	payload := embeddingsRequest{Model: s.ModelName, Input: texts}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Data))
	}

	result := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		if s.ExpectedSize > 0 && len(d.Embedding) != s.ExpectedSize {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, len(d.Embedding), s.ExpectedSize)
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		result[i] = vec
	}
	return result, nil
}
