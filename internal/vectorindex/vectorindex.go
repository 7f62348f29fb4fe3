// Package vectorindex maps chunk ids to vectors with k-NN search over a
// Qdrant collection, plus a load/save/is-loaded/file-exists lifecycle for
// callers that treat the index as a locally persisted artifact.
package vectorindex

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"localdocs/internal/contextutil"
)

// Index is the vector-index contract the coordinator and retriever use.
type Index interface {
	// Add upserts a vector under chunk_id, reporting success.
	Add(ctx context.Context, vector []float32, chunkID int64) (bool, error)
	// Remove deletes chunk_id's vector, if present.
	Remove(ctx context.Context, chunkID int64) error
	// Search returns up to k chunk ids ranked by similarity to vector.
	Search(ctx context.Context, vector []float32, k int) ([]int64, error)
	// Load verifies the backing collection and marker file are present.
	Load(ctx context.Context) (bool, error)
	// Save durably persists the current state (the marker file).
	Save(ctx context.Context) error
	// IsLoaded reports whether Load has succeeded.
	IsLoaded() bool
	// FileExists reports whether the marker file is present on disk.
	FileExists() bool
}

// QdrantIndex implements Index over a Qdrant collection. Qdrant is a
// remote gRPC service with no native local-file concept, so the
// load/save/file-exists lifecycle is modeled with a marker file colocated
// with the metadata store's model_path; the durable state of truth is the
// Qdrant collection itself.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	vectorSize int
	markerPath string
	loaded     bool
}

// Open creates a Qdrant-backed vector index. qdrantURL is the Qdrant HTTP
// URL (e.g. "http://localhost:6333"); the gRPC port is derived as HTTP
// port + 1. modelPath is the same directory the metadata store opens its
// database file in, so the marker file sits next to the database.
func Open(qdrantURL, collection string, vectorSize int, modelPath string) (*QdrantIndex, error) {
	parsed, err := url.Parse(qdrantURL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant url: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := 6334
	if parsed.Port() != "" {
		if httpPort, err := strconv.Atoi(parsed.Port()); err == nil {
			port = httpPort + 1
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &QdrantIndex{
		client:     client,
		collection: collection,
		vectorSize: vectorSize,
		markerPath: filepath.Join(modelPath, collection+".qdrant-loaded"),
	}, nil
}

// EnsureCollection creates the backing Qdrant collection if absent,
// validating the vector size if it already exists.
func (idx *QdrantIndex) EnsureCollection(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := idx.client.CollectionExists(ctx, idx.collection)
	if err != nil {
		return fmt.Errorf("check collection existence: %w", err)
	}
	if !exists {
		logger.InfoContext(ctx, "creating vector collection", "collection", idx.collection, "vector_size", idx.vectorSize)
		return idx.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: idx.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(idx.vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
	}
	return nil
}

// Add upserts a single point keyed by chunkID, used directly as Qdrant's
// numeric point id since chunk ids are already unique monotone integers.
func (idx *QdrantIndex) Add(ctx context.Context, vector []float32, chunkID int64) (bool, error) {
	logger := contextutil.LoggerFromContext(ctx)
	_, err := idx.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: idx.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDNum(uint64(chunkID)),
			Vectors: qdrant.NewVectors(vector...),
		}},
	})
	if err != nil {
		logger.ErrorContext(ctx, "vector add failed", "chunk_id", chunkID, "error", err)
		return false, fmt.Errorf("add vector: %w", err)
	}
	return true, nil
}

// Remove deletes chunkID's point. A missing point is not an error; a
// folder removal may race an in-flight embedding batch.
func (idx *QdrantIndex) Remove(ctx context.Context, chunkID int64) error {
	_, err := idx.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: idx.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDNum(uint64(chunkID))),
	})
	if err != nil {
		return fmt.Errorf("remove vector: %w", err)
	}
	return nil
}

// Search returns up to k chunk ids ranked by similarity.
func (idx *QdrantIndex) Search(ctx context.Context, vector []float32, k int) ([]int64, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	limit := uint64(k)
	points, err := idx.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: idx.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search vectors: %w", err)
	}

	ids := make([]int64, 0, len(points))
	for _, p := range points {
		if p.Id == nil {
			continue
		}
		ids = append(ids, int64(p.Id.GetNum()))
	}
	return ids, nil
}

// Load verifies the Qdrant collection exists and the marker file is
// present, setting the in-memory loaded flag IsLoaded reports.
func (idx *QdrantIndex) Load(ctx context.Context) (bool, error) {
	exists, err := idx.client.CollectionExists(ctx, idx.collection)
	if err != nil {
		return false, fmt.Errorf("check collection existence: %w", err)
	}
	if !exists {
		idx.loaded = false
		return false, nil
	}
	idx.loaded = idx.FileExists()
	return idx.loaded, nil
}

// Save durably records that the index reflects committed state, touching
// the marker file. Called after every successful batch of Add/Remove
// calls, strictly after the metadata transaction commits.
func (idx *QdrantIndex) Save(ctx context.Context) error {
	f, err := os.OpenFile(idx.markerPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("touch marker file: %w", err)
	}
	defer func() { _ = f.Close() }()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := f.WriteString(now); err != nil {
		return fmt.Errorf("write marker file: %w", err)
	}
	idx.loaded = true
	return nil
}

// IsLoaded reports whether Load (or Save) has established loaded state.
func (idx *QdrantIndex) IsLoaded() bool { return idx.loaded }

// FileExists reports whether the marker file is present on disk.
func (idx *QdrantIndex) FileExists() bool {
	_, err := os.Stat(idx.markerPath)
	return err == nil
}
