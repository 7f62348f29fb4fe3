package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// BatchSize is the hard constant dispatch size for embedding batches. It
// is not configurable.
const BatchSize = 100

// Config holds all configuration for the indexing engine.
type Config struct {
	ModelPath          string
	ChunkSize          int
	EmbeddingBaseURL   string
	EmbeddingAPIKey    string
	EmbeddingModelName string
	QdrantURL          string
	QdrantCollection   string
	QdrantVectorSize   int
	WatchedFolders     []string
	APIPort            string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	loadDotEnv()

	modelPath := getEnv("LOCALDOCS_MODEL_PATH", "")
	if modelPath == "" {
		return nil, fmt.Errorf("LOCALDOCS_MODEL_PATH is required")
	}

	chunkSizeStr := getEnv("LOCALDOCS_CHUNK_SIZE", "512")
	chunkSize, err := strconv.Atoi(chunkSizeStr)
	if err != nil {
		return nil, fmt.Errorf("LOCALDOCS_CHUNK_SIZE must be a valid integer: %w", err)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("LOCALDOCS_CHUNK_SIZE must be greater than 0")
	}

	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}

	cfg := &Config{
		ModelPath:          modelPath,
		ChunkSize:          chunkSize,
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "localdocs"),
		QdrantVectorSize:   vectorSize,
		WatchedFolders:     splitFolders(getEnv("LOCALDOCS_WATCHED_FOLDERS", "")),
		APIPort:            getEnv("API_PORT", "9000"),
	}

	if err := os.MkdirAll(cfg.ModelPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model_path directory: %w", err)
	}

	return cfg, nil
}

// loadDotEnv tries to load a .env file from the current directory, then
// loads the nearest .env found in the current directory or up to four of
// its parents.
func loadDotEnv() {
	_ = godotenvLoad()

	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenvLoadFile(envPath)
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}

func splitFolders(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, string(os.PathListSeparator))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
