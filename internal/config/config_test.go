package config

import (
	"os"
	"path/filepath"
	"testing"
)

func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

func unsetEnv(key string) {
	_ = os.Unsetenv(key)
}

var envVars = []string{
	"LOCALDOCS_MODEL_PATH", "LOCALDOCS_CHUNK_SIZE", "LOCALDOCS_WATCHED_FOLDERS",
	"EMBEDDING_BASE_URL", "EMBEDDING_MODEL_NAME",
	"QDRANT_URL", "QDRANT_VECTOR_SIZE", "API_PORT",
}

func TestLoad(t *testing.T) {
	originalEnv := make(map[string]string)
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	}()

	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name: "valid config with all required fields",
			setupEnv: func(t *testing.T) {
				setEnv("LOCALDOCS_MODEL_PATH", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.ModelPath != "" && cfg.QdrantVectorSize == 768
			},
		},
		{
			name: "missing LOCALDOCS_MODEL_PATH",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
			},
			wantErr: true,
		},
		{
			name: "missing QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("LOCALDOCS_MODEL_PATH", t.TempDir())
			},
			wantErr: true,
		},
		{
			name: "invalid QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("LOCALDOCS_MODEL_PATH", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "invalid")
			},
			wantErr: true,
		},
		{
			name: "zero QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("LOCALDOCS_MODEL_PATH", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "0")
			},
			wantErr: true,
		},
		{
			name: "invalid LOCALDOCS_CHUNK_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("LOCALDOCS_MODEL_PATH", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("LOCALDOCS_CHUNK_SIZE", "-5")
			},
			wantErr: true,
		},
		{
			name: "default values for optional fields",
			setupEnv: func(t *testing.T) {
				setEnv("LOCALDOCS_MODEL_PATH", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.ChunkSize == 512 &&
					cfg.EmbeddingBaseURL == "http://localhost:8081" &&
					cfg.EmbeddingModelName == "granite-embedding-278m-multilingual" &&
					cfg.QdrantURL == "http://localhost:6333" &&
					cfg.APIPort == "9000" &&
					len(cfg.WatchedFolders) == 0
			},
		},
		{
			name: "custom chunk size and watched folders",
			setupEnv: func(t *testing.T) {
				setEnv("LOCALDOCS_MODEL_PATH", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("LOCALDOCS_CHUNK_SIZE", "1024")
				setEnv("LOCALDOCS_WATCHED_FOLDERS", "/tmp/a"+string(os.PathListSeparator)+"/tmp/b")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.ChunkSize == 1024 && len(cfg.WatchedFolders) == 2
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			originalWd, _ := os.Getwd()
			_ = os.Chdir(tmpDir)
			defer func() { _ = os.Chdir(originalWd) }()

			for _, key := range envVars {
				unsetEnv(key)
			}
			defer func() {
				for key, value := range originalEnv {
					if value != "" {
						setEnv(key, value)
					} else {
						unsetEnv(key)
					}
				}
			}()

			tt.setupEnv(t)

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Load() unexpected error: %v", err)
				return
			}

			if cfg == nil {
				t.Fatal("Load() returned nil config")
			}

			if tt.checkConfig != nil && !tt.checkConfig(cfg) {
				t.Errorf("Load() config validation failed")
			}
		})
	}
}

func TestLoad_CreatesModelPathDirectory(t *testing.T) {
	originalEnv := make(map[string]string)
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	}()

	tmpDir := t.TempDir()
	modelPath := filepath.Join(tmpDir, "nested", "model")

	setEnv("LOCALDOCS_MODEL_PATH", modelPath)
	setEnv("QDRANT_VECTOR_SIZE", "768")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		t.Errorf("Load() should create model_path directory: %v", err)
	}

	if cfg.ModelPath != modelPath {
		t.Errorf("Load() ModelPath = %v, want %v", cfg.ModelPath, modelPath)
	}
}

func TestGetEnv(t *testing.T) {
	originalValue := os.Getenv("TEST_ENV_VAR")
	defer func() {
		if originalValue != "" {
			setEnv("TEST_ENV_VAR", originalValue)
		} else {
			unsetEnv("TEST_ENV_VAR")
		}
	}()

	tests := []struct {
		name         string
		setupEnv     func()
		key          string
		defaultValue string
		want         string
	}{
		{
			name:         "env var set",
			setupEnv:     func() { setEnv("TEST_ENV_VAR", "set-value") },
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "set-value",
		},
		{
			name:         "env var not set",
			setupEnv:     func() { unsetEnv("TEST_ENV_VAR") },
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "default",
		},
		{
			name:         "empty env var uses default",
			setupEnv:     func() { setEnv("TEST_ENV_VAR", "") },
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupEnv()
			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}
