package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
)

// legacyCollection is the subset of collection fields readable from any
// supported older schema version. Older versions lack last_update_time,
// embedding_model and force_indexing, so only name and folder path are
// carried forward.
type legacyCollection struct {
	name       string
	folderPath string
}

// migrateForward reads the surviving collection set out of an older-version
// database using a version-specific select, closes it, creates a fresh
// current-version database, and re-inserts each collection with
// force_indexing=true and an unset last_update_time. No document or chunk
// rows are migrated; users are told to reindex.
func migrateForward(modelPath string, oldDB *sql.DB, oldVersion int) (*Store, error) {
	collections, err := readLegacyCollections(oldDB, oldVersion)
	closeErr := oldDB.Close()
	if err != nil {
		return nil, New(KindStoreFailure, "read legacy collections", err)
	}
	if closeErr != nil {
		return nil, New(KindStoreFailure, "close legacy db", closeErr)
	}

	newPath := filepath.Join(modelPath, filename(SchemaVersion))
	newDB, err := open(newPath)
	if err != nil {
		return nil, New(KindStoreFailure, "create migrated db", err)
	}
	if err := migrate(newDB); err != nil {
		_ = newDB.Close()
		return nil, err
	}

	s := &Store{db: newDB, path: newPath}
	ctx := context.Background()
	for _, c := range collections {
		folder, err := UpsertFolder(ctx, newDB, c.folderPath)
		if err != nil {
			_ = newDB.Close()
			return nil, err
		}
		if err := AddCollection(ctx, newDB, &Collection{
			Name:           c.name,
			FolderID:       folder.ID,
			LastUpdateTime: nil,
			EmbeddingModel: defaultEmbeddingModel,
			ForceIndexing:  true,
		}); err != nil {
			_ = newDB.Close()
			return nil, err
		}
	}

	return s, nil
}

// defaultEmbeddingModel fills collections whose embedding_model column did
// not exist in the schema version they migrated from. Nothing replaces it
// afterwards: re-adding the folder keeps the existing collection row, so a
// migrated collection carries this value as its model name.
const defaultEmbeddingModel = "unset"

// readLegacyCollections selects (name, folder path) pairs joining whatever
// folders/collections tables exist in the older schema. Versions 1 and 2
// share the same folders/collections column names in this implementation,
// so a single query form covers both; a genuinely incompatible older
// version would need its own branch here.
func readLegacyCollections(db *sql.DB, version int) ([]legacyCollection, error) {
	rows, err := db.Query(`
		SELECT c.collection_name, f.folder_path
		FROM collections c
		JOIN folders f ON f.id = c.folder_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []legacyCollection
	for rows.Next() {
		var c legacyCollection
		if err := rows.Scan(&c.name, &c.folderPath); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RemoveVersionedFile deletes a specific versioned database file from
// modelPath, used by tests that set up an old-version fixture.
func RemoveVersionedFile(modelPath string, version int) error {
	return os.Remove(filepath.Join(modelPath, filename(version)))
}
