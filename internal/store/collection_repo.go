package store

import (
	"context"
	"database/sql"
)

// AddCollection inserts a collection row. Callers must have already checked
// for the `(name, folder)` pair's existence if they want upsert semantics;
// a duplicate insert fails the UNIQUE constraint and is surfaced as a
// StoreFailure.
func AddCollection(ctx context.Context, q Queryer, c *Collection) error {
	var lut any
	if c.LastUpdateTime != nil {
		lut = c.LastUpdateTime.UnixMilli()
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO collections (collection_name, folder_id, last_update_time, embedding_model, force_indexing)
		 VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.FolderID, lut, c.EmbeddingModel, c.ForceIndexing,
	)
	if err != nil {
		return New(KindStoreFailure, "add collection", err)
	}
	return nil
}

// CollectionExists reports whether the (name, folder) pair is already registered.
func CollectionExists(ctx context.Context, q Queryer, name string, folderID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collections WHERE collection_name = ? AND folder_id = ?`,
		name, folderID,
	).Scan(&n)
	if err != nil {
		return false, New(KindStoreFailure, "check collection exists", err)
	}
	return n > 0, nil
}

// RemoveCollection deletes one (name, folder) row.
func RemoveCollection(ctx context.Context, q Queryer, name string, folderID int64) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM collections WHERE collection_name = ? AND folder_id = ?`,
		name, folderID,
	)
	if err != nil {
		return New(KindStoreFailure, "remove collection", err)
	}
	return nil
}

// ClearForceIndexing unsets the force_indexing flag for a collection.
func ClearForceIndexing(ctx context.Context, q Queryer, name string, folderID int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE collections SET force_indexing = 0 WHERE collection_name = ? AND folder_id = ?`,
		name, folderID,
	)
	if err != nil {
		return New(KindStoreFailure, "clear force_indexing", err)
	}
	return nil
}

// ListCollections returns every collection row, used by cleanup and by
// migration's legacy-read path's modern counterpart.
func ListCollections(ctx context.Context, q Queryer) ([]Collection, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT collection_name, folder_id, last_update_time, embedding_model, force_indexing FROM collections`,
	)
	if err != nil {
		return nil, New(KindStoreFailure, "list collections", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Collection
	for rows.Next() {
		var c Collection
		var lut sql.NullInt64
		if err := rows.Scan(&c.Name, &c.FolderID, &lut, &c.EmbeddingModel, &c.ForceIndexing); err != nil {
			return nil, New(KindStoreFailure, "scan collection", err)
		}
		if lut.Valid {
			t := unixMilliToTime(lut.Int64)
			c.LastUpdateTime = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CollectionsForFolder lists the collection names that reference a folder.
func CollectionsForFolder(ctx context.Context, q Queryer, folderID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT collection_name FROM collections WHERE folder_id = ?`, folderID,
	)
	if err != nil {
		return nil, New(KindStoreFailure, "list collections for folder", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, New(KindStoreFailure, "scan collection name", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// SetLastUpdateTime stamps a collection's last_update_time to whenMillis.
func SetLastUpdateTime(ctx context.Context, q Queryer, name string, folderID int64, whenMillis int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE collections SET last_update_time = ? WHERE collection_name = ? AND folder_id = ?`,
		whenMillis, name, folderID,
	)
	if err != nil {
		return New(KindStoreFailure, "set last_update_time", err)
	}
	return nil
}
