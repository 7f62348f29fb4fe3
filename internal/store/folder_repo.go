package store

import (
	"context"
	"database/sql"
)

// UpsertFolder inserts a folder row if it does not already exist (unique by
// path) and returns the resulting row either way.
func UpsertFolder(ctx context.Context, q Queryer, path string) (*Folder, error) {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO folders (folder_path) VALUES (?) ON CONFLICT(folder_path) DO NOTHING`,
		path,
	); err != nil {
		return nil, New(KindStoreFailure, "upsert folder", err)
	}
	return FolderByPath(ctx, q, path)
}

// FolderByPath looks up a folder by its unique path.
func FolderByPath(ctx context.Context, q Queryer, path string) (*Folder, error) {
	var f Folder
	err := q.QueryRowContext(ctx,
		`SELECT id, folder_path FROM folders WHERE folder_path = ?`, path,
	).Scan(&f.ID, &f.Path)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, New(KindStoreFailure, "select folder by path", err)
	}
	return &f, nil
}

// FolderByID looks up a folder by its id.
func FolderByID(ctx context.Context, q Queryer, id int64) (*Folder, error) {
	var f Folder
	err := q.QueryRowContext(ctx,
		`SELECT id, folder_path FROM folders WHERE id = ?`, id,
	).Scan(&f.ID, &f.Path)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, New(KindStoreFailure, "select folder by id", err)
	}
	return &f, nil
}

// RemoveFolder deletes a folder row. Callers must have already removed all
// collections, documents and chunks referencing it.
func RemoveFolder(ctx context.Context, q Queryer, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id); err != nil {
		return New(KindStoreFailure, "remove folder", err)
	}
	return nil
}

// CollectionCountForFolder returns how many collections still reference a
// folder, used to decide whether removing one collection should cascade
// into removing the folder itself.
func CollectionCountForFolder(ctx context.Context, q Queryer, folderID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collections WHERE folder_id = ?`, folderID,
	).Scan(&n)
	if err != nil {
		return 0, New(KindStoreFailure, "count collections for folder", err)
	}
	return n, nil
}
