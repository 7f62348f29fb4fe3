package store

import (
	"context"
	"database/sql"
)

// DocumentByPath looks up a document by its unique path.
func DocumentByPath(ctx context.Context, q Queryer, path string) (*Document, error) {
	var d Document
	err := q.QueryRowContext(ctx,
		`SELECT id, folder_id, document_time, document_path FROM documents WHERE document_path = ?`, path,
	).Scan(&d.ID, &d.FolderID, &d.MTime, &d.Path)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, New(KindStoreFailure, "select document by path", err)
	}
	return &d, nil
}

// AddDocument inserts a new document row and returns its assigned id.
func AddDocument(ctx context.Context, q Queryer, folderID int64, mtime int64, path string) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO documents (folder_id, document_time, document_path) VALUES (?, ?, ?)`,
		folderID, mtime, path,
	)
	if err != nil {
		return 0, New(KindStoreFailure, "insert document", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, New(KindStoreFailure, "read inserted document id", err)
	}
	return id, nil
}

// UpdateDocumentMTime updates a document's mtime in place (rescan path).
func UpdateDocumentMTime(ctx context.Context, q Queryer, documentID int64, mtime int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE documents SET document_time = ? WHERE id = ?`, mtime, documentID,
	)
	if err != nil {
		return New(KindStoreFailure, "update document mtime", err)
	}
	return nil
}

// RemoveDocument deletes a single document row. Callers must delete its
// chunks first.
func RemoveDocument(ctx context.Context, q Queryer, documentID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID)
	if err != nil {
		return New(KindStoreFailure, "remove document", err)
	}
	return nil
}

// DocumentsForFolder lists every document under a folder, used by
// removeFolder (and so by cleanup's folder removal).
func DocumentsForFolder(ctx context.Context, q Queryer, folderID int64) ([]Document, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, folder_id, document_time, document_path FROM documents WHERE folder_id = ?`, folderID,
	)
	if err != nil {
		return nil, New(KindStoreFailure, "list documents for folder", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.FolderID, &d.MTime, &d.Path); err != nil {
			return nil, New(KindStoreFailure, "scan document", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AllDocuments lists every document row, used by cleanup.
func AllDocuments(ctx context.Context, q Queryer) ([]Document, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, folder_id, document_time, document_path FROM documents`)
	if err != nil {
		return nil, New(KindStoreFailure, "list all documents", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.FolderID, &d.MTime, &d.Path); err != nil {
			return nil, New(KindStoreFailure, "scan document", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AllFolders lists every folder row, used by changeChunkSize.
func AllFolders(ctx context.Context, q Queryer) ([]Folder, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, folder_path FROM folders`)
	if err != nil {
		return nil, New(KindStoreFailure, "list all folders", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Folder
	for rows.Next() {
		var f Folder
		if err := rows.Scan(&f.ID, &f.Path); err != nil {
			return nil, New(KindStoreFailure, "scan folder", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
