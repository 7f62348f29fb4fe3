package store

import (
	"context"
	"database/sql"
)

// chunksFTSColumns lists the indexable columns mirrored into chunks_fts, in
// the order every fts5-targeting statement below uses.
const chunksFTSColumns = "chunk_text, file, title, author, subject, keywords"

// AddChunk inserts a chunk row, mirrors it into chunks_fts, and returns
// the assigned monotone id.
func AddChunk(ctx context.Context, q Queryer, c *Chunk) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO chunks (document_id, chunk_text, file, title, author, subject, keywords, page, line_from, line_to, words, tokens, has_embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)`,
		c.DocumentID, c.Text, c.Provenance.File, c.Provenance.Title, c.Provenance.Author,
		c.Provenance.Subject, c.Provenance.Keywords, c.Provenance.Page, c.Provenance.LineFrom,
		c.Provenance.LineTo, c.Words,
	)
	if err != nil {
		return 0, New(KindStoreFailure, "insert chunk", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, New(KindStoreFailure, "read inserted chunk id", err)
	}

	if _, err := q.ExecContext(ctx,
		`INSERT INTO chunks_fts(rowid, `+chunksFTSColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, c.Text, c.Provenance.File, c.Provenance.Title, c.Provenance.Author,
		c.Provenance.Subject, c.Provenance.Keywords,
	); err != nil {
		return 0, New(KindStoreFailure, "mirror chunk into fts", err)
	}

	return id, nil
}

// ChunksByDocument returns every chunk for a document, ordered by id
// (insertion order, hence stream order).
func ChunksByDocument(ctx context.Context, q Queryer, documentID int64) ([]Chunk, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT chunk_id, document_id, chunk_text, file, title, author, subject, keywords, page, line_from, line_to, words, tokens, has_embedding
		 FROM chunks WHERE document_id = ? ORDER BY chunk_id`, documentID,
	)
	if err != nil {
		return nil, New(KindStoreFailure, "select chunks by document", err)
	}
	defer func() { _ = rows.Close() }()
	return scanChunks(rows)
}

// RemoveChunksByDocument deletes every chunk for a document (and mirrors
// the deletion into chunks_fts), returning the ids removed so the caller
// can issue VectorIndex.remove for each.
func RemoveChunksByDocument(ctx context.Context, q Queryer, documentID int64) ([]int64, error) {
	chunks, err := ChunksByDocument(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO chunks_fts(chunks_fts, rowid, `+chunksFTSColumns+`) VALUES ('delete', ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Text, c.Provenance.File, c.Provenance.Title, c.Provenance.Author,
			c.Provenance.Subject, c.Provenance.Keywords,
		); err != nil {
			return nil, New(KindStoreFailure, "unmirror chunk from fts", err)
		}
		ids = append(ids, c.ID)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return nil, New(KindStoreFailure, "delete chunks by document", err)
	}
	return ids, nil
}

// UncompletedChunks returns chunks with has_embedding = 0 for a folder,
// used by the startup uncompleted-embeddings path.
func UncompletedChunks(ctx context.Context, q Queryer, folderID int64) ([]Chunk, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT c.chunk_id, c.document_id, c.chunk_text, c.file, c.title, c.author, c.subject, c.keywords,
		       c.page, c.line_from, c.line_to, c.words, c.tokens, c.has_embedding
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.folder_id = ? AND c.has_embedding = 0
		ORDER BY c.chunk_id
	`, folderID)
	if err != nil {
		return nil, New(KindStoreFailure, "select uncompleted chunks", err)
	}
	defer func() { _ = rows.Close() }()
	return scanChunks(rows)
}

// SetHasEmbedding flips the has_embedding flag for a chunk. Callers must
// only set it true after the vector index add has succeeded for that
// chunk. If the chunk row no longer exists (folder removed mid-flight)
// this silently updates zero rows.
func SetHasEmbedding(ctx context.Context, q Queryer, chunkID int64, has bool) error {
	_, err := q.ExecContext(ctx, `UPDATE chunks SET has_embedding = ? WHERE chunk_id = ?`, has, chunkID)
	if err != nil {
		return New(KindStoreFailure, "set has_embedding", err)
	}
	return nil
}

// FileForChunk returns the file path recorded on a chunk, used for
// progress UX when reporting which document an embedding batch belongs to.
func FileForChunk(ctx context.Context, q Queryer, chunkID int64) (string, error) {
	var file string
	err := q.QueryRowContext(ctx, `SELECT file FROM chunks WHERE chunk_id = ?`, chunkID).Scan(&file)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", New(KindStoreFailure, "select file for chunk", err)
	}
	return file, nil
}

func scanChunks(rows *sql.Rows) ([]Chunk, error) {
	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(
			&c.ID, &c.DocumentID, &c.Text, &c.Provenance.File, &c.Provenance.Title,
			&c.Provenance.Author, &c.Provenance.Subject, &c.Provenance.Keywords,
			&c.Provenance.Page, &c.Provenance.LineFrom, &c.Provenance.LineTo,
			&c.Words, &c.Tokens, &c.HasEmbedding,
		); err != nil {
			return nil, New(KindStoreFailure, "scan chunk", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
