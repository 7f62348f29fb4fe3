package store

import (
	"context"
	"strings"
)

// SearchByChunkIDs is the vector-path retrieval join: given a set of
// chunk ids (from a vector search) and a set of collection names, return
// the provenance-joined rows restricted to those collections. Order
// follows the order of ids, matching vector-similarity rank.
func SearchByChunkIDs(ctx context.Context, q Queryer, chunkIDs []int64, collections []string) ([]SearchRow, error) {
	if len(chunkIDs) == 0 || len(collections) == 0 {
		return nil, nil
	}

	idPlaceholders := placeholders(len(chunkIDs))
	colPlaceholders := placeholders(len(collections))

	query := `
		SELECT c.chunk_id, c.file, c.title, c.author, d.document_time, c.chunk_text, c.page, c.line_from, c.line_to
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		JOIN folders f ON f.id = d.folder_id
		JOIN collections col ON col.folder_id = f.id
		WHERE c.chunk_id IN (` + idPlaceholders + `) AND col.collection_name IN (` + colPlaceholders + `)
		GROUP BY c.chunk_id
	`

	args := make([]any, 0, len(chunkIDs)+len(collections))
	for _, id := range chunkIDs {
		args = append(args, id)
	}
	for _, c := range collections {
		args = append(args, c)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, New(KindStoreFailure, "vector-path search", err)
	}
	defer func() { _ = rows.Close() }()

	byID, err := scanSearchRows(rows)
	if err != nil {
		return nil, err
	}

	// Re-order to match the caller's rank order (SQL GROUP BY does not
	// preserve the IN-list order).
	lookup := make(map[int64]SearchRow, len(byID))
	for _, r := range byID {
		lookup[r.ChunkID] = r
	}
	out := make([]SearchRow, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if r, ok := lookup[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// TrigramSearch runs an FTS5 MATCH query against chunks_fts restricted to
// the given collection names, ordered by bm25 ascending (more negative is
// better in SQLite FTS5), limited to k rows. The collection filter is a
// subquery on folder_id rather than a join, so a folder backing several
// collections still yields each chunk once without a GROUP BY (which
// bm25() cannot be combined with).
func TrigramSearch(ctx context.Context, q Queryer, matchQuery string, collections []string, k int) ([]SearchRow, error) {
	if len(collections) == 0 {
		return nil, nil
	}

	colPlaceholders := placeholders(len(collections))
	query := `
		SELECT c.chunk_id, c.file, c.title, c.author, d.document_time, c.chunk_text, c.page, c.line_from, c.line_to
		FROM chunks_fts
		JOIN chunks c ON c.chunk_id = chunks_fts.rowid
		JOIN documents d ON d.id = c.document_id
		JOIN folders f ON f.id = d.folder_id
		WHERE chunks_fts MATCH ? AND f.id IN (
			SELECT folder_id FROM collections WHERE collection_name IN (` + colPlaceholders + `)
		)
		ORDER BY bm25(chunks_fts)
		LIMIT ?
	`

	args := make([]any, 0, len(collections)+2)
	args = append(args, matchQuery)
	for _, c := range collections {
		args = append(args, c)
	}
	args = append(args, k)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, New(KindStoreFailure, "trigram search", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSearchRows(rows)
}

func scanSearchRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]SearchRow, error) {
	var out []SearchRow
	for rows.Next() {
		var r SearchRow
		if err := rows.Scan(&r.ChunkID, &r.File, &r.Title, &r.Author, &r.DocMTime, &r.Text, &r.Page, &r.LineFrom, &r.LineTo); err != nil {
			return nil, New(KindStoreFailure, "scan search row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
