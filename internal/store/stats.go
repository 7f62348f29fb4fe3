package store

import "context"

// FolderStatistics computes the distinct-document count and sums of words
// and tokens for a folder. A null SUM (no rows) is coerced to 0
// explicitly via COALESCE rather than left to driver NULL-scan behavior.
func FolderStatistics(ctx context.Context, q Queryer, folderID int64) (*FolderStats, error) {
	var s FolderStats
	s.FolderID = folderID

	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE folder_id = ?`, folderID,
	).Scan(&s.DocumentCount)
	if err != nil {
		return nil, New(KindStoreFailure, "count documents for folder", err)
	}

	err = q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(c.words), 0), COALESCE(SUM(c.tokens), 0)
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.folder_id = ?
	`, folderID).Scan(&s.TotalWords, &s.TotalTokens)
	if err != nil {
		return nil, New(KindStoreFailure, "sum words/tokens for folder", err)
	}

	return &s, nil
}
