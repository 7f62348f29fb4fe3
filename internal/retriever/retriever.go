// Package retriever runs a two-path query over the indexed corpus: vector
// similarity when the vector index is loaded, falling back to an N-gram
// trigram query otherwise, both joined against the metadata store for
// provenance.
package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"localdocs/internal/embedding"
	"localdocs/internal/store"
	"localdocs/internal/vectorindex"
)

// strippedPunctuation is the punctuation set the N-gram path strips
// before splitting a query into words.
const strippedPunctuation = `.,;:!?'"()-`

// Result is the provenance-projected shape returned to callers.
type Result struct {
	File     string
	Title    string
	Author   string
	Date     string // yyyy, MMMM dd, derived from the document's mtime
	Text     string
	Page     int
	LineFrom int
	LineTo   int
}

// Retriever joins the vector and trigram query paths against the store.
type Retriever struct {
	Store     store.Queryer
	Index     vectorindex.Index
	Embedding embedding.Service
}

// New constructs a Retriever over its collaborators.
func New(q store.Queryer, index vectorindex.Index, embed embedding.Service) *Retriever {
	return &Retriever{Store: q, Index: index, Embedding: embed}
}

// Search queries the given collection names, returning up to k results.
func (r *Retriever) Search(ctx context.Context, collections []string, query string, k int) ([]Result, error) {
	if r.Index != nil && r.Index.IsLoaded() {
		return r.searchVector(ctx, collections, query, k)
	}
	return r.searchTrigram(ctx, collections, query, k)
}

func (r *Retriever) searchVector(ctx context.Context, collections []string, query string, k int) ([]Result, error) {
	vector, err := r.Embedding.GenerateSync(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		// An empty query vector fails silently.
		return nil, nil
	}

	ids, err := r.Index.Search(ctx, vector, k)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := store.SearchByChunkIDs(ctx, r.Store, ids, collections)
	if err != nil {
		return nil, err
	}
	return projectRows(rows), nil
}

func (r *Retriever) searchTrigram(ctx context.Context, collections []string, query string, k int) ([]Result, error) {
	words := ngramWords(query)
	if len(words) == 0 {
		return nil, nil
	}

	for n := len(words); n >= 3; n-- {
		matchQuery := nearOrQuery(words, n)
		rows, err := store.TrigramSearch(ctx, r.Store, matchQuery, collections, k)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			return projectRows(rows), nil
		}
	}
	return nil, nil
}

// ngramWords splits query on whitespace after stripping punctuation.
func ngramWords(query string) []string {
	var sb strings.Builder
	sb.Grow(len(query))
	for _, r := range query {
		if strings.ContainsRune(strippedPunctuation, r) {
			continue
		}
		sb.WriteRune(r)
	}
	return strings.Fields(sb.String())
}

// nearOrQuery ORs together every contiguous length-n word window as a
// NEAR(...) proximity match.
func nearOrQuery(words []string, n int) string {
	var clauses []string
	for i := 0; i+n <= len(words); i++ {
		window := words[i : i+n]
		quoted := make([]string, len(window))
		for j, w := range window {
			quoted[j] = fmt.Sprintf("%q", w)
		}
		clauses = append(clauses, fmt.Sprintf("NEAR(%s, %d)", strings.Join(quoted, " "), n))
	}
	return strings.Join(clauses, " OR ")
}

func projectRows(rows []store.SearchRow) []Result {
	out := make([]Result, len(rows))
	for i, row := range rows {
		out[i] = Result{
			File:     row.File,
			Title:    row.Title,
			Author:   row.Author,
			Date:     formatDate(row.DocMTime),
			Text:     row.Text,
			Page:     row.Page,
			LineFrom: row.LineFrom,
			LineTo:   row.LineTo,
		}
	}
	return out
}

// formatDate renders a document mtime (epoch-ms) as "yyyy, MMMM dd".
func formatDate(mtimeMillis int64) string {
	t := time.UnixMilli(mtimeMillis).UTC()
	return t.Format("2006, January 02")
}
