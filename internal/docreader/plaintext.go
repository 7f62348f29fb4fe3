package docreader

import (
	"io"
	"os"
	"strings"

	"localdocs/internal/chunker"
	"localdocs/internal/store"
)

// plainTextMaxChunks caps how many chunks one plain-text or markdown
// slice may produce per tick.
const plainTextMaxChunks = 100

// PlainReader reads plain-text and markdown files, resuming at a byte
// offset into the text stream actually handed to the Chunker (for
// markdown, that stream is the AST-flattened text, not the raw file).
type PlainReader struct {
	Chunker *chunker.Chunker
}

// NewPlainReader constructs a PlainReader over the given chunker.
func NewPlainReader(c *chunker.Chunker) *PlainReader {
	return &PlainReader{Chunker: c}
}

// ReadSlice reads up to 100 chunks starting at cursor.Position and returns
// the produced pieces, the advanced cursor, and whether the document is
// now fully processed (EOF reached). For plain text (.txt, .rst) this
// seeks the open file directly to the byte offset. Markdown must be
// flattened through its AST first (see FlattenMarkdown), so its cursor
// instead indexes into the flattened text rather than the raw file bytes.
func (r *PlainReader) ReadSlice(path string, kind Kind, cursor PlainCursor) (Slice, PlainCursor, error) {
	if kind == KindMarkdown {
		return r.readMarkdownSlice(path, cursor)
	}
	return r.readPlainSlice(path, cursor)
}

func (r *PlainReader) readPlainSlice(path string, cursor PlainCursor) (Slice, PlainCursor, error) {
	f, err := os.Open(path)
	if err != nil {
		return Slice{}, cursor, err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(cursor.Position, io.SeekStart); err != nil {
		return Slice{}, cursor, err
	}

	result, err := r.Chunker.Split(f, plainTextMaxChunks)
	if err != nil {
		return Slice{}, cursor, err
	}

	next := PlainCursor{Position: cursor.Position + result.BytesConsumed}
	return Slice{Chunks: result.Chunks, Complete: result.EOF}, next, nil
}

func (r *PlainReader) readMarkdownSlice(path string, cursor PlainCursor) (Slice, PlainCursor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Slice{}, cursor, err
	}
	text := FlattenMarkdown(raw)
	if cursor.Position >= int64(len(text)) {
		return Slice{Complete: true}, cursor, nil
	}

	result, err := r.Chunker.Split(strings.NewReader(text[cursor.Position:]), plainTextMaxChunks)
	if err != nil {
		return Slice{}, cursor, err
	}

	next := PlainCursor{Position: cursor.Position + result.BytesConsumed}
	complete := result.EOF && next.Position >= int64(len(text))
	return Slice{Chunks: result.Chunks, Complete: complete}, next, nil
}

// Provenance returns the provenance fields for a plain-text or markdown
// document; these carry no bibliographic metadata beyond the file path,
// and no page number.
func (r *PlainReader) Provenance(path string) store.Provenance {
	return baseProvenance(path)
}
