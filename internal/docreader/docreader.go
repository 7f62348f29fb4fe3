// Package docreader produces text and provenance from the supported file
// kinds (plain text, markdown, PDF) for the Chunker to split.
package docreader

import (
	"path/filepath"

	"localdocs/internal/chunker"
	"localdocs/internal/store"
)

// Kind classifies a document's extension into one of the read strategies.
type Kind int

const (
	// KindUnsupported means the extension is not one of the supported
	// inputs (txt, md, rst, pdf).
	KindUnsupported Kind = iota
	KindPlain
	KindMarkdown
	KindPDF
)

// supportedExtensions maps exact suffixes to a Kind. Matching is
// case-sensitive: ".PDF" is not supported.
var supportedExtensions = map[string]Kind{
	".txt": KindPlain,
	".rst": KindPlain,
	".md":  KindMarkdown,
	".pdf": KindPDF,
}

// ClassifyPath returns the read strategy for path's extension, and
// whether it is supported at all.
func ClassifyPath(path string) (Kind, bool) {
	k, ok := supportedExtensions[filepath.Ext(path)]
	return k, ok
}

// IsSupported reports whether path has one of the supported extensions.
func IsSupported(path string) bool {
	_, ok := ClassifyPath(path)
	return ok
}

// Slice is one call's worth of produced chunks plus the advanced cursor
// state the caller (the scan scheduler) persists on the DocumentInfo work
// item for the next tick.
type Slice struct {
	Chunks   []chunker.Piece
	Complete bool
}

// PlainCursor resumes a plain-text or markdown scan at a byte offset into
// the (possibly flattened) text stream.
type PlainCursor struct {
	Position int64
}

// PDFCursor resumes a PDF scan at a 1-based page number.
type PDFCursor struct {
	Page int
}

// baseProvenance builds the provenance fields common to every chunk of a
// document read by this package. Line tracking is never derived, so
// LineFrom/LineTo are always -1.
func baseProvenance(path string) store.Provenance {
	return store.Provenance{
		File:     path,
		Page:     -1,
		LineFrom: -1,
		LineTo:   -1,
	}
}
