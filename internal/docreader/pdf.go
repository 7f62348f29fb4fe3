package docreader

import (
	"strings"

	"localdocs/internal/chunker"
	"localdocs/internal/store"
)

// PdfMetadata carries the bibliographic fields a PDF exposes, copied onto
// every chunk produced from that document.
type PdfMetadata struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
}

// PdfDocument is a single opened PDF. Decoding itself is an external
// concern; this engine only consumes page text and metadata.
type PdfDocument interface {
	PageCount() int
	// PageText returns the full text of a 1-based page number.
	PageText(page int) (string, error)
	Metadata() PdfMetadata
	Close() error
}

// PdfReader opens PDF files. Implementations live outside this engine.
type PdfReader interface {
	Open(path string) (PdfDocument, error)
}

// UnavailablePdfReader is wired when no PDF decoder is configured. Every
// open fails as unreadable, so the scheduler drops PDF work items instead
// of crashing the worker.
type UnavailablePdfReader struct{}

func (UnavailablePdfReader) Open(path string) (PdfDocument, error) {
	return nil, store.New(store.KindIoUnreadable, "no pdf reader configured", nil)
}

// PDFReader reads PDF documents page by page, resuming at a 1-based page
// number. The document is (re)loaded once per resumption rather than kept
// open across ticks.
type PDFReader struct {
	Chunker   *chunker.Chunker
	PdfReader PdfReader
}

// NewPDFReader constructs a PDFReader.
func NewPDFReader(c *chunker.Chunker, pr PdfReader) *PDFReader {
	return &PDFReader{Chunker: c, PdfReader: pr}
}

// ReadSlice reads one page's full text (page = cursor.Page, 1-based),
// streaming it to the Chunker with no chunk cap — a page is the natural
// work unit, unlike plain-text ticks — then advances the cursor to the
// next page. Completion is reported when the advanced page number exceeds
// the document's page count.
func (r *PDFReader) ReadSlice(path string, cursor PDFCursor) (Slice, PDFCursor, PdfMetadata, error) {
	doc, err := r.PdfReader.Open(path)
	if err != nil {
		return Slice{}, cursor, PdfMetadata{}, store.New(store.KindCorrupt, "open pdf", err)
	}
	defer func() { _ = doc.Close() }()

	meta := doc.Metadata()
	pageCount := doc.PageCount()

	if cursor.Page > pageCount {
		return Slice{Complete: true}, cursor, meta, nil
	}

	text, err := doc.PageText(cursor.Page)
	if err != nil {
		return Slice{}, cursor, meta, store.New(store.KindCorrupt, "read pdf page", err)
	}

	result, err := r.Chunker.Split(strings.NewReader(text), 0)
	if err != nil {
		return Slice{}, cursor, meta, err
	}

	next := PDFCursor{Page: cursor.Page + 1}
	complete := next.Page > pageCount
	return Slice{Chunks: result.Chunks, Complete: complete}, next, meta, nil
}

// Provenance returns the provenance for chunks produced from page, using
// metadata copied from the PDF on every page.
func (r *PDFReader) Provenance(path string, page int, meta PdfMetadata) store.Provenance {
	p := baseProvenance(path)
	p.Page = page
	p.Title = meta.Title
	p.Author = meta.Author
	p.Subject = meta.Subject
	p.Keywords = meta.Keywords
	return p
}
