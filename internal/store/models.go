package store

import "time"

// SchemaVersion is the current on-disk database version, embedded in the
// localdocs_v<N>.db filename.
const SchemaVersion = 2

// MinSupportedVersion is the oldest version the migration probe will open.
const MinSupportedVersion = 1

// BatchSize is the hard constant batch size for embedding dispatch.
const BatchSize = 100

// Folder is a unique, absolute filesystem path that backs one or more collections.
type Folder struct {
	ID   int64
	Path string
}

// Collection is a named view over exactly one folder.
type Collection struct {
	Name           string
	FolderID       int64
	LastUpdateTime *time.Time
	EmbeddingModel string
	ForceIndexing  bool
}

// Document is a single file tracked under a folder.
type Document struct {
	ID       int64
	FolderID int64
	MTime    int64 // epoch-ms
	Path     string
}

// Provenance carries the bibliographic fields copied onto every chunk of a document.
type Provenance struct {
	File     string
	Title    string
	Author   string
	Subject  string
	Keywords string
	Page     int // 1-based for PDF, -1 for plain text
	LineFrom int // always -1; line tracking not derived
	LineTo   int // always -1
}

// Chunk is a contiguous, word-joined slice of a document's text.
type Chunk struct {
	ID           int64
	DocumentID   int64
	Text         string
	Provenance   Provenance
	Words        int
	Tokens       int // always 0; no tokenizer is implemented
	HasEmbedding bool
}

// FolderStats are the per-folder aggregate counters returned by statistics queries.
type FolderStats struct {
	FolderID       int64
	DocumentCount  int
	TotalWords     int64
	TotalTokens    int64
}

// SearchRow is the provenance-joined projection returned by both retrieval paths.
type SearchRow struct {
	ChunkID  int64
	File     string
	Title    string
	Author   string
	DocMTime int64
	Text     string
	Page     int
	LineFrom int
	LineTo   int
}
