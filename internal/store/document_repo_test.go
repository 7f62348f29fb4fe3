package store

import (
	"context"
	"testing"
)

func TestDocumentByPath(t *testing.T) {
	s, folderID, docID := newTestStore(t)
	ctx := context.Background()

	doc, err := DocumentByPath(ctx, s.DB(), "/library/a.txt")
	if err != nil {
		t.Fatalf("DocumentByPath() error = %v", err)
	}
	if doc.ID != docID || doc.FolderID != folderID || doc.MTime != 1700000000000 {
		t.Errorf("DocumentByPath() = %+v", doc)
	}

	if _, err := DocumentByPath(ctx, s.DB(), "/library/missing.txt"); err != ErrNotFound {
		t.Errorf("DocumentByPath() on missing path error = %v, want ErrNotFound", err)
	}
}

func TestUpdateDocumentMTime(t *testing.T) {
	s, _, docID := newTestStore(t)
	ctx := context.Background()

	if err := UpdateDocumentMTime(ctx, s.DB(), docID, 1800000000000); err != nil {
		t.Fatalf("UpdateDocumentMTime() error = %v", err)
	}

	doc, err := DocumentByPath(ctx, s.DB(), "/library/a.txt")
	if err != nil {
		t.Fatalf("DocumentByPath() error = %v", err)
	}
	if doc.MTime != 1800000000000 {
		t.Errorf("MTime = %d, want updated in place", doc.MTime)
	}
	if doc.ID != docID {
		t.Errorf("ID changed on mtime update: %d, want %d", doc.ID, docID)
	}
}

func TestUpsertFolder_UniqueByPath(t *testing.T) {
	s, folderID, _ := newTestStore(t)
	ctx := context.Background()

	again, err := UpsertFolder(ctx, s.DB(), "/library")
	if err != nil {
		t.Fatalf("UpsertFolder() error = %v", err)
	}
	if again.ID != folderID {
		t.Errorf("UpsertFolder() same path id = %d, want existing %d", again.ID, folderID)
	}

	other, err := UpsertFolder(ctx, s.DB(), "/archive")
	if err != nil {
		t.Fatalf("UpsertFolder() error = %v", err)
	}
	if other.ID == folderID {
		t.Error("UpsertFolder() distinct path reused folder id")
	}
}

func TestRemoveFolderCascadeOrder(t *testing.T) {
	s, folderID, docID := newTestStore(t)
	ctx := context.Background()

	if _, err := AddChunk(ctx, s.DB(), &Chunk{DocumentID: docID, Text: "text", Words: 1}); err != nil {
		t.Fatalf("AddChunk() error = %v", err)
	}

	// Remove in dependency order: chunks, document, folder.
	if _, err := RemoveChunksByDocument(ctx, s.DB(), docID); err != nil {
		t.Fatalf("RemoveChunksByDocument() error = %v", err)
	}
	if err := RemoveDocument(ctx, s.DB(), docID); err != nil {
		t.Fatalf("RemoveDocument() error = %v", err)
	}
	if err := RemoveFolder(ctx, s.DB(), folderID); err != nil {
		t.Fatalf("RemoveFolder() error = %v", err)
	}

	folders, err := AllFolders(ctx, s.DB())
	if err != nil {
		t.Fatalf("AllFolders() error = %v", err)
	}
	if len(folders) != 0 {
		t.Errorf("len(folders) = %d, want 0", len(folders))
	}
}
