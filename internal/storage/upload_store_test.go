package storage

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *LocalUploadStore {
	t.Helper()
	return NewLocalUploadStore(t.TempDir(), zap.NewNop())
}

func TestSaveUpload_WritesUnderDraftFolder(t *testing.T) {
	store := newTestStore(t)

	path, url, err := store.SaveUpload("draft-1", "receipt.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	if string(content) != "%PDF-1.4" {
		t.Errorf("saved content = %q, want %q", content, "%PDF-1.4")
	}
	if url != "/uploads/draft-1/receipt.pdf" {
		t.Errorf("url = %q, want /uploads/draft-1/receipt.pdf", url)
	}
	if filepath.Dir(path) != store.DraftDir("draft-1") {
		t.Errorf("file saved outside draft folder: %s", path)
	}
}

func TestSaveUpload_SanitizesFilename(t *testing.T) {
	store := newTestStore(t)

	path, _, err := store.SaveUpload("draft-1", "../../etc/passwd", []byte("x"))
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}
	if filepath.Dir(path) != store.DraftDir("draft-1") {
		t.Errorf("traversal filename escaped draft folder: %s", path)
	}
}

func TestSaveUpload_RejectsEmptyDraftID(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := store.SaveUpload("", "receipt.pdf", []byte("x")); err == nil {
		t.Error("SaveUpload() with empty draft ID should fail")
	}
}

func TestSaveUpload_RejectsUnusableFilename(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := store.SaveUpload("draft-1", "../..", []byte("x")); err == nil {
		t.Error("SaveUpload() with traversal-only filename should fail")
	}
}

func TestRemoveDraft(t *testing.T) {
	store := newTestStore(t)

	path, _, err := store.SaveUpload("draft-1", "receipt.pdf", []byte("x"))
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}

	if err := store.RemoveDraft("draft-1"); err != nil {
		t.Fatalf("RemoveDraft() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("draft folder still exists after RemoveDraft")
	}

	// idempotent on a missing folder
	if err := store.RemoveDraft("draft-1"); err != nil {
		t.Errorf("second RemoveDraft() error = %v", err)
	}
}
