package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// UploadStore persists uploaded expense documents on the local filesystem,
// one folder per draft. Paths handed back to callers are always inside the
// configured base directory.
type UploadStore interface {
	// SaveUpload writes an uploaded document under the draft's folder and
	// returns the stored path and the URL the expense form will reference.
	SaveUpload(draftID, filename string, content []byte) (path string, url string, err error)

	// DraftDir returns the folder for a draft without creating it.
	DraftDir(draftID string) string

	// RemoveDraft deletes a draft's folder and everything in it. Removing
	// a folder that does not exist is not an error.
	RemoveDraft(draftID string) error
}

// LocalUploadStore implements UploadStore on the local filesystem
type LocalUploadStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalUploadStore creates an upload store rooted at baseDir
func NewLocalUploadStore(baseDir string, logger *zap.Logger) *LocalUploadStore {
	return &LocalUploadStore{baseDir: baseDir, logger: logger}
}

// SaveUpload writes the document and returns its path and reference URL
func (s *LocalUploadStore) SaveUpload(draftID, filename string, content []byte) (string, string, error) {
	if draftID == "" {
		return "", "", fmt.Errorf("cannot save upload: empty draft ID")
	}

	safeName := sanitizeName(filename)
	if safeName == "" {
		return "", "", fmt.Errorf("cannot save upload: unusable filename %q", filename)
	}

	dir := s.DraftDir(draftID)
	fullPath := filepath.Join(dir, safeName)
	if err := s.validatePath(fullPath); err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error("Failed to create draft folder",
			zap.String("draft_id", draftID),
			zap.Error(err))
		return "", "", fmt.Errorf("failed to create folder: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write upload",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", "", fmt.Errorf("failed to write file: %w", err)
	}

	url := fmt.Sprintf("/uploads/%s/%s", sanitizeName(draftID), safeName)
	s.logger.Debug("Upload saved",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))
	return fullPath, url, nil
}

// DraftDir returns the folder for a draft's uploads
func (s *LocalUploadStore) DraftDir(draftID string) string {
	return filepath.Join(s.baseDir, sanitizeName(draftID))
}

// RemoveDraft deletes a draft's uploads. Idempotent.
func (s *LocalUploadStore) RemoveDraft(draftID string) error {
	dir := s.DraftDir(draftID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Error("Failed to remove draft folder",
			zap.String("draft_id", draftID),
			zap.Error(err))
		return fmt.Errorf("failed to remove folder: %w", err)
	}
	s.logger.Debug("Removed draft folder", zap.String("path", dir))
	return nil
}

// validatePath ensures the resolved path stays inside the base directory
func (s *LocalUploadStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}
	return nil
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizeName strips path separators and traversal sequences so uploaded
// filenames cannot reach outside their draft folder
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	name = unsafeNameChars.ReplaceAllString(name, "")
	return strings.Trim(name, ".")
}
