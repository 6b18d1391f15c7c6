package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/toolline/agent-memory/pkg/types"
)

// FileStore keeps the memory document as a single JSON file, matching
// the original flat-document layout. Writes go through a temp file and
// rename so a crash mid-save cannot corrupt the document.
type FileStore struct {
	path   string
	logger *log.Logger
}

// OpenFile creates a JSON file store rooted at path.
func OpenFile(path string, logger *log.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir store dir: %w", err)
	}
	return &FileStore{path: path, logger: logger}, nil
}

func (s *FileStore) Load(_ context.Context) (types.MemoryDocument, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.EmptyDocument(), nil
		}
		s.logger.Warn("store unreadable; treating as empty", "path", s.path, "error", err)
		return types.EmptyDocument(), nil
	}

	var doc types.MemoryDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		s.logger.Warn("store corrupt; treating as empty", "path", s.path, "error", err)
		return types.EmptyDocument(), nil
	}
	if doc.Version == "" {
		doc.Version = types.DocumentVersion
	}
	if doc.Entries == nil {
		doc.Entries = []types.MemoryEntry{}
	}
	if doc.Feedback == nil {
		doc.Feedback = []types.MemoryFeedback{}
	}
	return doc, nil
}

func (s *FileStore) Save(_ context.Context, doc types.MemoryDocument) error {
	doc.LastUpdated = time.Now().UTC()
	if doc.Version == "" {
		doc.Version = types.DocumentVersion
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
