package draft

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no stored draft exists for a key.
var ErrNotFound = errors.New("draft: not found")

// Store persists draft snapshots keyed by record identity.
type Store interface {
	Get(Key) (Draft, error)
	Put(Key, Draft) error
	Delete(Key) error
}

// FileStore keeps one JSON document per draft under a directory.
//
// Concurrent editors of the same record follow last-local-write-wins: each
// flush replaces the whole document, so the later writer's snapshot simply
// supersedes the earlier one. No merging is attempted.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(key Key) string {
	if key.IsNew() {
		return filepath.Join(s.dir, "draft-new.json")
	}
	return filepath.Join(s.dir, fmt.Sprintf("draft-%d.json", key.RecordID()))
}

// Get reads the stored draft if present.
func (s *FileStore) Get(key Key) (Draft, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Draft{}, ErrNotFound
		}
		return Draft{}, fmt.Errorf("draft: read %s: %w", key, err)
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return Draft{}, fmt.Errorf("draft: decode %s: %w", key, err)
	}
	return d, nil
}

// Put writes the draft snapshot for a key.
func (s *FileStore) Put(key Key, d Draft) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("draft: ensure dir: %w", err)
	}
	encoded, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("draft: encode %s: %w", key, err)
	}
	if err := os.WriteFile(s.path(key), append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("draft: write %s: %w", key, err)
	}
	return nil
}

// Delete removes the stored draft. Deleting an absent draft is not an error.
func (s *FileStore) Delete(key Key) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("draft: delete %s: %w", key, err)
	}
	return nil
}
