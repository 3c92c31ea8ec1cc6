package connectivity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// statusFileName matches the record name the dashboard has always used.
const statusFileName = "omnichat_statuses.json"

// FileStore persists the status map as one JSON file.
type FileStore struct {
	path   string
	mu     sync.Mutex
	closed bool
}

// NewFileStore creates a file-backed store under baseDir.
// If baseDir is empty, uses ~/.omnichat.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".omnichat")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &FileStore{
		path: filepath.Join(baseDir, statusFileName),
	}, nil
}

// Save replaces the persisted map.
func (f *FileStore) Save(ctx context.Context, statuses map[string]Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}

	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal statuses: %w", err)
	}

	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("write statuses: %w", err)
	}
	return nil
}

// Load restores the persisted map. A missing file yields an empty map.
func (f *FileStore) Load(ctx context.Context) (map[string]Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrStoreClosed
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Status{}, nil
		}
		return nil, fmt.Errorf("read statuses: %w", err)
	}

	statuses := make(map[string]Status)
	if err := json.Unmarshal(data, &statuses); err != nil {
		return nil, fmt.Errorf("parse statuses: %w", err)
	}
	return statuses, nil
}

// Close implements Store.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
