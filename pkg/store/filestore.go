package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vgmeter/controller/pkg/meter"
)

// FileStore keeps the snapshot as one JSON document on disk. Writes go to a
// temp file first and are renamed into place so a crash mid-write leaves
// the previous document intact.
type FileStore struct {
	path  string
	mutex sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	b, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil // first run
	}
	if err != nil {
		return nil, fmt.Errorf("error reading statefile: %w", err)
	}

	snapshot := &Snapshot{}
	err = json.Unmarshal(b, snapshot)
	if err != nil {
		return nil, fmt.Errorf("error decoding statefile: %w", err)
	}
	return snapshot, nil
}

func (f *FileStore) Save(ctx context.Context, s *meter.State, boilerEntityID string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	b, err := json.MarshalIndent(NewSnapshot(s, boilerEntityID), "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding statefile: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("error creating statefile dir: %w", err)
	}
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("error writing statefile: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("error replacing statefile: %w", err)
	}
	return nil
}
