package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SnapshotFile persists a JSON document with atomic replace-on-write.
type SnapshotFile struct {
	mu   sync.Mutex
	path string
}

func NewSnapshotFile(dataDir, filename string) (*SnapshotFile, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &SnapshotFile{path: filepath.Join(dataDir, filename)}, nil
}

func (s *SnapshotFile) Path() string {
	return s.path
}

// Load decodes the file into v. A missing file is reported as found=false.
func (s *SnapshotFile) Load(v interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return false, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return true, nil
}

func (s *SnapshotFile) Save(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path)
}
