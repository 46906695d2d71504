package mail

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store persists the fingerprint of the last processed message.
type Store interface {
	Load() (string, error)
	Save(fingerprint string) error
}

// MemoryStore keeps the fingerprint for the lifetime of the process only.
type MemoryStore struct {
	mu    sync.Mutex
	value string
}

func (s *MemoryStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, nil
}

func (s *MemoryStore) Save(fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = fingerprint
	return nil
}

// FileStore keeps the fingerprint in a single file.
type FileStore struct {
	Path string
}

func NewFileStore(dir, stream string) *FileStore {
	return &FileStore{Path: filepath.Join(dir, stream+".fingerprint")}
}

func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading fingerprint file %q: %w", s.Path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileStore) Save(fingerprint string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(fingerprint+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing fingerprint file %q: %w", tmp, err)
	}

	return os.Rename(tmp, s.Path)
}
