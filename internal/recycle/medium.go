package recycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Medium is a small key-value persistence medium private to one client
// instance. Get returns nil, nil for absent keys.
type Medium interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// MemoryMedium keeps values in process memory.
type MemoryMedium struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{values: map[string][]byte{}}
}

func (m *MemoryMedium) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

func (m *MemoryMedium) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

// FileMedium stores all keys in one JSON document on disk. Writes go to a
// temporary file that is renamed over the document.
type FileMedium struct {
	mu   sync.Mutex
	path string
}

func NewFileMedium(path string) (*FileMedium, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare cache directory: %w", err)
	}
	return &FileMedium{path: path}, nil
}

func (f *FileMedium) Get(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readLocked()
	if err != nil {
		return nil, err
	}
	value, ok := doc[key]
	if !ok {
		return nil, nil
	}
	return value, nil
}

func (f *FileMedium) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readLocked()
	if err != nil {
		// A corrupt document is replaced rather than blocking every write.
		doc = map[string]json.RawMessage{}
	}
	doc[key] = json.RawMessage(value)

	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".recycle-cache-*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

func (f *FileMedium) readLocked() (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	doc := map[string]json.RawMessage{}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode cache file: %w", err)
	}
	return doc, nil
}
