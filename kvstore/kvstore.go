// Package kvstore provides the persistent key-value storage backends the SDK
// uses for credentials. Implementations can use a file, memory, or other backends.
package kvstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists opaque string values under stable keys. Values written
// through Set must be readable after a process restart for persistent
// implementations.
type Store interface {
	// Get retrieves the value for key. The second return reports presence.
	Get(key string) (string, bool)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Delete removes every named key in one operation. Missing keys are not
	// an error. Persistent implementations must not leave a partially
	// deleted state behind on success.
	Delete(keys ...string) error
}

// Memory is an in-process Store, suitable for tests and ephemeral sessions.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// File is a Store backed by a single JSON file. Writes go through a temp
// file and rename so readers never observe a torn write. An unreadable or
// corrupt file is treated as an empty store rather than a fatal error, the
// same way a browser profile recovers from damaged local storage.
type File struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// NewFile opens (or lazily creates) a file-backed store at path.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("kvstore: path is required")
	}
	f := &File{path: path, values: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("kvstore: read %s: %w", path, err)
	}
	// Corrupt contents reset the store.
	_ = json.Unmarshal(data, &f.values)
	if f.values == nil {
		f.values = make(map[string]string)
	}
	return f, nil
}

func (f *File) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f.flushLocked()
}

func (f *File) Delete(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return f.flushLocked()
}

func (f *File) flushLocked() error {
	data, err := json.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("kvstore: encode: %w", err)
	}
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".kvstore-*")
	if err != nil {
		return fmt.Errorf("kvstore: write %s: %w", f.path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("kvstore: write %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("kvstore: write %s: %w", f.path, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("kvstore: write %s: %w", f.path, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("kvstore: write %s: %w", f.path, err)
	}
	return nil
}
