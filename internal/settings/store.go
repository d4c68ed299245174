package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ChangeFunc is called after a key has been written.
type ChangeFunc func(key string, value any)

// Store is a small JSON-file key/value store.
type Store struct {
	path string

	mu        sync.RWMutex
	values    map[string]any
	listeners []ChangeFunc
}

// NewStore opens (or lazily creates) the settings file at path. A missing
// or unreadable file yields an empty store; the error is returned alongside
// so callers can log it.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]any)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("settings store: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		s.values = make(map[string]any)
		return s, fmt.Errorf("settings store: decode %s: %w", path, err)
	}
	return s, nil
}

// GetBool returns the stored boolean for key, or def when absent or not a bool.
func (s *Store) GetBool(key string, def bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key].(bool); ok {
		return v
	}
	return def
}

// SetBool stores value under key, persists the file and notifies listeners.
// Listeners are notified even when persisting fails.
func (s *Store) SetBool(key string, value bool) error {
	s.mu.Lock()
	s.values[key] = value
	err := s.persistLocked()
	listeners := make([]ChangeFunc, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(key, value)
	}
	return err
}

// Subscribe registers fn for change notifications.
func (s *Store) Subscribe(fn ChangeFunc) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("settings store: marshal: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("settings store: mkdir %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("settings store: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			slog.Debug("settings temp cleanup failed", "path", tmp, "error", rmErr)
		}
		return fmt.Errorf("settings store: rename: %w", err)
	}
	return nil
}
