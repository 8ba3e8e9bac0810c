package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ConfigStore persists user-level settings separately from runtime state,
// so wiping or corrupting the state file never loses configuration.
// Writes are buffered until Flush.
type ConfigStore struct {
	path string

	mu     sync.Mutex
	values map[string]json.RawMessage
	dirty  bool
}

// OpenConfigStore loads the settings file from dir, creating an empty
// store if the file does not exist yet.
func OpenConfigStore(dir string) (*ConfigStore, error) {
	s := &ConfigStore{
		path:   filepath.Join(dir, ConfigFileName),
		values: make(map[string]json.RawMessage),
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if err := json.Unmarshal(raw, &s.values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return s, nil
}

// Get decodes the value for key into out. Returns ErrNotFound for a
// missing key.
func (s *ConfigStore) Get(key string, out any) error {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode setting %q: %w", key, err)
	}
	return nil
}

// Set stores a value for key. The change is held in memory until Flush.
func (s *ConfigStore) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	s.dirty = true
	return nil
}

// Delete removes a key. Missing keys are a no-op.
func (s *ConfigStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// Keys returns the stored setting keys.
func (s *ConfigStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// Flush writes pending changes to disk. A clean store is a no-op.
func (s *ConfigStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	raw, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	s.dirty = false
	return nil
}
