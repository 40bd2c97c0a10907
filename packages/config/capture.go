package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/hitman-sh/hitman/packages/scope"
)

// CaptureStore owns the on-disk store of values extracted from responses.
// All writes go through the store's mutex, so concurrent flurry workers
// never interleave at the byte level, and every write replaces the file
// atomically so a crash can never leave a torn file behind.
type CaptureStore struct {
	mu     sync.Mutex
	path   string
	values map[string]any
}

// OpenCaptureStore reads the capture file at path, tolerating a missing
// file but not a malformed one.
func OpenCaptureStore(path string) (*CaptureStore, error) {
	s := &CaptureStore{
		path:   path,
		values: make(map[string]any),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return s, nil
}

// Persist writes one captured value and flushes the store to disk before
// returning. Last writer wins on conflicting names.
func (s *CaptureStore) Persist(name string, value scope.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[name] = value.ToTOML()
	return s.flushLocked()
}

// PersistAll writes a batch of captured values in a single file rewrite.
func (s *CaptureStore) PersistAll(values map[string]scope.Value) error {
	if len(values) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, value := range values {
		s.values[name] = value.ToTOML()
	}
	return s.flushLocked()
}

// flushLocked rewrites the whole capture file via a temporary file and an
// atomic rename. Callers must hold the mutex.
func (s *CaptureStore) flushLocked() error {
	data, err := toml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encoding capture data: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".hitman-data-*.toml")
	if err != nil {
		return fmt.Errorf("persisting captures: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("persisting captures: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("persisting captures: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persisting captures: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persisting captures: %w", err)
	}
	return nil
}

// cookieKey holds response cookies inside the capture file. It is not a
// variable and never enters the scope layer.
const cookieKey = "Cookies"

// StoreCookies persists raw Set-Cookie header values, replacing the
// previous cookie set.
func (s *CaptureStore) StoreCookies(headers []string) error {
	if len(headers) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cookies := make([]any, 0, len(headers))
	for _, h := range headers {
		cookies = append(cookies, h)
	}
	s.values[cookieKey] = cookies
	return s.flushLocked()
}

// CookieHeaders returns the persisted Set-Cookie header values.
func (s *CaptureStore) CookieHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.values[cookieKey].([]any)
	if !ok {
		return nil
	}
	headers := make([]string, 0, len(raw))
	for _, v := range raw {
		if h, ok := v.(string); ok {
			headers = append(headers, h)
		}
	}
	return headers
}

// Layer exposes the captured values as a scope layer. Entries that cannot
// be represented as values are skipped.
func (s *CaptureStore) Layer() scope.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()

	vars := make(map[string]scope.Value, len(s.values))
	for k, raw := range s.values {
		if k == cookieKey {
			continue
		}
		v, err := scope.FromTOML(raw)
		if err != nil {
			continue
		}
		vars[k] = v
	}
	return scope.Layer{Name: "captures", Vars: vars}
}
