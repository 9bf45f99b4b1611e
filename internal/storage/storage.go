package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/pagebeacon/internal/database"
)

// ProbeKey is written, read back and removed to check that a storage works.
const ProbeKey = "___storage_test___"

// Scope names used for the tracker's two storage areas.
const (
	ScopeLocal   = "local"
	ScopeSession = "session"
)

// ErrProbeMismatch is returned when the probe value does not read back.
var ErrProbeMismatch = errors.New("storage probe value mismatch")

// Storage is a string key/value store. GetItem returns "" for a missing key.
type Storage interface {
	GetItem(key string) (string, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
	Clear() error
	Len() (int, error)
}

// Memory is an in-memory Storage. The zero value is ready to use.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemory returns an empty Memory storage.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

// GetItem returns the stored value or "".
func (m *Memory) GetItem(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[key], nil
}

// SetItem stores value under key.
func (m *Memory) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]string)
	}
	m.items[key] = value
	return nil
}

// RemoveItem deletes key.
func (m *Memory) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Clear deletes every key.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]string)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

// SQLite is a Storage backed by one scope of the pagebeacon database.
type SQLite struct {
	db    *database.DB
	scope string
}

// NewSQLite returns a Storage over scope in db.
func NewSQLite(db *database.DB, scope string) *SQLite {
	return &SQLite{db: db, scope: scope}
}

// GetItem returns the stored value or "".
func (s *SQLite) GetItem(key string) (string, error) {
	v, err := s.db.GetValue(context.Background(), s.scope, key)
	if errors.Is(err, database.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// SetItem stores value under key.
func (s *SQLite) SetItem(key, value string) error {
	return s.db.SetValue(context.Background(), s.scope, key, value)
}

// RemoveItem deletes key.
func (s *SQLite) RemoveItem(key string) error {
	return s.db.DeleteValue(context.Background(), s.scope, key)
}

// Clear deletes every key in the scope.
func (s *SQLite) Clear() error {
	return s.db.ClearScope(context.Background(), s.scope)
}

// Len returns the number of keys in the scope.
func (s *SQLite) Len() (int, error) {
	return s.db.CountScope(context.Background(), s.scope)
}

// Probe checks that candidate can store, return and remove a value.
func Probe(candidate Storage) (err error) {
	if candidate == nil {
		return errors.New("storage unavailable")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("storage probe panicked: %v", r)
		}
	}()

	if err := candidate.SetItem(ProbeKey, ProbeKey); err != nil {
		return fmt.Errorf("failed to write probe: %w", err)
	}
	got, err := candidate.GetItem(ProbeKey)
	if err != nil {
		return fmt.Errorf("failed to read probe: %w", err)
	}
	if err := candidate.RemoveItem(ProbeKey); err != nil {
		return fmt.Errorf("failed to remove probe: %w", err)
	}
	if got != ProbeKey {
		return ErrProbeMismatch
	}
	return nil
}

// Fallback checks the storages of one page load. However many scopes
// fall back, it warns once.
type Fallback struct {
	logger *slog.Logger
	once   sync.Once
}

// NewFallback returns a Fallback. A nil logger disables the warning.
func NewFallback(logger *slog.Logger) *Fallback {
	return &Fallback{logger: logger}
}

// Safe returns candidate when it passes Probe, otherwise a fresh Memory.
func (f *Fallback) Safe(candidate Storage) Storage {
	if err := Probe(candidate); err != nil {
		f.once.Do(func() {
			if f.logger != nil {
				f.logger.Warn("storage unavailable, using in-memory fallback", "error", err)
			}
		})
		return NewMemory()
	}
	return candidate
}
