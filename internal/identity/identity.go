// Package identity manages the client and session identifiers kept in
// the storage scopes. A Store never fails: when its backing storage
// errors, it degrades to a per-instance in-memory map.
package identity

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/pagebeacon/internal/storage"
)

// Storage keys used by the generic tracker.
const (
	ClientKey  = "clientId"
	SessionKey = "sessionId"
	CounterKey = "sessionCount"
)

// Storage keys used by the GA4 provider.
const (
	GA4ClientKey  = "_gacid"
	GA4SessionKey = "_gasid"
	GA4CounterKey = "_gasct"
)

// MaxIDLength is the widest identifier RandomID produces.
const MaxIDLength = 16

// Generator produces a new identifier value.
type Generator func() string

// RandomID returns a zero-padded random numeric string of the given width.
// Widths above MaxIDLength are capped, non-positive widths mean MaxIDLength.
func RandomID(length int) string {
	if length <= 0 || length > MaxIDLength {
		length = MaxIDLength
	}
	n := rand.Int64N(1e16) //nolint:gosec // identifiers are pseudonymous, not secrets
	return pad(strconv.FormatInt(n, 10), length)
}

// HashID returns a deterministic numeric digest of value with the given width.
func HashID(value string, length int) string {
	if length <= 0 || length > MaxIDLength {
		length = MaxIDLength
	}
	sum := sha3.Sum256([]byte(value))
	n := binary.BigEndian.Uint64(sum[:8]) % 1e16
	return pad(strconv.FormatUint(n, 10), length)
}

// pad left-pads s with zeros to length and truncates it to length.
func pad(s string, length int) string {
	if len(s) < length {
		s = strings.Repeat("0", length-len(s)) + s
	}
	return s[:length]
}

// Store reads and writes identifiers in one storage scope.
type Store struct {
	mu       sync.Mutex
	storage  storage.Storage
	logger   *slog.Logger
	name     string
	fallback map[string]string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for the fallback warning.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithName labels the store in log output, e.g. "local" or "session".
func WithName(name string) Option {
	return func(s *Store) {
		s.name = name
	}
}

// NewStore creates a Store over st. A nil st starts in fallback mode.
func NewStore(st storage.Storage, opts ...Option) *Store {
	s := &Store{
		storage: st,
		logger:  slog.Default(),
		name:    "storage",
	}
	for _, opt := range opts {
		opt(s)
	}
	if st == nil {
		s.degrade(fmt.Errorf("%s not available", s.name))
	}
	return s
}

// Degraded reports whether the store switched to its in-memory fallback.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallback != nil
}

// Get returns the value under key or "".
func (s *Store) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key)
}

// Set stores value under key.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
}

// GetOrCreate returns the value under key, creating it with gen on a miss.
// A nil gen uses RandomID(MaxIDLength).
func (s *Store) GetOrCreate(key string, gen Generator) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v := s.getLocked(key); v != "" {
		return v
	}
	if gen == nil {
		gen = func() string { return RandomID(MaxIDLength) }
	}
	v := gen()
	s.setLocked(key, v)
	return v
}

func (s *Store) getLocked(key string) string {
	if s.fallback != nil {
		return s.fallback[key]
	}
	v, err := s.call(func() (string, error) { return s.storage.GetItem(key) })
	if err != nil {
		s.degrade(err)
		return s.fallback[key]
	}
	return v
}

func (s *Store) setLocked(key, value string) {
	if s.fallback != nil {
		s.fallback[key] = value
		return
	}
	_, err := s.call(func() (string, error) { return "", s.storage.SetItem(key, value) })
	if err != nil {
		s.degrade(err)
		s.fallback[key] = value
	}
}

// call runs fn, converting a panic into an error.
func (s *Store) call(fn func() (string, error)) (v string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("storage panicked: %v", r)
		}
	}()
	return fn()
}

// degrade switches to the in-memory map and warns once.
func (s *Store) degrade(err error) {
	if s.fallback != nil {
		return
	}
	s.fallback = make(map[string]string)
	if s.logger != nil {
		s.logger.Warn("identity storage unavailable, identifiers will not persist",
			"store", s.name,
			"error", err,
		)
	}
}
