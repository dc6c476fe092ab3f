package config

import "sync"

// Store holds the current configuration snapshot. The watchdog's enable
// predicates and the config file watcher read and replace snapshots
// concurrently, so access goes through an RWMutex.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewStore creates a store seeded with the given configuration.
func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg}
}

// Snapshot returns the current configuration. Callers must treat the
// returned value as read-only.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace swaps in a new configuration snapshot.
func (s *Store) Replace(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// SetAuthSecret records a generated secret by swapping in a copy of the
// current configuration. Snapshots already handed out are never written
// through, so concurrent readers see either the old value or the new one.
func (s *Store) SetAuthSecret(secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := *s.cfg
	updated.Supervisor.AuthSecret = secret
	s.cfg = &updated
}
