package config

import (
	"fmt"
	"log/slog"
	"sync"
)

// ChangeFunc observes a configuration swap.
type ChangeFunc func(prev Config, next Config)

// Store holds the live configuration and notifies subscribers on change.
type Store struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	loaded Loaded
	subs   map[int]ChangeFunc
	order  []int
	nextID int
}

// NewStore loads the configuration at explicitPath (or the resolved default).
func NewStore(explicitPath string, logger *slog.Logger) (*Store, error) {
	loaded, err := Load(explicitPath)
	if err != nil {
		return nil, err
	}
	return &Store{path: explicitPath, logger: logger, loaded: loaded, subs: map[int]ChangeFunc{}}, nil
}

// NewStaticStore wraps an already-built configuration.
func NewStaticStore(cfg Config) *Store {
	return &Store{loaded: Loaded{Config: cfg, Exists: true}, subs: map[int]ChangeFunc{}}
}

// Current returns the active configuration.
func (s *Store) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded.Config
}

// Loaded returns the active configuration with its load metadata.
func (s *Store) Loaded() Loaded {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Subscribe registers fn for future changes and returns an unsubscribe func.
func (s *Store) Subscribe(fn ChangeFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.order = append(s.order, id)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Reload re-reads the configuration file. On failure the previous
// configuration stays active.
func (s *Store) Reload() (Loaded, error) {
	path := s.path
	if path == "" {
		path = s.Loaded().Path
	}
	if path == "" {
		return s.Loaded(), fmt.Errorf("store has no backing file")
	}

	loaded, err := Load(path)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("config reload failed; keeping previous", "error", err.Error())
		}
		return s.Loaded(), err
	}
	s.swap(loaded)
	if s.logger != nil {
		s.logger.Info("config reloaded", "path", loaded.Path, "warnings", len(loaded.Warnings))
	}
	return loaded, nil
}

// Set replaces the active configuration after validating it.
func (s *Store) Set(cfg Config) error {
	warnings, err := Validate(cfg)
	if err != nil {
		return err
	}
	loaded := s.Loaded()
	loaded.Config = cfg
	loaded.Warnings = warnings
	s.swap(loaded)
	return nil
}

func (s *Store) swap(next Loaded) {
	s.mu.Lock()
	prev := s.loaded.Config
	s.loaded = next
	fns := make([]ChangeFunc, 0, len(s.subs))
	for _, id := range s.order {
		if fn, ok := s.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(prev, next.Config)
	}
}
