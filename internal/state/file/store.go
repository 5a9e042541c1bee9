// Package file implements a file-per-record state store. Each search record
// lives in <dir>/<id>.json so progress survives a process restart and stays
// diffable during debugging.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/stylehound/stylehound/internal/search"
	"github.com/stylehound/stylehound/internal/state"
)

// Config captures the parameters for the file-backed state store.
type Config struct {
	// Dir is the directory holding one JSON file per search.
	Dir string `mapstructure:"dir"`
}

// Store persists search records as JSON files.
type Store struct {
	dir    string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates the base directory if needed and verifies it is writable.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	probe := filepath.Join(cfg.Dir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("state directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}
	return &Store{
		dir:    cfg.Dir,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Create persists a brand-new record, overwriting any existing file.
func (s *Store) Create(_ context.Context, id string, rec search.Record) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	return s.write(id, rec)
}

// Load returns the current record or state.ErrNotFound.
func (s *Store) Load(_ context.Context, id string) (search.Record, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	return s.read(id)
}

// Mutate applies fn under the per-ID lock so concurrent mutations of the same
// search serialize and no update is lost.
func (s *Store) Mutate(_ context.Context, id string, fn func(*search.Record) error) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.read(id)
	if err != nil {
		return err
	}
	if err := fn(&rec); err != nil {
		return fmt.Errorf("apply mutation: %w", err)
	}
	return s.write(id, rec)
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) read(id string) (search.Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return search.Record{}, state.ErrNotFound
		}
		return search.Record{}, fmt.Errorf("read state file: %w", err)
	}
	var rec search.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return search.Record{}, fmt.Errorf("decode state file: %w", err)
	}
	return rec, nil
}

// write marshals the record and replaces the file via temp-file rename so a
// crash mid-write never leaves a truncated record behind.
func (s *Store) write(id string, rec search.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		closeErr := tmp.Close()
		s.removeTemp(tmpName)
		if closeErr != nil {
			return fmt.Errorf("write temp state file: %w (close: %v)", err, closeErr)
		}
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.removeTemp(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(id)); err != nil {
		s.removeTemp(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func (s *Store) removeTemp(name string) {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove temp state file failed", zap.String("file", name), zap.Error(err))
	}
}
