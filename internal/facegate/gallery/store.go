package gallery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
)

// Load reads and decodes the blob at path.
func Load(path string) (*Gallery, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read gallery %s: %w", path, err)
	}
	return Unmarshal(b)
}

// Save writes g to path through a temp file and rename, so readers never see
// a partially written blob.
func Save(path string, g *Gallery) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir gallery dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".gallery-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp gallery: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(Marshal(g)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp gallery: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp gallery: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename gallery: %w", err)
	}
	return nil
}

// Store owns the in-memory gallery used by the matcher. Readers call Current
// once per frame and keep that snapshot; Reload replaces the pointer only
// after a complete, successful load.
type Store struct {
	path    string
	logger  *zap.Logger
	current atomic.Pointer[Gallery]
}

// Open loads the blob at path. A session must not start without a
// successfully loaded (possibly empty) gallery, so any error is returned.
func Open(path string, logger *zap.Logger) (*Store, error) {
	g, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, logger: logger}
	s.current.Store(g)
	logger.Info("gallery loaded", zap.String("path", path), zap.Int("entries", g.Len()))
	return s, nil
}

// NewStore wraps an already-built gallery, e.g. for tests or a freshly
// generated blob.
func NewStore(path string, g *Gallery, logger *zap.Logger) *Store {
	if g == nil {
		g = Empty
	}
	s := &Store{path: path, logger: logger}
	s.current.Store(g)
	return s
}

func (s *Store) Path() string { return s.path }

func (s *Store) Current() *Gallery { return s.current.Load() }

// Reload re-reads the blob. On failure the previous gallery stays active.
func (s *Store) Reload() error {
	g, err := Load(s.path)
	if err != nil {
		s.logger.Warn("gallery reload failed, keeping previous gallery",
			zap.String("path", s.path), zap.Error(err))
		return err
	}
	prev := s.current.Swap(g)
	s.logger.Info("gallery reloaded",
		zap.Int("entries", g.Len()), zap.Int("previous_entries", prev.Len()))
	return nil
}
