// Package camera provides frame sources for the recognition session.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/facegate/internal/imaging"
)

// ErrExhausted is returned by finite sources after the last frame.
var ErrExhausted = errors.New("camera: no more frames")

// Source yields frames. Read blocks until a frame is available.
type Source interface {
	Read(ctx context.Context) (image.Image, error)
	Close() error
}

// Open builds a source from a camera spec:
//
//	http(s)://host/snapshot.jpg   polls a JPEG snapshot endpoint
//	dir:/path/to/frames           replays images from a directory once
//	file:/path/to/frame.jpg       a single still frame
//
// A bare path is treated as a directory or file depending on what exists.
func Open(spec string, interval time.Duration) (Source, error) {
	switch {
	case spec == "":
		return nil, errors.New("camera: empty source")
	case strings.HasPrefix(spec, "http://"), strings.HasPrefix(spec, "https://"):
		return NewSnapshotSource(spec, interval, nil), nil
	case strings.HasPrefix(spec, "dir:"):
		return NewDirSource(strings.TrimPrefix(spec, "dir:"), interval)
	case strings.HasPrefix(spec, "file:"):
		return NewFileSource(strings.TrimPrefix(spec, "file:"))
	}

	info, err := os.Stat(spec)
	if err != nil {
		return nil, fmt.Errorf("camera: open %s: %w", spec, err)
	}
	if info.IsDir() {
		return NewDirSource(spec, interval)
	}
	return NewFileSource(spec)
}

// ═══════════════════════════════════════════════════════════════════════════
// Directory replay
// ═══════════════════════════════════════════════════════════════════════════

// DirSource yields the images in a directory in name order, one per interval.
type DirSource struct {
	files    []string
	interval time.Duration

	mu   sync.Mutex
	next int
	last time.Time
}

func NewDirSource(dir string, interval time.Duration) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("camera: read dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png", ".bmp":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)
	return &DirSource{files: files, interval: interval}, nil
}

func (s *DirSource) Read(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.files) {
		return nil, ErrExhausted
	}
	if !s.last.IsZero() && s.interval > 0 {
		if wait := s.interval - time.Since(s.last); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}

	path := s.files[s.next]
	s.next++
	s.last = time.Now()
	return decodeFile(path)
}

func (s *DirSource) Close() error { return nil }

// ═══════════════════════════════════════════════════════════════════════════
// Single still
// ═══════════════════════════════════════════════════════════════════════════

// FileSource yields one decoded image, then ErrExhausted.
type FileSource struct {
	mu  sync.Mutex
	img image.Image
}

func NewFileSource(path string) (*FileSource, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{img: img}, nil
}

// NewStillSource wraps an already decoded image.
func NewStillSource(img image.Image) *FileSource {
	return &FileSource{img: img}
}

func (s *FileSource) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return nil, ErrExhausted
	}
	img := s.img
	s.img = nil
	return img, nil
}

func (s *FileSource) Close() error { return nil }

// ═══════════════════════════════════════════════════════════════════════════
// HTTP snapshot polling
// ═══════════════════════════════════════════════════════════════════════════

// SnapshotSource polls a URL that returns a single JPEG or PNG per request,
// the way most IP cameras expose a still endpoint.
type SnapshotSource struct {
	url      string
	interval time.Duration
	client   *http.Client

	mu   sync.Mutex
	last time.Time
}

func NewSnapshotSource(url string, interval time.Duration, client *http.Client) *SnapshotSource {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &SnapshotSource{url: url, interval: interval, client: client}
}

func (s *SnapshotSource) Read(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.IsZero() && s.interval > 0 {
		if wait := s.interval - time.Since(s.last); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
	s.last = time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("camera: build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("camera: fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera: snapshot status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("camera: read snapshot: %w", err)
	}
	return imaging.Decode(data)
}

func (s *SnapshotSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func decodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("camera: read %s: %w", path, err)
	}
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("camera: %s: %w", path, err)
	}
	return img, nil
}
