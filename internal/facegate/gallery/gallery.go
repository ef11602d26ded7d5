// Package gallery holds the known-face gallery: parallel sequences of
// embeddings and identity keys, persisted as a single blob and swapped
// atomically on reload.
package gallery

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no gallery blob exists yet; it must be generated first.
	ErrNotFound = errors.New("gallery blob not found")
	// ErrCorruptData means the blob could not be parsed into two parallel sequences.
	ErrCorruptData = errors.New("gallery blob is corrupt")
)

// Gallery is an immutable snapshot. Index i of the embeddings corresponds to
// index i of the identity keys.
type Gallery struct {
	embeddings [][]float64
	keys       []string
}

// Empty is the zero-entry gallery; every probe against it is unknown.
var Empty = &Gallery{}

// New copies its inputs into a Gallery. The sequences must have equal length
// and every embedding must share one dimensionality.
func New(embeddings [][]float64, keys []string) (*Gallery, error) {
	if len(embeddings) != len(keys) {
		return nil, fmt.Errorf("%w: %d embeddings vs %d identity keys",
			ErrCorruptData, len(embeddings), len(keys))
	}

	g := &Gallery{
		embeddings: make([][]float64, len(embeddings)),
		keys:       make([]string, len(keys)),
	}
	for i, e := range embeddings {
		if len(e) == 0 {
			return nil, fmt.Errorf("%w: entry %d has an empty embedding", ErrCorruptData, i)
		}
		if len(e) != len(embeddings[0]) {
			return nil, fmt.Errorf("%w: entry %d has dimension %d, want %d",
				ErrCorruptData, i, len(e), len(embeddings[0]))
		}
		g.embeddings[i] = append([]float64(nil), e...)
	}
	copy(g.keys, keys)
	return g, nil
}

func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.keys)
}

// Dim is the embedding dimensionality, or 0 for an empty gallery.
func (g *Gallery) Dim() int {
	if g.Len() == 0 {
		return 0
	}
	return len(g.embeddings[0])
}

// Embedding returns the i-th embedding. Callers must not modify it.
func (g *Gallery) Embedding(i int) []float64 { return g.embeddings[i] }

func (g *Gallery) Key(i int) string { return g.keys[i] }

// Keys returns a copy of the identity-key sequence.
func (g *Gallery) Keys() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.keys...)
}

// Contains reports whether key appears in the gallery.
func (g *Gallery) Contains(key string) bool {
	if g == nil {
		return false
	}
	for _, k := range g.keys {
		if k == key {
			return true
		}
	}
	return false
}
