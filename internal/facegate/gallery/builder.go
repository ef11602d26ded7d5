package gallery

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/facegate/internal/oracle"
)

// Skipped reasons reported by Builder.
const (
	SkipUnreadable = "unreadable"
	SkipNoFace     = "no_face"
)

// SkippedImage is a reference image that did not produce a gallery entry.
type SkippedImage struct {
	File   string
	Reason string
	Err    error
}

type BuildReport struct {
	Scanned int
	Encoded int
	Skipped []SkippedImage
}

// Builder turns a directory of reference images named <identity_key>.<ext>
// into a gallery, one entry per image (the first detected face).
type Builder struct {
	dir      string
	detector oracle.Detector
	logger   *zap.Logger
}

func NewBuilder(dir string, detector oracle.Detector, logger *zap.Logger) *Builder {
	return &Builder{dir: dir, detector: detector, logger: logger}
}

// ReferenceImages lists the image files the builder will visit, in order.
func (b *Builder) ReferenceImages() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read faces dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !isImageFile(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

// Build encodes every reference image. progress, when non-nil, is called
// once per visited file. A directory with no usable images yields an empty
// gallery; the report says why.
func (b *Builder) Build(ctx context.Context, progress func(file string)) (*Gallery, BuildReport, error) {
	files, err := b.ReferenceImages()
	if err != nil {
		return nil, BuildReport{}, err
	}

	var (
		report     = BuildReport{Scanned: len(files)}
		embeddings [][]float64
		keys       []string
	)
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		if progress != nil {
			progress(name)
		}

		img, err := decodeFile(filepath.Join(b.dir, name))
		if err != nil {
			report.Skipped = append(report.Skipped, SkippedImage{File: name, Reason: SkipUnreadable, Err: err})
			b.logger.Warn("skipping unreadable reference image", zap.String("file", name), zap.Error(err))
			continue
		}

		faces, err := b.detector.Detect(ctx, img)
		if err != nil {
			return nil, report, fmt.Errorf("detect faces in %s: %w", name, err)
		}
		if len(faces) == 0 {
			report.Skipped = append(report.Skipped, SkippedImage{File: name, Reason: SkipNoFace})
			b.logger.Warn("no face detected in reference image", zap.String("file", name))
			continue
		}

		embeddings = append(embeddings, faces[0].Embedding)
		keys = append(keys, KeyFromFile(name))
		report.Encoded++
	}

	g, err := New(embeddings, keys)
	if err != nil {
		return nil, report, err
	}
	return g, report, nil
}

// KeyFromFile strips the extension: "alice.jpg" -> "alice".
func KeyFromFile(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}
