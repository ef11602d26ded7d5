package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/facegate/internal/apperrors"
	"github.com/BrandonDHaskell/facegate/internal/facegate/gallery"
	"github.com/BrandonDHaskell/facegate/internal/facegate/store"
	"github.com/BrandonDHaskell/facegate/internal/facegate/types"
	"github.com/BrandonDHaskell/facegate/internal/imaging"
	"github.com/BrandonDHaskell/facegate/internal/oracle"
)

var (
	ErrInvalidIdentityKey = errors.New("identity key must be 1-64 chars of a-z, 0-9, '_', '.', '-'")
	ErrInvalidName        = errors.New("name is required")
	ErrNoFaceDetected     = errors.New("no face detected in image")
	ErrInvalidImage       = errors.New("image could not be decoded")
)

// EnrollRequest describes a new person. Key is derived from Name and the
// enrollment time when empty.
type EnrollRequest struct {
	Key    string
	Name   string
	Status types.Status
	Image  []byte
}

// IdentityService manages enrolled people and keeps the gallery in step with
// the faces directory.
type IdentityService struct {
	store    store.IdentityStore
	detector oracle.Detector
	builder  *gallery.Builder
	gallery  *gallery.Store
	facesDir string
	logger   *zap.Logger
	now      func() time.Time

	// rebuildMu serialises gallery rebuilds.
	rebuildMu sync.Mutex
}

func NewIdentityService(
	is store.IdentityStore,
	detector oracle.Detector,
	galleries *gallery.Store,
	facesDir string,
	logger *zap.Logger,
) *IdentityService {
	return &IdentityService{
		store:    is,
		detector: detector,
		builder:  gallery.NewBuilder(facesDir, detector, logger),
		gallery:  galleries,
		facesDir: facesDir,
		logger:   logger,
		now:      time.Now,
	}
}

// LookupIdentity satisfies decision.IdentityLookup.
func (s *IdentityService) LookupIdentity(ctx context.Context, key string) (types.Identity, error) {
	return s.store.GetIdentity(ctx, key)
}

func (s *IdentityService) Get(ctx context.Context, key string) (types.Identity, error) {
	return s.store.GetIdentity(ctx, key)
}

// List returns every identity, or those whose name or key contains query
// ignoring case and diacritics.
func (s *IdentityService) List(ctx context.Context, query string) ([]types.Identity, error) {
	all, err := s.store.ListIdentities(ctx)
	if err != nil {
		return nil, err
	}
	q := foldName(query)
	if q == "" {
		return all, nil
	}
	out := make([]types.Identity, 0, len(all))
	for _, ident := range all {
		if strings.Contains(foldName(ident.Name), q) || strings.Contains(ident.Key, q) {
			out = append(out, ident)
		}
	}
	return out, nil
}

func (s *IdentityService) Count(ctx context.Context) (int, error) {
	return s.store.CountIdentities(ctx)
}

// Enroll stores the reference image as <key>.jpg, creates the identity and
// rebuilds the gallery. The image must contain at least one face.
func (s *IdentityService) Enroll(ctx context.Context, req EnrollRequest) (types.Identity, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return types.Identity{}, ErrInvalidName
	}
	status := types.StatusActive
	if req.Status != "" {
		st, err := types.ParseStatus(string(req.Status))
		if err != nil {
			return types.Identity{}, err
		}
		status = st
	}

	now := s.now().UTC()
	key := strings.TrimSpace(req.Key)
	if key == "" {
		key = slugKey(name) + "_" + strconv.FormatInt(now.Unix(), 10)
		key = strings.TrimPrefix(key, "_")
	}
	if !identityKeyPattern.MatchString(key) {
		return types.Identity{}, ErrInvalidIdentityKey
	}

	img, err := imaging.Decode(req.Image)
	if err != nil {
		return types.Identity{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	faces, err := s.detector.Detect(ctx, img)
	if err != nil {
		return types.Identity{}, fmt.Errorf("detect faces: %w", err)
	}
	if len(faces) == 0 {
		return types.Identity{}, ErrNoFaceDetected
	}

	if _, err := s.store.GetIdentity(ctx, key); err == nil {
		return types.Identity{}, fmt.Errorf("identity %s: %w", key, apperrors.ErrConflict)
	}

	// The row is created before the image is written: the store decides
	// which of two concurrent enrollments owns the key, and the loser never
	// touches <key>.jpg.
	ident := types.Identity{Key: key, Name: name, Status: status, CreatedAt: now}
	if err := s.store.CreateIdentity(ctx, ident); err != nil {
		return types.Identity{}, err
	}
	if err := s.writeImage(key, img, req.Image); err != nil {
		if derr := s.store.DeleteIdentity(ctx, key); derr != nil {
			s.logger.Error("rollback enrolled identity failed", zap.String("identity", key), zap.Error(derr))
		}
		return types.Identity{}, err
	}
	s.logger.Info("identity enrolled", zap.String("identity", key), zap.String("name", name))

	if _, err := s.RebuildGallery(ctx, nil); err != nil {
		return ident, fmt.Errorf("identity enrolled but gallery rebuild failed: %w", err)
	}
	return ident, nil
}

// Update renames an identity or changes its status. Status changes take
// effect on the next frame without a gallery rebuild.
func (s *IdentityService) Update(ctx context.Context, key string, upd store.IdentityUpdate) (types.Identity, error) {
	if upd.Name != nil {
		n := strings.TrimSpace(*upd.Name)
		if n == "" {
			return types.Identity{}, ErrInvalidName
		}
		upd.Name = &n
	}
	if upd.Status != nil {
		st, err := types.ParseStatus(string(*upd.Status))
		if err != nil {
			return types.Identity{}, err
		}
		upd.Status = &st
	}
	ident, err := s.store.UpdateIdentity(ctx, key, upd)
	if err != nil {
		return types.Identity{}, err
	}
	s.logger.Info("identity updated", zap.String("identity", key), zap.String("status", ident.Status.String()))
	return ident, nil
}

// Remove deletes the identity and its reference images, then rebuilds the
// gallery so the face no longer matches.
func (s *IdentityService) Remove(ctx context.Context, key string) error {
	if err := s.store.DeleteIdentity(ctx, key); err != nil {
		return err
	}
	if err := s.removeImages(key); err != nil {
		return err
	}
	s.logger.Info("identity removed", zap.String("identity", key))

	if _, err := s.RebuildGallery(ctx, nil); err != nil {
		return fmt.Errorf("identity removed but gallery rebuild failed: %w", err)
	}
	if s.gallery.Current().Contains(key) {
		return fmt.Errorf("identity %s still present in gallery after rebuild", key)
	}
	return nil
}

// RebuildGallery re-encodes the faces directory, saves the blob and swaps it
// in. The active gallery is unchanged if any step fails.
func (s *IdentityService) RebuildGallery(ctx context.Context, progress func(file string)) (gallery.BuildReport, error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	g, report, err := s.builder.Build(ctx, progress)
	if err != nil {
		return report, fmt.Errorf("build gallery: %w", err)
	}
	if err := gallery.Save(s.gallery.Path(), g); err != nil {
		return report, fmt.Errorf("save gallery: %w", err)
	}
	if err := s.gallery.Reload(); err != nil {
		return report, fmt.Errorf("reload gallery: %w", err)
	}
	s.logger.Info("gallery rebuilt",
		zap.Int("scanned", report.Scanned), zap.Int("encoded", report.Encoded), zap.Int("skipped", len(report.Skipped)))
	return report, nil
}

// removeImages deletes every reference image the gallery builder would
// read for key, whatever the case of its extension.
func (s *IdentityService) removeImages(key string) error {
	files, err := s.builder.ReferenceImages()
	if err != nil {
		return err
	}
	for _, name := range files {
		if gallery.KeyFromFile(name) != key {
			continue
		}
		err := os.Remove(filepath.Join(s.facesDir, name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove reference image failed", zap.String("file", name), zap.Error(err))
		}
	}
	return nil
}

// writeImage stores the upload as <key>.jpg. JPEG input is kept byte for
// byte.
func (s *IdentityService) writeImage(key string, img image.Image, raw []byte) error {
	if err := os.MkdirAll(s.facesDir, 0o755); err != nil {
		return fmt.Errorf("mkdir faces dir: %w", err)
	}

	data := raw
	if !bytes.HasPrefix(raw, []byte{0xFF, 0xD8, 0xFF}) {
		enc, err := imaging.EncodeJPEG(img, 95)
		if err != nil {
			return err
		}
		data = enc
	}

	if err := os.WriteFile(filepath.Join(s.facesDir, key+".jpg"), data, 0o644); err != nil {
		return fmt.Errorf("write reference image: %w", err)
	}
	return nil
}
