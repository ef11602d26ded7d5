package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/facegate/internal/camera"
	"github.com/BrandonDHaskell/facegate/internal/config"
	dbpkg "github.com/BrandonDHaskell/facegate/internal/db"
	"github.com/BrandonDHaskell/facegate/internal/facegate/cooldown"
	"github.com/BrandonDHaskell/facegate/internal/facegate/decision"
	"github.com/BrandonDHaskell/facegate/internal/facegate/gallery"
	"github.com/BrandonDHaskell/facegate/internal/facegate/match"
	"github.com/BrandonDHaskell/facegate/internal/facegate/service"
	"github.com/BrandonDHaskell/facegate/internal/facegate/session"
	"github.com/BrandonDHaskell/facegate/internal/facegate/store/sqlite"
	"github.com/BrandonDHaskell/facegate/internal/oracle"
)

// app is the dependency graph shared by the commands: config, logger,
// database, stores and the embedding oracle.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	db     *sql.DB
	writer *dbpkg.Worker

	identities *sqlite.IdentityStore
	events     *sqlite.AccessEventStore
	admins     *sqlite.AdminStore

	detector oracle.Detector
	access   *service.AccessService
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProd() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	sqlDB, err := dbpkg.Open(ctx, dbpkg.Config{Path: cfg.DBPath}, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	writer := dbpkg.NewWorker(sqlDB)

	a := &app{
		cfg:        cfg,
		logger:     logger,
		db:         sqlDB,
		writer:     writer,
		identities: sqlite.NewIdentityStore(sqlDB, writer),
		events:     sqlite.NewAccessEventStore(sqlDB, writer),
		admins:     sqlite.NewAdminStore(sqlDB, writer),
		detector:   oracle.NewHTTPClient(cfg.Oracle.URL, cfg.Oracle.Timeout),
	}
	a.access = service.NewAccessService(a.events, logger)
	return a, nil
}

func (a *app) Close() {
	a.writer.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// openGallery loads the gallery blob. With buildIfMissing, a missing blob is
// generated from the faces directory first; a corrupt blob is always fatal.
func (a *app) openGallery(ctx context.Context, buildIfMissing bool) (*gallery.Store, error) {
	gs, err := gallery.Open(a.cfg.GalleryPath, a.logger)
	if err == nil {
		return gs, nil
	}
	if !buildIfMissing || !errors.Is(err, gallery.ErrNotFound) {
		return nil, err
	}

	a.logger.Warn("gallery blob missing, generating from faces directory",
		zap.String("path", a.cfg.GalleryPath), zap.String("faces_dir", a.cfg.FacesDir))
	gs = gallery.NewStore(a.cfg.GalleryPath, gallery.Empty, a.logger)
	if _, err := a.identityService(gs).RebuildGallery(ctx, nil); err != nil {
		return nil, err
	}
	return gs, nil
}

func (a *app) identityService(gs *gallery.Store) *service.IdentityService {
	return service.NewIdentityService(a.identities, a.detector, gs, a.cfg.FacesDir, a.logger)
}

// adminService has no token issuer; it can manage accounts but not log in.
func (a *app) adminService() *service.AdminService {
	return service.NewAdminService(a.admins, nil, a.logger)
}

// processor builds a frame processor with its own cooldown gate. A nil
// recorder gives a processor that never writes the access log.
func (a *app) processor(gs *gallery.Store, lookup decision.IdentityLookup, rec session.AccessRecorder) *session.Processor {
	deps := session.ProcessorDeps{
		Detector: a.detector,
		Gallery:  gs,
		Matcher:  match.New(a.cfg.Match.Tolerance),
		Engine:   decision.NewEngine(a.cfg.Match.ConfidenceThreshold),
		Lookup:   lookup,
		Gate:     cooldown.NewGate(a.cfg.Match.Cooldown),
		Recorder: rec,
		Logger:   a.logger,
	}
	return session.NewProcessor(deps)
}

func (a *app) openCamera() (camera.Source, error) {
	if a.cfg.Camera.Source == "" {
		return nil, errors.New("no camera configured (set FACEGATE_CAMERA)")
	}
	return camera.Open(a.cfg.Camera.Source, a.cfg.Camera.Interval)
}
