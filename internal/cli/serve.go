package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/facegate/internal/auth"
	"github.com/BrandonDHaskell/facegate/internal/camera"
	"github.com/BrandonDHaskell/facegate/internal/facegate/service"
	"github.com/BrandonDHaskell/facegate/internal/facegate/session"
	"github.com/BrandonDHaskell/facegate/internal/grpcapi"
	"github.com/BrandonDHaskell/facegate/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin HTTP API and gRPC health service",
	Long: `Start the facegate server. The HTTP API manages identities, the gallery,
the access log and recognition sessions; the gRPC health service reports
whether the gallery is loaded and a session is running.

A missing gallery blob is generated from the faces directory on startup.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("autostart", false, "Start a recognition session as soon as the server is up")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	if err := a.cfg.RequireJWTSecret(); err != nil {
		return err
	}
	tokens, err := auth.NewTokenIssuer(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	// Services
	admins := service.NewAdminService(a.admins, tokens, logger)
	created, err := admins.EnsureDefaultAdmin(ctx, a.cfg.Auth.AdminUsername, a.cfg.Auth.AdminPassword)
	if err != nil {
		return err
	}
	if created && a.cfg.IsProd() {
		logger.Warn("default admin account created; change its password", zap.String("username", a.cfg.Auth.AdminUsername))
	}

	gs, err := a.openGallery(ctx, true)
	if err != nil {
		return err
	}
	identities := a.identityService(gs)

	pruner := service.NewAccessLogPruner(a.events, service.PrunerConfig{
		RetentionDays: a.cfg.LogRetentionDays,
		IntervalHours: a.cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	// gRPC health
	health := grpcapi.NewServer(logger)
	health.SetGalleryLoaded(true)

	ctrl := session.NewController(session.ControllerConfig{
		Open:          func() (camera.Source, error) { return a.openCamera() },
		Processor:     a.processor(gs, identities, a.access),
		Gallery:       gs,
		Logger:        logger,
		OnStateChange: health.ObserveSession,
	})
	defer ctrl.Close()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger,
		Addr:       a.cfg.HTTPAddr,
		Tokens:     tokens,
		Admins:     admins,
		Identities: identities,
		Access:     a.access,
		Gallery:    gs,
		Session:    ctrl,
		Recognizer: a.processor(gs, identities, nil),
		Version:    Version,
	})

	lis, err := net.Listen("tcp", a.cfg.GRPCAddr)
	if err != nil {
		return err
	}

	go func() {
		logger.Info("grpc listening", zap.String("addr", a.cfg.GRPCAddr))
		if err := health.Serve(lis); err != nil {
			logger.Error("grpc server error", zap.Error(err))
			stop()
		}
	}()
	go func() {
		logger.Info("http listening", zap.String("addr", a.cfg.HTTPAddr))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	if mustGetBool(cmd, "autostart") {
		if _, err := ctrl.Start(ctx); err != nil {
			logger.Error("autostart session failed", zap.Error(err))
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ctrl.Stop(shutdownCtx); err != nil && !errors.Is(err, session.ErrNotRunning) {
		logger.Warn("stop session", zap.Error(err))
	}
	_ = srv.Shutdown(shutdownCtx)
	health.Shutdown(shutdownCtx)
	return nil
}
