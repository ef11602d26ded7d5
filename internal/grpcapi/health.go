// Package grpcapi exposes the standard gRPC health service so supervisors
// can probe whether the gallery is loaded and a recognition session is live.
package grpcapi

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/BrandonDHaskell/facegate/internal/facegate/session"
)

// Service names reported through grpc.health.v1.Health.
const (
	ServiceGallery = "facegate.gallery"
	ServiceSession = "facegate.session"
)

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		logger: logger,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceGallery, healthpb.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(ServiceSession, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetGalleryLoaded flips the gallery service status.
func (s *Server) SetGalleryLoaded(loaded bool) {
	s.health.SetServingStatus(ServiceGallery, servingStatus(loaded))
}

// ObserveSession is meant for session.ControllerConfig.OnStateChange.
func (s *Server) ObserveSession(st session.Status) {
	running := st.State == session.Running
	s.health.SetServingStatus(ServiceSession, servingStatus(running))
	s.logger.Debug("session health updated",
		zap.String("session", st.SessionID), zap.Bool("serving", running))
}

// Serve blocks until lis is closed or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	err := s.grpc.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Shutdown marks every service NOT_SERVING and drains in-flight RPCs until
// ctx expires, then forces the stop.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
