package grpcapi_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/BrandonDHaskell/facegate/internal/facegate/session"
	"github.com/BrandonDHaskell/facegate/internal/grpcapi"
)

func startServer(t *testing.T) (*grpcapi.Server, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpcapi.NewServer(zap.NewNop())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth_InitialStatuses(t *testing.T) {
	_, c := startServer(t)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, grpcapi.ServiceGallery))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, grpcapi.ServiceSession))
}

func TestHealth_TracksGalleryAndSession(t *testing.T) {
	srv, c := startServer(t)

	srv.SetGalleryLoaded(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c, grpcapi.ServiceGallery))

	srv.ObserveSession(session.Status{State: session.Running, SessionID: "s1"})
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c, grpcapi.ServiceSession))

	srv.ObserveSession(session.Status{State: session.Stopped, StopReason: session.ReasonQuit})
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, grpcapi.ServiceSession))
}
