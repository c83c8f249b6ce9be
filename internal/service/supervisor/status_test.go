package supervisor

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	apistatus "github.com/oshokin/deploy-manager/internal/api/grpc/status"
	"github.com/oshokin/deploy-manager/internal/domain/deployment"
	"github.com/oshokin/deploy-manager/internal/service/common"
)

func TestServeStatus(t *testing.T) {
	t.Parallel()

	lis, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := apistatus.NewServer()
	srv.Report(deployment.HealthUp)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- serveStatusOn(ctx, lis, srv)
	}()

	client, err := common.Dial(context.Background(), lis.Addr().String())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	resp, err := client.PayloadStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	cancel()
	require.NoError(t, <-done)
}

func TestServeStatusListenError(t *testing.T) {
	t.Parallel()

	err := serveStatus(context.Background(), "256.0.0.1:bad", apistatus.NewServer())
	require.Error(t, err)
}
