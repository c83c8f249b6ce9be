package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/deploy-manager/internal/service/common"
	"github.com/oshokin/deploy-manager/internal/service/supervisor"
)

// TestStatus_ReportsPayloadHealth runs the scheduler with the status endpoint
// enabled and reads the payload health after the first cycle.
func TestStatus_ReportsPayloadHealth(t *testing.T) {
	t.Parallel()

	// The repository has nothing published, so the cycle fails but still reports health.
	repository := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(repository.Close)

	addr := reservePort(t)
	cfgPath := writeConfig(t, t.TempDir(), repository.URL, healthyActuator(t).URL, "java", addr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- supervisor.Run(ctx, &supervisor.Options{ConfigPath: cfgPath})
	}()

	c, err := common.Dial(context.Background(), addr, common.WithCallTimeout(time.Second))
	require.NoError(t, err)

	defer func() {
		_ = c.Close()
	}()

	require.Eventually(t, func() bool {
		resp, err := c.PayloadStatus(context.Background())
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
