package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	apistatus "github.com/oshokin/deploy-manager/internal/api/grpc/status"
	"github.com/oshokin/deploy-manager/internal/logger"
)

// serveStatus serves the status endpoint on address until ctx is canceled.
func serveStatus(ctx context.Context, address string, srv *apistatus.Server) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	return serveStatusOn(ctx, lis, srv)
}

func serveStatusOn(ctx context.Context, lis net.Listener, srv *apistatus.Server) error {
	grpcServer := grpc.NewServer()
	srv.Register(grpcServer)

	logger.InfoKV(ctx, "Status endpoint listening", "listen_address", lis.Addr().String())

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down status endpoint")
		srv.Shutdown()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Status endpoint stopped")

	return nil
}
