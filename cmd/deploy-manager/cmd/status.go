package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/oshokin/deploy-manager/internal/config"
	"github.com/oshokin/deploy-manager/internal/service/common"
)

// errNoStatusAddress is returned when neither the argument nor the configuration names the endpoint.
var errNoStatusAddress = errors.New("no status address given and status.listen_address is not configured")

var statusCmd = &cobra.Command{
	Use:   "status [address]",
	Short: "Print the payload health reported by a running supervisor.",
	Long: `Queries the gRPC health service of a running supervisor and prints the answer as JSON.

The address defaults to status.listen_address from the configuration file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		address, err := statusAddress(args)
		if err != nil {
			return err
		}

		client, err := common.Dial(ctx, address)
		if err != nil {
			return err
		}

		defer func() {
			_ = client.Close()
		}()

		resp, err := client.PayloadStatus(ctx)
		if err != nil {
			return err
		}

		out, err := protojson.MarshalOptions{Multiline: true, EmitUnpopulated: true}.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encode status: %w", err)
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))

		return nil
	},
}

// statusAddress prefers the argument over the configured listen address.
func statusAddress(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}

	if cfg.Status.ListenAddress == "" {
		return "", errNoStatusAddress
	}

	return dialAddress(cfg.Status.ListenAddress), nil
}

// dialAddress turns a wildcard listen address into a loopback one.
func dialAddress(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}

	switch host {
	case "", "0.0.0.0", "::":
		return net.JoinHostPort("localhost", port)
	default:
		return listen
	}
}
