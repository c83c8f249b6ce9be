package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/deploy-manager/internal/config"
	"github.com/oshokin/deploy-manager/internal/service/supervisor"
	"github.com/oshokin/deploy-manager/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides log_level from the configuration.
	logLevel string

	// rootCmd runs the supervisor on its schedule.
	rootCmd = &cobra.Command{
		Use:   "deploy-manager",
		Short: "Keep the payload application on its latest signed build.",
		Long: `Supervises a single payload application instance.

On every tick of the configured cron schedule the latest published build is
resolved from the Maven repository. A new build is downloaded, its detached
signature is checked against the configured public keys, and it is launched
as a child process. Once the new build reports UP on its management endpoint
the previous instance is asked to shut down.

The running build and blocklisted versions are persisted to the state file.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runSupervisor(false)
		},
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run deployment cycles on the configured schedule.",
		Long:  "Runs a cycle right away and then on every tick of scheduler.cron until SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runSupervisor(false)
		},
	}

	onceCmd = &cobra.Command{
		Use:   "once",
		Short: "Run a single deployment cycle and exit.",
		Long:  "Runs one deployment cycle and exits with a non-zero status when the cycle fails.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runSupervisor(true)
		},
	}
)

// runSupervisor runs until a termination signal arrives.
func runSupervisor(once bool) error {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return supervisor.Run(ctx, &supervisor.Options{
		ConfigPath: configPath,
		LogLevel:   logLevel,
		Once:       once,
	})
}

// Execute runs the deploy-manager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	// A failed cycle is not a usage error.
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Flags are shared by every subcommand.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn or error")

	rootCmd.AddCommand(runCmd, onceCmd, statusCmd)
}
