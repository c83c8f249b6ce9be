package supervisor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	apistatus "github.com/oshokin/deploy-manager/internal/api/grpc/status"
	"github.com/oshokin/deploy-manager/internal/config"
	"github.com/oshokin/deploy-manager/internal/logger"
	"github.com/oshokin/deploy-manager/internal/version"
)

// Options controls the deploy-manager process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// LogLevel overrides the configured log level when set.
	LogLevel string
	// Once runs a single cycle and returns its error instead of scheduling.
	Once bool
}

// ErrUnknownLogLevel is returned for a log level name that cannot be parsed.
var ErrUnknownLogLevel = errors.New("unknown log level")

// Run starts the supervisor and blocks until ctx is canceled, or until the
// single cycle finishes when opts.Once is set.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, version.Name)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = applyLogLevel(cfg.LogLevel, opts.LogLevel); err != nil {
		return err
	}

	ctx = logger.WithKV(ctx, "orgnumber", cfg.Orgnumber)

	var statusServer *apistatus.Server
	if cfg.Status.ListenAddress != "" && !opts.Once {
		statusServer = apistatus.NewServer()
	}

	sup, err := build(cfg, statusServer)
	if err != nil {
		return fmt.Errorf("initialise supervisor: %w", err)
	}

	if err = sup.Restore(ctx); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}

	logger.InfoKV(ctx, "Deploy manager started",
		"version", version.Version,
		"artifact", cfg.Repository.GroupID+":"+cfg.Repository.ArtifactID,
		"state_file", cfg.StateFile,
	)

	if opts.Once {
		return sup.RunCycle(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)

	if statusServer != nil {
		g.Go(func() error {
			return serveStatus(gctx, cfg.Status.ListenAddress, statusServer)
		})
	}

	g.Go(func() error {
		return sup.Schedule(gctx, cfg.Scheduler.Cron)
	})

	if err = g.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "Deploy manager stopped")

	return nil
}

// applyLogLevel sets the global level; override wins over configured.
func applyLogLevel(configured, override string) error {
	name := configured
	if override != "" {
		name = override
	}

	level, ok := logger.ParseLogLevel(name)
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownLogLevel)
	}

	logger.SetLevel(level)

	return nil
}
