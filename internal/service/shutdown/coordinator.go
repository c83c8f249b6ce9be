package shutdown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/deploy-manager/internal/domain/deployment"
	"github.com/oshokin/deploy-manager/internal/logger"
	"github.com/oshokin/deploy-manager/internal/service/common"
)

// ErrApplicationRequired is returned when Retire is called without a state.
var ErrApplicationRequired = errors.New("application state is required")

// Actuator is the management endpoint of the instance being retired.
type Actuator interface {
	GetStatus(ctx context.Context) deployment.HealthStatus
	Shutdown(ctx context.Context)
}

// Options configures the confirmation loop.
type Options struct {
	// Retries is the number of status polls after the shutdown request.
	Retries int
	// PollInterval is the wait before each poll.
	PollInterval time.Duration
}

// Coordinator stops the old instance and waits for it to go down.
type Coordinator struct {
	opts     Options
	actuator Actuator
	// running looks the old process up for diagnostics; replaced in tests.
	running func(pid int) bool
}

// New creates a coordinator talking to actuator.
func New(opts Options, actuator Actuator) *Coordinator {
	return &Coordinator{
		opts:     opts,
		actuator: actuator,
		running:  common.ProcessRunning,
	}
}

// Retire asks the current instance to stop when a different build has taken
// over. A stubborn instance is logged and left running; the returned state is
// unchanged in every case.
func (c *Coordinator) Retire(ctx context.Context, app *deployment.Application) (*deployment.Application, error) {
	if app == nil {
		return nil, ErrApplicationRequired
	}

	if app.Current == nil || app.IsSameVersion() {
		return app, nil
	}

	ctx = logger.WithKV(ctx, "retired_version", app.Current.Version)

	if c.actuator.GetStatus(ctx) == deployment.HealthUp {
		logger.Info(ctx, "Requesting shutdown of the previous instance")
		c.actuator.Shutdown(ctx)
	} else {
		logger.Info(ctx, "Previous instance is not up, confirming it is gone")
	}

	down, err := c.awaitDown(ctx)
	if err != nil {
		return app, fmt.Errorf("await shutdown: %w", err)
	}

	if !down {
		logger.WarnKV(ctx, "Previous instance is still up after shutdown request",
			"retries", c.opts.Retries,
			"pid", app.Current.ProcessID,
			"process_running", c.running(app.Current.ProcessID),
		)

		return app, nil
	}

	logger.Info(ctx, "Previous instance is down")

	return app, nil
}

// awaitDown polls up to Retries times, waiting PollInterval before each poll.
func (c *Coordinator) awaitDown(ctx context.Context) (bool, error) {
	timer := time.NewTimer(c.opts.PollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= c.opts.Retries; attempt++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}

		status := c.actuator.GetStatus(ctx)
		logger.DebugKV(ctx, "Shutdown poll", "attempt", attempt, "status", status)

		if status != deployment.HealthUp {
			return true, nil
		}

		timer.Reset(c.opts.PollInterval)
	}

	return false, nil
}
