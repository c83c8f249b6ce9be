package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/oshokin/deploy-manager/internal/domain/deployment"
	"github.com/oshokin/deploy-manager/internal/logger"
	"github.com/oshokin/deploy-manager/internal/repository/state"
	"github.com/oshokin/deploy-manager/internal/service/common"
)

// cycleRunner runs one deployment cycle.
type cycleRunner interface {
	Run(ctx context.Context, app *deployment.Application) (*deployment.Application, error)
}

// healthChecker reads the payload health after a cycle.
type healthChecker interface {
	GetStatus(ctx context.Context) deployment.HealthStatus
}

// statusReporter publishes the observed health.
type statusReporter interface {
	Report(status deployment.HealthStatus)
}

// Supervisor carries the running build from cycle to cycle.
type Supervisor struct {
	pipeline  cycleRunner
	health    healthChecker
	repo      state.Repository
	blocklist *deployment.Blocklist
	// status is nil when the status endpoint is disabled.
	status statusReporter
	// running checks restored process ids; replaced in tests.
	running func(pid int) bool

	// mu serializes cycles and guards current.
	mu      sync.Mutex
	current *deployment.Metadata
}

func newSupervisor(
	p cycleRunner,
	health healthChecker,
	repo state.Repository,
	blocklist *deployment.Blocklist,
) *Supervisor {
	return &Supervisor{
		pipeline:  p,
		health:    health,
		repo:      repo,
		blocklist: blocklist,
		running:   common.ProcessRunning,
	}
}

// Current returns the running build, nil if none.
func (s *Supervisor) Current() *deployment.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// Restore loads the persisted state. A persisted build whose process is gone
// is forgotten so the next cycle launches it again.
func (s *Supervisor) Restore(ctx context.Context) error {
	snapshot, err := s.repo.Load(ctx)

	switch {
	case errors.Is(err, state.ErrNotFound):
		logger.Info(ctx, "No persisted state, starting without a running build")
		return nil
	case err != nil:
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blocklist != nil {
		s.blocklist.Restore(snapshot.Blocklist)
	}

	current := snapshot.Current
	if current == nil {
		return nil
	}

	if !s.running(current.ProcessID) {
		logger.WarnKV(ctx, "Persisted build is no longer running",
			"version", current.Version, "pid", current.ProcessID)

		return nil
	}

	logger.InfoKV(ctx, "Restored running build", "version", current.Version, "pid", current.ProcessID)
	s.current = current

	return nil
}

// RunCycle runs one deployment cycle and reports the payload health
// afterwards. Failures are logged and returned; the carried state is kept.
func (s *Supervisor) RunCycle(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = logger.WithKV(ctx, "cycle_id", uuid.NewString())
	logger.Info(ctx, "Deployment cycle started")

	app, err := s.pipeline.Run(ctx, deployment.NewApplication(s.current))
	if app != nil {
		s.current = app.Current
	}

	s.report(ctx)

	if err != nil {
		logger.ErrorKV(ctx, "Deployment cycle failed", "error", err)
		return fmt.Errorf("deployment cycle: %w", err)
	}

	logger.Info(ctx, "Deployment cycle finished")

	return nil
}

func (s *Supervisor) report(ctx context.Context) {
	if s.status == nil {
		return
	}

	health := s.health.GetStatus(ctx)
	logger.DebugKV(ctx, "Payload health", "status", health)
	s.status.Report(health)
}
