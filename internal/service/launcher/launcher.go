package launcher

import (
	"context"
	"time"

	"github.com/oshokin/deploy-manager/internal/domain/deployment"
	"github.com/oshokin/deploy-manager/internal/logger"
	"github.com/oshokin/deploy-manager/internal/service/environment"
)

// Forced payload flags appended after the artifact path.
const (
	flagShutdownEnabled = "--management.endpoint.shutdown.enabled=true"
	flagSSLLogDisabled  = "--app.logger.enableSSL=false"
	flagProfilePrefix   = "--spring.profiles.active="
)

// StatusChecker reports the health of the payload management endpoint.
type StatusChecker interface {
	GetStatus(ctx context.Context) deployment.HealthStatus
}

// EnvironmentSource computes the child environment.
type EnvironmentSource interface {
	Environment(ctx context.Context) (map[string]string, error)
}

// Options configures the launcher.
type Options struct {
	// Runtime is the interpreter executable.
	Runtime string
	// Home is the working directory of the child.
	Home string
	// Profile is pinned as the active payload profile.
	Profile string
	// Timeout is the total budget for reaching UP.
	Timeout time.Duration
	// PollInterval is the delay between health polls.
	PollInterval time.Duration
	// IncludeLog mirrors child output lines into the supervisor log.
	IncludeLog bool
	// LogLimit caps the captured startup log in bytes.
	LogLimit int
}

// Launcher starts payload builds.
type Launcher struct {
	// opts holds the immutable launch settings.
	opts Options
	// status polls the payload health during startup.
	status StatusChecker
	// env yields the child environment.
	env EnvironmentSource
	// start spawns the child; replaced in tests.
	start startFunc
}

// New creates a launcher that spawns real child processes.
func New(opts Options, status StatusChecker, env EnvironmentSource) *Launcher {
	return &Launcher{
		opts:   opts,
		status: status,
		env:    env,
		start:  startExec,
	}
}

// Command returns the child command line for artifactPath.
func (l *Launcher) Command(artifactPath string) []string {
	return []string{
		l.opts.Runtime,
		"-jar",
		artifactPath,
		flagShutdownEnabled,
		flagSSLLogDisabled,
		flagProfilePrefix + l.opts.Profile,
	}
}

// Launch starts artifactPath and waits until the payload reports UP, the
// child exits, the budget runs out or ctx is done.
func (l *Launcher) Launch(ctx context.Context, artifactPath string) deployment.LaunchResult {
	ctx = logger.WithName(ctx, "launcher")

	env, err := l.env.Environment(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Child environment could not be prepared", "error", err)
		return failed(artifactPath, err.Error(), 0)
	}

	startupLog := newStartupLog(ctx, l.opts.LogLimit, l.opts.IncludeLog)
	argv := l.Command(artifactPath)

	logger.InfoKV(ctx, "Launching payload", "command", argv, "directory", l.opts.Home)

	proc, err := l.start(ctx, spec{
		argv:   argv,
		dir:    l.opts.Home,
		env:    environment.Environ(env),
		output: startupLog,
	})
	if err != nil {
		logger.ErrorKV(ctx, "Payload process could not be started", "error", err)
		return failed(artifactPath, err.Error(), 0)
	}

	logger.InfoKV(ctx, "Payload process started, waiting for UP",
		"pid", proc.PID(), "timeout", l.opts.Timeout.String(), "poll_interval", l.opts.PollInterval.String())

	up := l.awaitUp(ctx, proc)

	// Output written after startup is drained but no longer kept or mirrored.
	captured := startupLog.Close()

	if up {
		logger.InfoKV(ctx, "Payload reported UP", "pid", proc.PID())

		return deployment.LaunchResult{
			JarPath:    artifactPath,
			Status:     deployment.LaunchSuccess,
			StartupLog: captured,
			ProcessID:  proc.PID(),
		}
	}

	proc.Cancel()

	return failed(artifactPath, captured, proc.PID())
}

// awaitUp polls the health endpoint until UP. It returns false on timeout,
// early child exit or context cancellation.
func (l *Launcher) awaitUp(ctx context.Context, proc process) bool {
	started := time.Now()

	deadline := time.NewTimer(l.opts.Timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(l.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// A tick landing on the deadline counts as a timeout.
			if time.Since(started) >= l.opts.Timeout {
				l.logTimeout(ctx, proc)
				return false
			}

			status := l.status.GetStatus(ctx)
			if status == deployment.HealthUp {
				return true
			}

			logger.DebugKV(ctx, "Payload not up yet", "status", status.String())
		case <-proc.Done():
			logger.WarnKV(ctx, "Payload exited before reporting UP", "pid", proc.PID())
			return false
		case <-deadline.C:
			l.logTimeout(ctx, proc)
			return false
		case <-ctx.Done():
			logger.WarnKV(ctx, "Launch interrupted, cancelling", "pid", proc.PID())
			return false
		}
	}
}

func (l *Launcher) logTimeout(ctx context.Context, proc process) {
	logger.WarnKV(ctx, "Payload did not report UP in time, cancelling",
		"pid", proc.PID(), "timeout", l.opts.Timeout.String())
}

func failed(artifactPath, startupLog string, pid int) deployment.LaunchResult {
	return deployment.LaunchResult{
		JarPath:    artifactPath,
		Status:     deployment.LaunchFailed,
		StartupLog: startupLog,
		ProcessID:  pid,
	}
}
