package launcher

import (
	"context"
	"errors"
	"io"
	"os/exec"
)

var errEmptyCommand = errors.New("empty command line")

// spec is what the launcher asks a startFunc to run.
type spec struct {
	argv   []string
	dir    string
	env    []string
	output io.Writer
}

// process is a started child the launcher can watch and cancel.
type process interface {
	// PID returns the child process id.
	PID() int
	// Done is closed once the child has exited.
	Done() <-chan struct{}
	// Cancel forcibly terminates the child. Safe to call more than once.
	Cancel()
}

type startFunc func(ctx context.Context, s spec) (process, error)

// execProcess is a child started with os/exec; Wait runs in the background.
type execProcess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
}

// startExec spawns the child detached from ctx cancellation: the payload
// outlives the launch call and the supervisor itself.
func startExec(ctx context.Context, s spec) (process, error) {
	if len(s.argv) == 0 {
		return nil, errEmptyCommand
	}

	childCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	cmd := exec.CommandContext(childCtx, s.argv[0], s.argv[1:]...) //nolint:gosec // Command line comes from configuration.
	cmd.Dir = s.dir
	cmd.Env = s.env
	cmd.Stdout = s.output
	cmd.Stderr = s.output
	detach(cmd)

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}

	p := &execProcess{
		cmd:    cmd,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) Cancel() {
	p.cancel()
}
