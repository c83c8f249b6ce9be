package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/oshokin/deploy-manager/internal/config"
	"github.com/oshokin/deploy-manager/internal/logger"
)

// cronLogger routes scheduler logs through the context logger. Routine
// scheduler chatter goes to debug.
type cronLogger struct {
	ctx context.Context //nolint:containedctx // cron.Logger has no context parameter.
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	logger.DebugKV(l.ctx, msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.ErrorKV(l.ctx, msg, append(keysAndValues, "error", err)...)
}

// Schedule runs a cycle right away and then on every tick of spec until ctx
// is canceled. A tick arriving while a cycle is in flight is skipped.
func (s *Supervisor) Schedule(ctx context.Context, spec string) error {
	schedule, err := config.CronParser.Parse(spec)
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	ctx = logger.WithName(ctx, "scheduler")
	cl := cronLogger{ctx: ctx}

	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
		_ = s.RunCycle(ctx)
	}))

	c := cron.New(cron.WithLogger(cl))
	c.Schedule(schedule, job)
	c.Start()

	logger.InfoKV(ctx, "Scheduler started", "cron", spec)

	var initial sync.WaitGroup
	initial.Go(job.Run)

	<-ctx.Done()

	logger.Info(ctx, "Stopping scheduler, waiting for the running cycle")
	<-c.Stop().Done()
	initial.Wait()

	return nil
}
