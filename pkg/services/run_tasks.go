package services

import (
	"context"
	"time"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
	"github.com/ekaya-inc/ekaya-datatools/pkg/services/workqueue"
)

// runTask executes one run on the work queue and records its terminal state.
// The task ID is the run ID and the task name is the run kind.
type runTask struct {
	workqueue.BaseTask
	svc     *runService
	run     models.Run
	execute func(ctx context.Context) (any, error)
}

func newRunTask(svc *runService, run *models.Run, execute func(ctx context.Context) (any, error)) *runTask {
	return &runTask{
		BaseTask: workqueue.NewBaseTask(run.ID.String(), string(run.Kind)),
		svc:      svc,
		run:      *run,
		execute:  execute,
	}
}

// Execute runs the work under the configured run timeout. Runs that stopped
// being pending while queued are skipped. Failures are stored on the run and
// returned so the queue counts them; cancellation by the queue surfaces as
// context.Canceled.
func (t *runTask) Execute(ctx context.Context) error {
	run := t.run
	started, err := t.svc.markStarted(ctx, run)
	if err != nil {
		t.svc.finishFailed(ctx, run.ID, run.Kind, run.LeftEnvironment, t.svc.failureMessage(ctx, err), 0)
		return err
	}
	if !started {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, t.svc.cfg.RunTimeout)
	defer cancel()

	start := time.Now()
	result, err := t.execute(runCtx)
	elapsed := time.Since(start)

	if err == nil {
		return t.svc.finishCompleted(ctx, run.ID, run.Kind, run.LeftEnvironment, result, elapsed)
	}

	t.svc.finishFailed(ctx, run.ID, run.Kind, run.LeftEnvironment, t.svc.failureMessage(ctx, err), elapsed)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
