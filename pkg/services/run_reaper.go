package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/config"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
	"github.com/ekaya-inc/ekaya-datatools/pkg/repositories"
)

// StaleRunReaper fails runs left pending past their deadline. A started run
// gets run_timeout plus grace, which only passes when the process executing
// it stopped without recording an outcome. A run still waiting for a worker
// gets max_queue_wait.
type StaleRunReaper struct {
	runs   repositories.RunRepository
	audit  AuditService
	cfg    config.DataToolsConfig
	cron   *cron.Cron
	now    func() time.Time
	logger *zap.Logger
}

// NewStaleRunReaper creates a reaper. Call Start to schedule it.
func NewStaleRunReaper(runs repositories.RunRepository, audit AuditService, cfg config.DataToolsConfig, logger *zap.Logger) *StaleRunReaper {
	return &StaleRunReaper{
		runs:   runs,
		audit:  audit,
		cfg:    cfg,
		cron:   cron.New(),
		now:    time.Now,
		logger: logger.Named("stale-run-reaper"),
	}
}

// Start schedules Sweep on the configured cron schedule.
func (r *StaleRunReaper) Start() error {
	_, err := r.cron.AddFunc(r.cfg.StaleSweepSchedule, func() {
		if _, err := r.Sweep(context.Background()); err != nil {
			r.logger.Error("Stale run sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule stale run sweep %q: %w", r.cfg.StaleSweepSchedule, err)
	}
	r.cron.Start()
	r.logger.Info("Stale run sweep scheduled",
		zap.String("schedule", r.cfg.StaleSweepSchedule),
		zap.Duration("stale_after", r.cfg.StaleAfter()),
		zap.Duration("max_queue_wait", r.cfg.MaxQueueWait))
	return nil
}

// Stop unschedules the sweep and waits for a sweep in progress.
func (r *StaleRunReaper) Stop() {
	<-r.cron.Stop().Done()
}

// Sweep fails every run past its deadline and returns how many it failed.
func (r *StaleRunReaper) Sweep(ctx context.Context) (int, error) {
	now := r.now()
	staleAfter := r.cfg.StaleAfter()
	cutoffs := repositories.StaleCutoffs{
		StartedBefore:  now.Add(-staleAfter),
		StartedMessage: fmt.Sprintf("run timed out: still pending after %s", staleAfter),
		QueuedBefore:   now.Add(-r.cfg.MaxQueueWait),
		QueuedMessage:  fmt.Sprintf("run expired: not started within %s", r.cfg.MaxQueueWait),
	}

	ids, err := r.runs.ExpireStale(ctx, cutoffs)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	runsExpiredMetric.Add(float64(len(ids)))

	runIDs := make([]string, len(ids))
	for i, id := range ids {
		runIDs[i] = id.String()
	}
	r.audit.Record(ctx, models.AuditActionStaleRunsExpired, "", map[string]any{
		"run_ids":        runIDs,
		"started_cutoff": cutoffs.StartedBefore.UTC().Format(time.RFC3339),
		"queued_cutoff":  cutoffs.QueuedBefore.UTC().Format(time.RFC3339),
	})
	r.logger.Warn("Failed stale runs",
		zap.Int("count", len(ids)),
		zap.Time("started_cutoff", cutoffs.StartedBefore),
		zap.Time("queued_cutoff", cutoffs.QueuedBefore))
	return len(ids), nil
}
