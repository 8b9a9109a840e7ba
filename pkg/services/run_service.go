package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/config"
	"github.com/ekaya-inc/ekaya-datatools/pkg/logging"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
	"github.com/ekaya-inc/ekaya-datatools/pkg/repositories"
	"github.com/ekaya-inc/ekaya-datatools/pkg/retry"
	"github.com/ekaya-inc/ekaya-datatools/pkg/services/workqueue"
)

// Messages stored on runs that never produced a result.
const (
	RunCancelledMessage = "run cancelled: server shutting down"
	runTimedOutFormat   = "run timed out after %s"
)

// RunService accepts comparison and validation runs, executes them in the
// background and serves their state.
type RunService interface {
	// SubmitComparison validates req, records a pending run and schedules it.
	// Returns *apperrors.ValidationError without creating a run when req is invalid.
	SubmitComparison(ctx context.Context, req models.CompareRunRequest) (*models.SubmittedRun, error)

	// SubmitValidation is SubmitComparison for single-table validation.
	SubmitValidation(ctx context.Context, req models.ValidateRunRequest) (*models.SubmittedRun, error)

	// Get returns the current state of a run. Never waits for completion.
	Get(ctx context.Context, id uuid.UUID) (*models.Run, error)

	// List returns runs newest first.
	List(ctx context.Context, filter models.RunFilter) ([]*models.Run, error)

	// QueueProgress reports the work queue's counters.
	QueueProgress() workqueue.Progress

	// QueueTasks lists runs waiting for or holding a worker in this process.
	QueueTasks() []workqueue.TaskSnapshot

	// Shutdown stops accepting runs, fails runs that never started and waits
	// for running ones to record their outcome or for ctx to end.
	Shutdown(ctx context.Context) error
}

type runService struct {
	runs       repositories.RunRepository
	planner    ComparisonPlanner
	comparer   ComparisonExecutor
	validator  ValidationExecutor
	audit      AuditService
	queue      *workqueue.Queue
	cfg        config.DataToolsConfig
	writeRetry *retry.Config
	logger     *zap.Logger
}

// NewRunService creates a RunService executing runs on queue.
func NewRunService(
	runs repositories.RunRepository,
	planner ComparisonPlanner,
	comparer ComparisonExecutor,
	validator ValidationExecutor,
	audit AuditService,
	queue *workqueue.Queue,
	cfg config.DataToolsConfig,
	logger *zap.Logger,
) RunService {
	return &runService{
		runs:       runs,
		planner:    planner,
		comparer:   comparer,
		validator:  validator,
		audit:      audit,
		queue:      queue,
		cfg:        cfg,
		writeRetry: retry.DefaultConfig(),
		logger:     logger.Named("run-service"),
	}
}

var _ RunService = (*runService)(nil)

func (s *runService) SubmitComparison(ctx context.Context, req models.CompareRunRequest) (*models.SubmittedRun, error) {
	plan, err := s.planner.Plan(req)
	if err != nil {
		return nil, err
	}

	run, err := s.createRun(ctx, models.RunKindComparison, plan.Left.Environment, plan.Right.Environment, plan)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.AuditActionCompareSubmitted, plan.Left.Environment, map[string]any{
		"run_id":          run.ID.String(),
		"left":            plan.Left.String(),
		"right":           plan.Right.String(),
		"join_keys":       plan.JoinKeys,
		"compare_columns": len(plan.CompareColumns),
	})

	task := newRunTask(s, run, func(ctx context.Context) (any, error) {
		return s.comparer.Execute(ctx, plan)
	})
	return s.schedule(ctx, run, task)
}

func (s *runService) SubmitValidation(ctx context.Context, req models.ValidateRunRequest) (*models.SubmittedRun, error) {
	params, err := s.validator.Plan(req)
	if err != nil {
		return nil, err
	}

	env := params.Target.Environment
	run, err := s.createRun(ctx, models.RunKindValidation, env, env, params)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.AuditActionValidateSubmitted, env, map[string]any{
		"run_id": run.ID.String(),
		"target": params.Target.String(),
	})

	task := newRunTask(s, run, func(ctx context.Context) (any, error) {
		return s.validator.Execute(ctx, params)
	})
	return s.schedule(ctx, run, task)
}

func (s *runService) createRun(ctx context.Context, kind models.RunKind, leftEnv, rightEnv string, params any) (*models.Run, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run params: %w", err)
	}

	run := &models.Run{
		ID:               uuid.New(),
		Kind:             kind,
		LeftEnvironment:  leftEnv,
		RightEnvironment: rightEnv,
		Params:           raw,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *runService) schedule(ctx context.Context, run *models.Run, task *runTask) (*models.SubmittedRun, error) {
	if err := s.queue.Enqueue(task); err != nil {
		s.finishFailed(ctx, run.ID, run.Kind, run.LeftEnvironment, RunCancelledMessage, 0)
		return nil, fmt.Errorf("failed to schedule run %s: %w", run.ID, err)
	}

	observeSubmitted(run.Kind)
	s.logger.Info("Run submitted",
		zap.String("run_id", run.ID.String()),
		zap.String("kind", string(run.Kind)))

	return &models.SubmittedRun{RunID: run.ID, Status: models.RunStatusPending}, nil
}

func (s *runService) Get(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	return s.runs.Get(ctx, id)
}

func (s *runService) List(ctx context.Context, filter models.RunFilter) ([]*models.Run, error) {
	if filter.Kind != "" && !filter.Kind.IsValid() {
		return nil, apperrors.NewValidationError("kind", "must be comparison or validation")
	}
	if filter.Environment != "" && !s.cfg.IsAllowedEnvironment(filter.Environment) {
		return nil, apperrors.NewValidationError("env_schema", "is not an allowed environment")
	}
	return s.runs.List(ctx, filter)
}

func (s *runService) QueueProgress() workqueue.Progress {
	return s.queue.Progress()
}

func (s *runService) QueueTasks() []workqueue.TaskSnapshot {
	return s.queue.GetTasks()
}

func (s *runService) Shutdown(ctx context.Context) error {
	dropped := s.queue.Cancel()
	for _, snap := range dropped {
		id, err := uuid.Parse(snap.ID)
		if err != nil {
			s.logger.Error("Dropped task has no run id", zap.String("task_id", snap.ID))
			continue
		}
		s.finishFailed(ctx, id, models.RunKind(snap.Name), "", RunCancelledMessage, 0)
	}
	if len(dropped) > 0 {
		s.logger.Info("Failed runs that never started", zap.Int("count", len(dropped)))
	}
	return s.queue.Wait(ctx)
}

// markStarted stamps the run as picked up by a worker. It reports false when
// the run is no longer pending, which happens when the stale sweep expired it
// while it waited in the queue.
func (s *runService) markStarted(ctx context.Context, run models.Run) (bool, error) {
	err := retry.DoIfRetryable(ctx, s.writeRetry, func() error {
		return s.runs.MarkStarted(ctx, run.ID)
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperrors.ErrRunTerminal):
		s.logger.Warn("Skipped run that is no longer pending",
			zap.String("run_id", run.ID.String()),
			zap.String("kind", string(run.Kind)))
		return false, nil
	default:
		return false, fmt.Errorf("failed to mark run started: %w", err)
	}
}

// finishCompleted stores result on a pending run.
func (s *runService) finishCompleted(ctx context.Context, id uuid.UUID, kind models.RunKind, env string, result any, elapsed time.Duration) error {
	payload, err := json.Marshal(result)
	if err != nil {
		err = fmt.Errorf("failed to encode run result: %w", err)
		s.finishFailed(ctx, id, kind, env, err.Error(), elapsed)
		return err
	}

	writeCtx := context.WithoutCancel(ctx)
	err = retry.DoIfRetryable(writeCtx, s.writeRetry, func() error {
		return s.runs.Complete(writeCtx, id, payload)
	})
	if err != nil {
		return s.terminalWriteFailed(id, models.RunStatusCompleted, err)
	}

	observeFinished(kind, models.RunStatusCompleted, elapsed)
	s.audit.Record(writeCtx, completedAction(kind), env, map[string]any{
		"run_id":      id.String(),
		"duration_ms": elapsed.Milliseconds(),
	})
	s.logger.Info("Run completed",
		zap.String("run_id", id.String()),
		zap.String("kind", string(kind)),
		zap.Duration("elapsed", elapsed))
	return nil
}

// finishFailed stores message on a pending run. Storage errors are logged.
func (s *runService) finishFailed(ctx context.Context, id uuid.UUID, kind models.RunKind, env, message string, elapsed time.Duration) {
	writeCtx := context.WithoutCancel(ctx)
	err := retry.DoIfRetryable(writeCtx, s.writeRetry, func() error {
		return s.runs.Fail(writeCtx, id, message)
	})
	if err != nil {
		_ = s.terminalWriteFailed(id, models.RunStatusError, err)
		return
	}

	observeFinished(kind, models.RunStatusError, elapsed)
	s.audit.Record(writeCtx, failedAction(kind), env, map[string]any{
		"run_id": id.String(),
		"error":  message,
	})
	s.logger.Warn("Run failed",
		zap.String("run_id", id.String()),
		zap.String("kind", string(kind)),
		zap.String("error", message))
}

// terminalWriteFailed logs a terminal write that did not happen. A run that
// was already terminal is not an error.
func (s *runService) terminalWriteFailed(id uuid.UUID, status models.RunStatus, err error) error {
	if errors.Is(err, apperrors.ErrRunTerminal) {
		s.logger.Warn("Discarded terminal write for finished run",
			zap.String("run_id", id.String()),
			zap.String("status", string(status)))
		return nil
	}
	s.logger.Error("Failed to record run outcome",
		zap.String("run_id", id.String()),
		zap.String("status", string(status)),
		zap.Error(err))
	return fmt.Errorf("failed to record run outcome: %w", err)
}

// failureMessage turns an execution error into the text stored on the run.
func (s *runService) failureMessage(parent context.Context, err error) string {
	switch {
	case parent.Err() != nil:
		return RunCancelledMessage
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf(runTimedOutFormat, s.cfg.RunTimeout)
	default:
		return logging.SanitizeError(err)
	}
}

func completedAction(kind models.RunKind) string {
	if kind == models.RunKindValidation {
		return models.AuditActionValidateCompleted
	}
	return models.AuditActionCompareCompleted
}

func failedAction(kind models.RunKind) string {
	if kind == models.RunKindValidation {
		return models.AuditActionValidateFailed
	}
	return models.AuditActionCompareFailed
}
