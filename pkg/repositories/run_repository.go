package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/database"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// RunRepository provides data access for comparison and validation runs.
type RunRepository interface {
	// Create inserts a pending run. ID and CreatedAt are assigned when zero.
	Create(ctx context.Context, run *models.Run) error

	// Get returns a run by ID. Returns an error wrapping apperrors.ErrNotFound when absent.
	Get(ctx context.Context, id uuid.UUID) (*models.Run, error)

	// List returns runs matching filter, newest first.
	List(ctx context.Context, filter models.RunFilter) ([]*models.Run, error)

	// Complete moves a pending run to completed with result.
	// Returns apperrors.ErrRunTerminal when the run is no longer pending.
	Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error

	// Fail moves a pending run to error with message.
	// Returns apperrors.ErrRunTerminal when the run is no longer pending.
	Fail(ctx context.Context, id uuid.UUID, message string) error

	// MarkStarted stamps started_at on a pending run as a worker picks it up.
	// Returns apperrors.ErrRunTerminal when the run is no longer pending.
	MarkStarted(ctx context.Context, id uuid.UUID) error

	// ExpireStale fails every pending run past its cutoff and returns their IDs.
	ExpireStale(ctx context.Context, cutoffs StaleCutoffs) ([]uuid.UUID, error)
}

// StaleCutoffs splits pending runs into started and still-queued ones, each
// with its own deadline and stored message.
type StaleCutoffs struct {
	// StartedBefore expires runs whose started_at is earlier.
	StartedBefore  time.Time
	StartedMessage string
	// QueuedBefore expires never-started runs whose created_at is earlier.
	QueuedBefore  time.Time
	QueuedMessage string
}

type runRepository struct {
	db database.Querier
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db database.Querier) RunRepository {
	return &runRepository{db: db}
}

var _ RunRepository = (*runRepository)(nil)

const runColumns = `id, kind, status, left_environment, right_environment, params, result, error_message, created_at, started_at, completed_at`

func (r *runRepository) Create(ctx context.Context, run *models.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.Status = models.RunStatusPending

	query := `
		INSERT INTO datatools.runs (
			id, kind, status, left_environment, right_environment, params, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		run.ID,
		string(run.Kind),
		string(run.Status),
		run.LeftEnvironment,
		run.RightEnvironment,
		[]byte(run.Params),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

func (r *runRepository) Get(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM datatools.runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

func (r *runRepository) List(ctx context.Context, filter models.RunFilter) ([]*models.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM datatools.runs
		WHERE ($1 = '' OR left_environment = $1 OR right_environment = $1)
		  AND ($2 = '' OR kind = $2)
		ORDER BY created_at DESC, id
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, filter.Environment, string(filter.Kind), filter.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

func (r *runRepository) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	query := `
		UPDATE datatools.runs
		SET status = 'completed', result = $2, completed_at = now()
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.db.Exec(ctx, query, id, []byte(result))
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete run %s: %w", id, apperrors.ErrRunTerminal)
	}

	return nil
}

func (r *runRepository) Fail(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE datatools.runs
		SET status = 'error', error_message = $2, completed_at = now()
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.db.Exec(ctx, query, id, message)
	if err != nil {
		return fmt.Errorf("failed to fail run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fail run %s: %w", id, apperrors.ErrRunTerminal)
	}

	return nil
}

func (r *runRepository) MarkStarted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE datatools.runs
		SET started_at = now()
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark run started: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("start run %s: %w", id, apperrors.ErrRunTerminal)
	}

	return nil
}

func (r *runRepository) ExpireStale(ctx context.Context, cutoffs StaleCutoffs) ([]uuid.UUID, error) {
	query := `
		UPDATE datatools.runs
		SET status = 'error',
		    error_message = CASE WHEN started_at IS NULL THEN $4 ELSE $2 END,
		    completed_at = now()
		WHERE status = 'pending'
		  AND ((started_at IS NOT NULL AND started_at < $1)
		    OR (started_at IS NULL AND created_at < $3))
		RETURNING id`

	rows, err := r.db.Query(ctx, query,
		cutoffs.StartedBefore, cutoffs.StartedMessage,
		cutoffs.QueuedBefore, cutoffs.QueuedMessage,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to expire stale runs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expired run id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired runs: %w", err)
	}

	return ids, nil
}

func scanRun(row pgx.Row) (*models.Run, error) {
	var (
		run          models.Run
		kind, status string
		params       []byte
		result       []byte
	)

	err := row.Scan(
		&run.ID,
		&kind,
		&status,
		&run.LeftEnvironment,
		&run.RightEnvironment,
		&params,
		&result,
		&run.ErrorMessage,
		&run.CreatedAt,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Kind = models.RunKind(kind)
	run.Status = models.RunStatus(status)
	run.Params = json.RawMessage(params)
	if result != nil {
		run.Result = json.RawMessage(result)
	}

	return &run, nil
}
