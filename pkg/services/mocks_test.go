package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-datatools/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/config"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
	"github.com/ekaya-inc/ekaya-datatools/pkg/repositories"
)

func testDataToolsConfig() config.DataToolsConfig {
	return config.DataToolsConfig{
		AllowedEnvironments:        []string{"dev", "prod"},
		DefaultEnvironment:         "dev",
		PartitionColumn:            "pt",
		RunTimeout:                 time.Minute,
		StaleGrace:                 time.Minute,
		MaxQueueWait:               time.Hour,
		StaleSweepSchedule:         "@every 1m",
		MaxConcurrentRuns:          2,
		QueryConcurrency:           2,
		DiffSampleCap:              20,
		RequirePartitionForSuggest: true,
	}
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

// mockIntrospector serves columns from a map keyed by environment.table.
type mockIntrospector struct {
	columns map[string][]models.ColumnMeta
	err     error
}

func (m *mockIntrospector) ListTables(ctx context.Context, environment, filter string) ([]models.TableInfo, error) {
	return nil, nil
}

func (m *mockIntrospector) Columns(ctx context.Context, ref models.TableRef) ([]models.ColumnMeta, error) {
	if m.err != nil {
		return nil, m.err
	}
	cols, ok := m.columns[ref.Environment+"."+ref.Table]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cols, nil
}

// mockProfiler serves column profiles keyed by environment.table.column.
type mockProfiler struct {
	mu       sync.Mutex
	profiles map[string]*datasource.ColumnProfile
	stats    *datasource.TableStats
	err      error
	calls    int
}

func (m *mockProfiler) ProfileColumn(ctx context.Context, ref models.TableRef, column string) (*datasource.ColumnProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.profiles[ref.Environment+"."+ref.Table+"."+column], nil
}

func (m *mockProfiler) TableStats(ctx context.Context, ref models.TableRef, columns []string) (*datasource.TableStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stats, nil
}

// mockAuditService captures recorded actions.
type mockAuditService struct {
	mu      sync.Mutex
	actions []string
	details []map[string]any
}

func (m *mockAuditService) Record(ctx context.Context, action, environment string, details map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)
	m.details = append(m.details, details)
}

func (m *mockAuditService) Recent(ctx context.Context, action string, limit int) ([]*models.AuditLogEntry, error) {
	return nil, nil
}

func (m *mockAuditService) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.actions...)
}

// mockRunRepository is an in-memory RunRepository honoring the pending-only terminal write.
type mockRunRepository struct {
	mu        sync.Mutex
	runs      map[uuid.UUID]*models.Run
	createErr error
	updated   chan uuid.UUID
}

func newMockRunRepository() *mockRunRepository {
	return &mockRunRepository{
		runs:    map[uuid.UUID]*models.Run{},
		updated: make(chan uuid.UUID, 16),
	}
}

func (m *mockRunRepository) Create(ctx context.Context, run *models.Run) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.Status = models.RunStatusPending
	run.CreatedAt = time.Now()
	stored := *run
	m.runs[run.ID] = &stored
	return nil
}

func (m *mockRunRepository) Get(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *mockRunRepository) List(ctx context.Context, filter models.RunFilter) ([]*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Run
	for _, r := range m.runs {
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockRunRepository) finish(id uuid.UUID, apply func(r *models.Run)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.Status != models.RunStatusPending {
		return apperrors.ErrRunTerminal
	}
	apply(r)
	now := time.Now()
	r.CompletedAt = &now
	select {
	case m.updated <- id:
	default:
	}
	return nil
}

func (m *mockRunRepository) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	return m.finish(id, func(r *models.Run) {
		r.Status = models.RunStatusCompleted
		r.Result = result
	})
}

func (m *mockRunRepository) Fail(ctx context.Context, id uuid.UUID, message string) error {
	return m.finish(id, func(r *models.Run) {
		r.Status = models.RunStatusError
		r.ErrorMessage = &message
	})
}

func (m *mockRunRepository) MarkStarted(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.Status != models.RunStatusPending {
		return apperrors.ErrRunTerminal
	}
	now := time.Now()
	r.StartedAt = &now
	return nil
}

func (m *mockRunRepository) ExpireStale(ctx context.Context, cutoffs repositories.StaleCutoffs) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, r := range m.runs {
		if r.Status != models.RunStatusPending {
			continue
		}
		msg := cutoffs.QueuedMessage
		expired := r.StartedAt == nil && r.CreatedAt.Before(cutoffs.QueuedBefore)
		if r.StartedAt != nil {
			msg = cutoffs.StartedMessage
			expired = r.StartedAt.Before(cutoffs.StartedBefore)
		}
		if !expired {
			continue
		}
		now := time.Now()
		r.Status = models.RunStatusError
		r.ErrorMessage = &msg
		r.CompletedAt = &now
		ids = append(ids, id)
	}
	return ids, nil
}

// markStarted stamps a run as started at the given time.
func (m *mockRunRepository) markStarted(id uuid.UUID, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[id].StartedAt = &at
}

func (m *mockRunRepository) status(id uuid.UUID) models.RunStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id].Status
}
