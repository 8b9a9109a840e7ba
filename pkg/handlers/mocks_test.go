package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
	"github.com/ekaya-inc/ekaya-datatools/pkg/services"
	"github.com/ekaya-inc/ekaya-datatools/pkg/services/workqueue"
)

// mockRunService is a configurable services.RunService for handler tests.
type mockRunService struct {
	submitComparisonFn func(ctx context.Context, req models.CompareRunRequest) (*models.SubmittedRun, error)
	submitValidationFn func(ctx context.Context, req models.ValidateRunRequest) (*models.SubmittedRun, error)
	getFn              func(ctx context.Context, id uuid.UUID) (*models.Run, error)
	listFn             func(ctx context.Context, filter models.RunFilter) ([]*models.Run, error)
	progress           workqueue.Progress
	tasks              []workqueue.TaskSnapshot
}

var _ services.RunService = (*mockRunService)(nil)

func (m *mockRunService) SubmitComparison(ctx context.Context, req models.CompareRunRequest) (*models.SubmittedRun, error) {
	return m.submitComparisonFn(ctx, req)
}

func (m *mockRunService) SubmitValidation(ctx context.Context, req models.ValidateRunRequest) (*models.SubmittedRun, error) {
	return m.submitValidationFn(ctx, req)
}

func (m *mockRunService) Get(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	return m.getFn(ctx, id)
}

func (m *mockRunService) List(ctx context.Context, filter models.RunFilter) ([]*models.Run, error) {
	return m.listFn(ctx, filter)
}

func (m *mockRunService) QueueProgress() workqueue.Progress {
	return m.progress
}

func (m *mockRunService) QueueTasks() []workqueue.TaskSnapshot {
	return m.tasks
}

func (m *mockRunService) Shutdown(ctx context.Context) error {
	return nil
}

// mockKeySuggester is a configurable services.KeySuggester.
type mockKeySuggester struct {
	suggestFn func(ctx context.Context, req models.SuggestKeysRequest) (*models.SuggestKeysResult, error)
}

var _ services.KeySuggester = (*mockKeySuggester)(nil)

func (m *mockKeySuggester) SuggestKeys(ctx context.Context, req models.SuggestKeysRequest) (*models.SuggestKeysResult, error) {
	return m.suggestFn(ctx, req)
}

// mockAssetService is a configurable services.AssetService.
type mockAssetService struct {
	listTablesFn   func(ctx context.Context, env, filter string) ([]models.TableInfo, error)
	tableColumnsFn func(ctx context.Context, env, table, partition string) ([]models.ColumnMeta, error)
}

var _ services.AssetService = (*mockAssetService)(nil)

func (m *mockAssetService) ListTables(ctx context.Context, env, filter string) ([]models.TableInfo, error) {
	return m.listTablesFn(ctx, env, filter)
}

func (m *mockAssetService) TableColumns(ctx context.Context, env, table, partition string) ([]models.ColumnMeta, error) {
	return m.tableColumnsFn(ctx, env, table, partition)
}

// mockAuditService records actions and serves canned entries.
type mockAuditService struct {
	actions  []string
	recentFn func(ctx context.Context, action string, limit int) ([]*models.AuditLogEntry, error)
}

var _ services.AuditService = (*mockAuditService)(nil)

func (m *mockAuditService) Record(ctx context.Context, action, environment string, details map[string]any) {
	m.actions = append(m.actions, action)
}

func (m *mockAuditService) Recent(ctx context.Context, action string, limit int) ([]*models.AuditLogEntry, error) {
	return m.recentFn(ctx, action, limit)
}
