package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// mockAuditRepository is a mock implementation of AuditRepository for testing.
type mockAuditRepository struct {
	entries   []*models.AuditLogEntry
	createErr error
	ctxErr    error

	gotAction string
	gotLimit  int
}

func (m *mockAuditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	m.ctxErr = ctx.Err()
	if m.createErr != nil {
		return m.createErr
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepository) ListRecent(ctx context.Context, action string, limit int) ([]*models.AuditLogEntry, error) {
	m.gotAction = action
	m.gotLimit = limit
	var result []*models.AuditLogEntry
	for _, e := range m.entries {
		if action == "" || e.Action == action {
			result = append(result, e)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func TestAuditService_Record(t *testing.T) {
	repo := &mockAuditRepository{}
	svc := NewAuditService(repo, zap.NewNop())

	svc.Record(context.Background(), models.AuditActionCompareSubmitted, "prod", map[string]any{"left_table": "orders"})

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, models.AuditActionCompareSubmitted, entry.Action)
	assert.Equal(t, "prod", entry.Environment)
	assert.Equal(t, "orders", entry.Details["left_table"])
}

func TestAuditService_RecordSurvivesCancelledContext(t *testing.T) {
	repo := &mockAuditRepository{}
	svc := NewAuditService(repo, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc.Record(ctx, models.AuditActionCompareFailed, "dev", nil)

	require.Len(t, repo.entries, 1)
	assert.NoError(t, repo.ctxErr)
}

func TestAuditService_RecordFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	repo := &mockAuditRepository{createErr: errors.New("connection refused")}
	svc := NewAuditService(repo, zap.New(core))

	svc.Record(context.Background(), models.AuditActionValidateSubmitted, "dev", nil)

	entries := logs.FilterMessage("Failed to create audit log entry").All()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionValidateSubmitted, entries[0].ContextMap()["action"])
}

func TestAuditService_Recent(t *testing.T) {
	repo := &mockAuditRepository{}
	svc := NewAuditService(repo, zap.NewNop())

	ctx := context.Background()
	svc.Record(ctx, models.AuditActionSuggestKeys, "dev", nil)
	svc.Record(ctx, models.AuditActionCompareSubmitted, "dev", nil)
	svc.Record(ctx, models.AuditActionSuggestKeys, "prod", nil)

	entries, err := svc.Recent(ctx, models.AuditActionSuggestKeys, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 10, repo.gotLimit)

	_, err = svc.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRunListLimit, repo.gotLimit)
	assert.Empty(t, repo.gotAction)

	_, err = svc.Recent(ctx, "", models.MaxRunListLimit+1)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRunListLimit, repo.gotLimit)
}
