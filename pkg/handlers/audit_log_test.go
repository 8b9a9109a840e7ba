package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

func TestAuditLogHandler_List(t *testing.T) {
	var gotAction string
	var gotLimit int
	auditService := &mockAuditService{recentFn: func(ctx context.Context, action string, limit int) ([]*models.AuditLogEntry, error) {
		gotAction, gotLimit = action, limit
		return []*models.AuditLogEntry{{
			ID:          uuid.New(),
			Action:      models.AuditActionCompareSubmitted,
			Environment: "dev",
			Details:     map[string]any{"left": "dev.orders"},
			CreatedAt:   time.Now().UTC(),
		}}, nil
	}}
	handler := NewAuditLogHandler(auditService, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/audit?action=compare_run_submitted&limit=10", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.AuditActionCompareSubmitted, gotAction)
	assert.Equal(t, 10, gotLimit)

	var resp AuditLogResponse
	decodeData(t, rec, &resp)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "dev.orders", resp.Entries[0].Details["left"])
}

func TestAuditLogHandler_List_Empty(t *testing.T) {
	auditService := &mockAuditService{recentFn: func(ctx context.Context, action string, limit int) ([]*models.AuditLogEntry, error) {
		return nil, nil
	}}
	handler := NewAuditLogHandler(auditService, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/audit", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entries":[]`)
}

func TestAuditLogHandler_List_BadLimit(t *testing.T) {
	handler := NewAuditLogHandler(&mockAuditService{}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/audit?limit=many", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"limit"`)
}
