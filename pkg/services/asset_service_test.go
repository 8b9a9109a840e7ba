package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

type listingIntrospector struct {
	mockIntrospector
	env    string
	filter string
}

func (l *listingIntrospector) ListTables(ctx context.Context, environment, filter string) ([]models.TableInfo, error) {
	l.env = environment
	l.filter = filter
	return []models.TableInfo{{Environment: environment, Name: "orders"}}, nil
}

func TestAssetService_ListTables(t *testing.T) {
	intro := &listingIntrospector{}
	svc := NewAssetService(intro, testDataToolsConfig(), zap.NewNop())

	tables, err := svc.ListTables(context.Background(), "", "ord")
	require.NoError(t, err)
	assert.Equal(t, "dev", intro.env, "empty env falls back to the default")
	assert.Equal(t, "ord", intro.filter)
	assert.Len(t, tables, 1)

	_, err = svc.ListTables(context.Background(), "information_schema", "")
	verr, ok := apperrors.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "env_schema", verr.Fields[0].Field)
}

func TestAssetService_TableColumns(t *testing.T) {
	intro := &mockIntrospector{columns: map[string][]models.ColumnMeta{
		"prod.orders": {{Name: "id", DataType: "bigint", OrdinalPosition: 1}},
	}}
	svc := NewAssetService(intro, testDataToolsConfig(), zap.NewNop())

	cols, err := svc.TableColumns(context.Background(), "prod", "orders", "20240101")
	require.NoError(t, err)
	assert.Equal(t, "id", cols[0].Name)

	_, err = svc.TableColumns(context.Background(), "prod", "missing", "")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = svc.TableColumns(context.Background(), "prod", "orders;drop", "2024")
	verr, ok := apperrors.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"table", "pt"}, fieldNames(t, verr))
}
