package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/config"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// AssetService exposes the tables and columns of the allowed environments.
type AssetService interface {
	// ListTables lists base tables of env whose name contains filter.
	// An empty env selects the default environment.
	ListTables(ctx context.Context, env, filter string) ([]models.TableInfo, error)

	// TableColumns returns the live columns of one table in ordinal order.
	TableColumns(ctx context.Context, env, table, partition string) ([]models.ColumnMeta, error)
}

type assetService struct {
	introspector datasource.SchemaIntrospector
	cfg          config.DataToolsConfig
	logger       *zap.Logger
}

// NewAssetService creates an AssetService.
func NewAssetService(introspector datasource.SchemaIntrospector, cfg config.DataToolsConfig, logger *zap.Logger) AssetService {
	return &assetService{
		introspector: introspector,
		cfg:          cfg,
		logger:       logger.Named("asset-service"),
	}
}

var _ AssetService = (*assetService)(nil)

func (s *assetService) ListTables(ctx context.Context, env, filter string) ([]models.TableInfo, error) {
	if env == "" {
		env = s.cfg.DefaultEnvironment
	}
	if !s.cfg.IsAllowedEnvironment(env) {
		return nil, apperrors.NewValidationError("env_schema", fmt.Sprintf("environment %q is not allowed", env))
	}

	tables, err := s.introspector.ListTables(ctx, env, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables of %s: %w", env, err)
	}
	return tables, nil
}

func (s *assetService) TableColumns(ctx context.Context, env, table, partition string) ([]models.ColumnMeta, error) {
	v := &apperrors.ValidationError{}
	ref := resolveTableRef(v, s.cfg, tableSide{
		tableField: "table", envField: "env_schema", ptField: "pt",
		table: table, env: env, partition: partition,
	})
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	cols, err := s.introspector.Columns(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", ref, err)
	}
	return cols, nil
}
