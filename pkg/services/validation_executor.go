package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/config"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// ValidationExecutor runs data-quality checks on a single table.
type ValidationExecutor interface {
	// Plan validates a request and resolves its target table.
	Plan(req models.ValidateRunRequest) (*models.ValidationParams, error)

	// Execute returns row, NULL and duplicate counts or an *apperrors.ExecutionError.
	Execute(ctx context.Context, params *models.ValidationParams) (*models.ValidationResult, error)
}

type validationExecutor struct {
	introspector datasource.SchemaIntrospector
	profiler     datasource.TableProfiler
	cfg          config.DataToolsConfig
	logger       *zap.Logger
}

// NewValidationExecutor creates a ValidationExecutor.
func NewValidationExecutor(
	introspector datasource.SchemaIntrospector,
	profiler datasource.TableProfiler,
	cfg config.DataToolsConfig,
	logger *zap.Logger,
) ValidationExecutor {
	return &validationExecutor{
		introspector: introspector,
		profiler:     profiler,
		cfg:          cfg,
		logger:       logger.Named("validation-executor"),
	}
}

var _ ValidationExecutor = (*validationExecutor)(nil)

func (e *validationExecutor) Plan(req models.ValidateRunRequest) (*models.ValidationParams, error) {
	v := &apperrors.ValidationError{}
	target := resolveTableRef(v, e.cfg, tableSide{
		tableField: "target_table", envField: "env_schema", ptField: "pt",
		table: req.TargetTable, env: req.EnvSchema, partition: req.Partition,
	})
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	return &models.ValidationParams{Target: target}, nil
}

func (e *validationExecutor) Execute(ctx context.Context, params *models.ValidationParams) (*models.ValidationResult, error) {
	cols, err := e.introspector.Columns(ctx, params.Target)
	if err != nil {
		return nil, apperrors.NewExecutionError("introspect schema", err)
	}

	names := make([]string, 0, len(cols))
	for _, c := range cols {
		// Constant within a partition.
		if params.Target.HasPartition() && c.Name == e.cfg.PartitionColumn {
			continue
		}
		names = append(names, c.Name)
	}
	if len(names) == 0 {
		return &models.ValidationResult{NullCounts: []models.ColumnNullCount{}}, nil
	}

	stats, err := e.profiler.TableStats(ctx, params.Target, names)
	if err != nil {
		return nil, apperrors.NewExecutionError("table statistics", err)
	}

	e.logger.Info("Validation executed",
		zap.String("target", params.Target.String()),
		zap.Int64("total_rows", stats.TotalRows),
		zap.Int("columns", len(names)))

	return &models.ValidationResult{
		TotalRows:     stats.TotalRows,
		NullCounts:    stats.NullCounts,
		DuplicateRows: stats.TotalRows - stats.DistinctRows,
	}, nil
}
