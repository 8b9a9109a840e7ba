package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-datatools/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// ComparisonExecutor runs a validated plan against live data.
type ComparisonExecutor interface {
	// Execute returns the comparison result or an *apperrors.ExecutionError.
	Execute(ctx context.Context, plan *models.ComparisonPlan) (*models.ComparisonResult, error)
}

type comparisonExecutor struct {
	introspector datasource.SchemaIntrospector
	comparer     datasource.TableComparer
	concurrency  int
	logger       *zap.Logger
}

// NewComparisonExecutor creates a ComparisonExecutor. concurrency bounds the
// number of queries a single comparison runs at once.
func NewComparisonExecutor(
	introspector datasource.SchemaIntrospector,
	comparer datasource.TableComparer,
	concurrency int,
	logger *zap.Logger,
) ComparisonExecutor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &comparisonExecutor{
		introspector: introspector,
		comparer:     comparer,
		concurrency:  concurrency,
		logger:       logger.Named("comparison-executor"),
	}
}

var _ ComparisonExecutor = (*comparisonExecutor)(nil)

func (e *comparisonExecutor) Execute(ctx context.Context, plan *models.ComparisonPlan) (*models.ComparisonResult, error) {
	start := time.Now()

	compareColumns, err := e.resolveColumns(ctx, plan)
	if err != nil {
		return nil, err
	}

	result := &models.ComparisonResult{
		Sample:      []models.MissingRow{},
		ColumnDiffs: []models.ColumnDiff{},
	}

	swapped := make([]models.ColumnPair, len(plan.JoinKeys))
	for i, k := range plan.JoinKeys {
		swapped[i] = models.ColumnPair{Left: k.Right, Right: k.Left}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	g.Go(func() error {
		n, err := e.comparer.CountRows(gctx, plan.Left)
		if err != nil {
			return apperrors.NewExecutionError("count left rows", err)
		}
		result.LeftCount = n
		return nil
	})
	g.Go(func() error {
		n, err := e.comparer.CountRows(gctx, plan.Right)
		if err != nil {
			return apperrors.NewExecutionError("count right rows", err)
		}
		result.RightCount = n
		return nil
	})
	g.Go(func() error {
		n, err := e.comparer.CountUnmatched(gctx, plan.Left, plan.Right, plan.JoinKeys)
		if err != nil {
			return apperrors.NewExecutionError("count rows missing in right", err)
		}
		result.MissingInRight = n
		return nil
	})
	g.Go(func() error {
		n, err := e.comparer.CountUnmatched(gctx, plan.Right, plan.Left, swapped)
		if err != nil {
			return apperrors.NewExecutionError("count rows missing in left", err)
		}
		result.MissingInLeft = n
		return nil
	})
	g.Go(func() error {
		sample, err := e.comparer.SampleUnmatched(gctx, plan.Left, plan.Right, plan.JoinKeys, plan.SampleLimit)
		if err != nil {
			return apperrors.NewExecutionError("sample missing rows", err)
		}
		result.Sample = sample
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(compareColumns) > 0 {
		diffs, err := e.columnDiffs(ctx, plan, compareColumns)
		if err != nil {
			return nil, err
		}
		result.ColumnDiffs = diffs
	}

	e.logger.Info("Comparison executed",
		zap.String("left", plan.Left.String()),
		zap.String("right", plan.Right.String()),
		zap.Int64("left_count", result.LeftCount),
		zap.Int64("right_count", result.RightCount),
		zap.Int64("missing_in_right", result.MissingInRight),
		zap.Int64("missing_in_left", result.MissingInLeft),
		zap.Int("column_diffs", len(result.ColumnDiffs)),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// resolveColumns re-reads both schemas and checks every referenced column.
// Join keys must be type compatible; compare columns of unrelated types are
// compared on their text rendering.
func (e *comparisonExecutor) resolveColumns(ctx context.Context, plan *models.ComparisonPlan) ([]datasource.CompareColumn, error) {
	var leftCols, rightCols []models.ColumnMeta

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cols, err := e.introspector.Columns(gctx, plan.Left)
		leftCols = cols
		return err
	})
	g.Go(func() error {
		cols, err := e.introspector.Columns(gctx, plan.Right)
		rightCols = cols
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.NewExecutionError("introspect schema", err)
	}

	leftTypes := columnTypes(leftCols)
	rightTypes := columnTypes(rightCols)

	lookup := func(pair models.ColumnPair, role string) (string, string, error) {
		lt, ok := leftTypes[pair.Left]
		if !ok {
			return "", "", fmt.Errorf("%s column %q not found on %s", role, pair.Left, plan.Left)
		}
		rt, ok := rightTypes[pair.Right]
		if !ok {
			return "", "", fmt.Errorf("%s column %q not found on %s", role, pair.Right, plan.Right)
		}
		return lt, rt, nil
	}

	for _, k := range plan.JoinKeys {
		lt, rt, err := lookup(k, "join key")
		if err != nil {
			return nil, apperrors.NewExecutionError("check join keys", err)
		}
		if typeCompatibility(lt, rt) == 0 {
			return nil, apperrors.NewExecutionError("check join keys",
				fmt.Errorf("join key %s (%s) and %s (%s) have incompatible types", k.Left, lt, k.Right, rt))
		}
	}

	columns := make([]datasource.CompareColumn, 0, len(plan.CompareColumns))
	for _, c := range plan.CompareColumns {
		lt, rt, err := lookup(c, "compare")
		if err != nil {
			return nil, apperrors.NewExecutionError("check compare columns", err)
		}
		columns = append(columns, datasource.CompareColumn{
			Pair:   c,
			AsText: typeCompatibility(lt, rt) == 0,
		})
	}

	return columns, nil
}

// columnDiffs counts differences in one aggregate pass, then samples each
// differing pair with bounded parallelism.
func (e *comparisonExecutor) columnDiffs(ctx context.Context, plan *models.ComparisonPlan, columns []datasource.CompareColumn) ([]models.ColumnDiff, error) {
	counts, err := e.comparer.CountColumnDiffs(ctx, plan.Left, plan.Right, plan.JoinKeys, columns)
	if err != nil {
		return nil, apperrors.NewExecutionError("count column differences", err)
	}

	diffs := make([]models.ColumnDiff, len(columns))
	for i, c := range columns {
		diffs[i] = models.ColumnDiff{
			LeftColumn:    c.Pair.Left,
			RightColumn:   c.Pair.Right,
			TotalCompared: counts.TotalCompared,
			DiffCount:     counts.Diffs[i],
			Sample:        []models.DiffSample{},
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, c := range columns {
		if diffs[i].DiffCount == 0 {
			continue
		}
		g.Go(func() error {
			sample, err := e.comparer.SampleColumnDiff(gctx, plan.Left, plan.Right, plan.JoinKeys, c, plan.DiffSampleLimit)
			if err != nil {
				return apperrors.NewExecutionError(fmt.Sprintf("sample differences for %s", c.Pair.Left), err)
			}
			diffs[i].Sample = sample
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return diffs, nil
}

func columnTypes(cols []models.ColumnMeta) map[string]string {
	m := make(map[string]string, len(cols))
	for _, c := range cols {
		m[c.Name] = c.DataType
	}
	return m
}
