package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-datatools/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// ProfileColumn returns row, distinct and NULL counts for one column of ref.
// Distinct values are counted on their text rendering.
func (a *Adapter) ProfileColumn(ctx context.Context, ref models.TableRef, column string) (*datasource.ColumnProfile, error) {
	args := &queryArgs{}
	c := col("s", column)
	query := fmt.Sprintf("SELECT COUNT(*), COUNT(DISTINCT %s::text), COUNT(*) - COUNT(%s) FROM %s s",
		c, c, a.source(ref, args))

	var p datasource.ColumnProfile
	if err := a.db.QueryRow(ctx, query, args.values...).Scan(&p.Rows, &p.Distinct, &p.Nulls); err != nil {
		return nil, fmt.Errorf("profile column %s of %s: %w", column, ref, err)
	}
	return &p, nil
}

// TableStats counts rows, distinct rows and NULLs per column of ref.
// Rows are compared on the text rendering of every listed column.
func (a *Adapter) TableStats(ctx context.Context, ref models.TableRef, columns []string) (*datasource.TableStats, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("table stats of %s: no columns", ref)
	}

	args := &queryArgs{}
	selects := []string{
		"COUNT(*)",
		fmt.Sprintf("COUNT(DISTINCT ROW(%s))", keyList("s", columns, true)),
	}
	for _, c := range columns {
		selects = append(selects, fmt.Sprintf("COUNT(*) - COUNT(%s)", col("s", c)))
	}

	query := fmt.Sprintf("SELECT %s FROM %s s", strings.Join(selects, ", "), a.source(ref, args))

	stats := &datasource.TableStats{NullCounts: make([]models.ColumnNullCount, len(columns))}
	dest := []any{&stats.TotalRows, &stats.DistinctRows}
	for i, c := range columns {
		stats.NullCounts[i].Column = c
		dest = append(dest, &stats.NullCounts[i].NullCount)
	}

	if err := a.db.QueryRow(ctx, query, args.values...).Scan(dest...); err != nil {
		return nil, fmt.Errorf("table stats of %s: %w", ref, err)
	}
	return stats, nil
}
