package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// SchemaIntrospector reads live catalog metadata. Results are never cached.
type SchemaIntrospector interface {
	// ListTables returns base tables in environment whose name contains filter
	// (case-insensitive), ordered by name.
	ListTables(ctx context.Context, environment, filter string) ([]models.TableInfo, error)

	// Columns returns the table's columns in ordinal order.
	// Returns an error wrapping apperrors.ErrNotFound when the table, its
	// partition column, or the requested partition does not exist.
	Columns(ctx context.Context, ref models.TableRef) ([]models.ColumnMeta, error)
}

// CompareColumn is a compare pair as executed. AsText compares the textual
// rendering of both values, used when declared types are not compatible.
type CompareColumn struct {
	Pair   models.ColumnPair
	AsText bool
}

// ColumnDiffCounts is the result of the single aggregate pass over matched rows.
// Diffs is aligned with the requested compare columns.
type ColumnDiffCounts struct {
	TotalCompared int64
	Diffs         []int64
}

// TableComparer executes the read-only comparison queries.
// All join conditions are plain equality on every join-key pair, so NULL keys never match.
type TableComparer interface {
	// CountRows counts rows of the (partition-filtered) table.
	CountRows(ctx context.Context, ref models.TableRef) (int64, error)

	// CountUnmatched counts rows of from whose key tuple has no match in against.
	// Pair.Left names columns of from, Pair.Right columns of against.
	CountUnmatched(ctx context.Context, from, against models.TableRef, keys []models.ColumnPair) (int64, error)

	// SampleUnmatched returns up to limit rows present on only one side,
	// left-only rows first, each group ordered by its key columns ascending.
	SampleUnmatched(ctx context.Context, left, right models.TableRef, keys []models.ColumnPair, limit int) ([]models.MissingRow, error)

	// CountColumnDiffs counts matched rows and, per compare column, the rows
	// whose values differ (NULL vs NULL is equal).
	CountColumnDiffs(ctx context.Context, left, right models.TableRef, keys []models.ColumnPair, columns []CompareColumn) (*ColumnDiffCounts, error)

	// SampleColumnDiff returns up to limit matched rows whose values differ
	// for column, ordered by the left key columns ascending.
	SampleColumnDiff(ctx context.Context, left, right models.TableRef, keys []models.ColumnPair, column CompareColumn, limit int) ([]models.DiffSample, error)
}

// ColumnProfile holds row, distinct and NULL counts for one column.
type ColumnProfile struct {
	Rows     int64
	Distinct int64
	Nulls    int64
}

// TableStats is the result of a single validation pass over a table.
type TableStats struct {
	TotalRows    int64
	DistinctRows int64
	NullCounts   []models.ColumnNullCount
}

// TableProfiler computes column and table statistics.
type TableProfiler interface {
	// ProfileColumn returns row, distinct and NULL counts for one column.
	ProfileColumn(ctx context.Context, ref models.TableRef, column string) (*ColumnProfile, error)

	// TableStats counts rows, distinct rows and per-column NULLs in one scan.
	TableStats(ctx context.Context, ref models.TableRef, columns []string) (*TableStats, error)
}
