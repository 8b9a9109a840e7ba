package postgres

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// likeEscaper escapes LIKE wildcards so the filter matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListTables returns base tables in environment whose name contains filter.
func (a *Adapter) ListTables(ctx context.Context, environment, filter string) ([]models.TableInfo, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		  AND table_name ILIKE '%' || $2 || '%'
		ORDER BY table_name
	`

	rows, err := a.db.Query(ctx, query, environment, likeEscaper.Replace(filter))
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	tables := []models.TableInfo{}
	for rows.Next() {
		t := models.TableInfo{Environment: environment}
		if err := rows.Scan(&t.Name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return tables, nil
}

// Columns returns the declared columns of ref in ordinal order.
// Declared types come from format_type so lengths and precisions are kept.
func (a *Adapter) Columns(ctx context.Context, ref models.TableRef) ([]models.ColumnMeta, error) {
	const query = `
		SELECT
			a.attname,
			format_type(a.atttypid, a.atttypmod),
			NOT a.attnotnull,
			a.attnum
		FROM pg_catalog.pg_attribute a
		JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relname = $2
		  AND c.relkind IN ('r', 'p', 'v', 'm', 'f')
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum
	`

	rows, err := a.db.Query(ctx, query, ref.Environment, ref.Table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.ColumnMeta
	for rows.Next() {
		var c models.ColumnMeta
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s.%s: %w", ref.Environment, ref.Table, apperrors.ErrNotFound)
	}

	if ref.HasPartition() {
		if err := a.checkPartition(ctx, ref, columns); err != nil {
			return nil, err
		}
	}

	return columns, nil
}

// checkPartition verifies the partition column exists and at least one row
// carries the requested token.
func (a *Adapter) checkPartition(ctx context.Context, ref models.TableRef, columns []models.ColumnMeta) error {
	found := false
	for _, c := range columns {
		if c.Name == a.partitionColumn {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("partition column %q on %s.%s: %w", a.partitionColumn, ref.Environment, ref.Table, apperrors.ErrNotFound)
	}

	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)",
		qualifiedTableName(ref.Environment, ref.Table), col("", a.partitionColumn))

	var exists bool
	if err := a.db.QueryRow(ctx, query, ref.Partition).Scan(&exists); err != nil {
		return fmt.Errorf("check partition: %w", err)
	}
	if !exists {
		a.logger.Debug("Partition has no rows",
			zap.String("table", ref.String()))
		return fmt.Errorf("partition %s of %s.%s: %w", ref.Partition, ref.Environment, ref.Table, apperrors.ErrNotFound)
	}
	return nil
}
