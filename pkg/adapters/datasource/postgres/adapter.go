package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datatools/pkg/database"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// DefaultPartitionColumn is used when no partition column is configured.
const DefaultPartitionColumn = "pt"

// Adapter runs catalog, comparison and profiling queries against the
// warehouse. Environments map to Postgres schemas.
type Adapter struct {
	db              database.Querier
	partitionColumn string
	logger          *zap.Logger
}

var (
	_ datasource.SchemaIntrospector = (*Adapter)(nil)
	_ datasource.TableComparer      = (*Adapter)(nil)
	_ datasource.TableProfiler      = (*Adapter)(nil)
)

// NewAdapter creates an adapter over db. An empty partitionColumn uses DefaultPartitionColumn.
// If logger is nil, a no-op logger is used.
func NewAdapter(db database.Querier, partitionColumn string, logger *zap.Logger) *Adapter {
	if partitionColumn == "" {
		partitionColumn = DefaultPartitionColumn
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		db:              db,
		partitionColumn: partitionColumn,
		logger:          logger.Named("postgres-adapter"),
	}
}

// qualifiedTableName returns a properly quoted table reference.
// If schemaName is empty, returns just the quoted table name.
// Otherwise returns "schema"."table".
func qualifiedTableName(schemaName, tableName string) string {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	if schemaName == "" {
		return quotedTable
	}
	quotedSchema := pgx.Identifier{schemaName}.Sanitize()
	return quotedSchema + "." + quotedTable
}

// col quotes a column, optionally qualified with a table alias.
func col(alias, name string) string {
	quoted := pgx.Identifier{name}.Sanitize()
	if alias == "" {
		return quoted
	}
	return alias + "." + quoted
}

// queryArgs collects positional arguments while a statement is built.
type queryArgs struct {
	values []any
}

// add appends v and returns its placeholder.
func (q *queryArgs) add(v any) string {
	q.values = append(q.values, v)
	return fmt.Sprintf("$%d", len(q.values))
}

// source renders ref as a FROM item. A partitioned ref becomes a subquery
// filtered on the partition column.
func (a *Adapter) source(ref models.TableRef, args *queryArgs) string {
	table := qualifiedTableName(ref.Environment, ref.Table)
	if !ref.HasPartition() {
		return table
	}
	return fmt.Sprintf("(SELECT * FROM %s WHERE %s = %s)",
		table, col("", a.partitionColumn), args.add(ref.Partition))
}

// joinCondition renders the AND of equality predicates on every key pair.
func joinCondition(leftAlias, rightAlias string, keys []models.ColumnPair) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s = %s", col(leftAlias, k.Left), col(rightAlias, k.Right))
	}
	return strings.Join(parts, " AND ")
}

// keyList renders alias-qualified columns, optionally cast to text.
func keyList(alias string, columns []string, asText bool) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = col(alias, c)
		if asText {
			parts[i] += "::text"
		}
	}
	return strings.Join(parts, ", ")
}

func leftColumns(pairs []models.ColumnPair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Left
	}
	return out
}

func rightColumns(pairs []models.ColumnPair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Right
	}
	return out
}

// textScanTargets returns n *string scan destinations.
func textScanTargets(n int) ([]*string, []any) {
	values := make([]*string, n)
	dest := make([]any, n)
	for i := range values {
		dest[i] = &values[i]
	}
	return values, dest
}
