package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/ekaya-inc/ekaya-datatools/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// presenceColumn marks which side of a full outer join produced a row.
const presenceColumn = "_dt_present"

// CountRows counts rows of the (partition-filtered) table.
func (a *Adapter) CountRows(ctx context.Context, ref models.TableRef) (int64, error) {
	args := &queryArgs{}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s s", a.source(ref, args))

	var count int64
	if err := a.db.QueryRow(ctx, query, args.values...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows of %s: %w", ref, err)
	}
	return count, nil
}

// CountUnmatched counts rows of from with no key match in against.
func (a *Adapter) CountUnmatched(ctx context.Context, from, against models.TableRef, keys []models.ColumnPair) (int64, error) {
	args := &queryArgs{}
	fromSource := a.source(from, args)
	againstSource := a.source(against, args)

	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s f WHERE NOT EXISTS (SELECT 1 FROM %s a WHERE %s)",
		fromSource, againstSource, joinCondition("f", "a", keys))

	var count int64
	if err := a.db.QueryRow(ctx, query, args.values...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unmatched rows of %s: %w", from, err)
	}
	return count, nil
}

// SampleUnmatched returns up to limit rows whose key tuple exists on one side only.
func (a *Adapter) SampleUnmatched(ctx context.Context, left, right models.TableRef, keys []models.ColumnPair, limit int) ([]models.MissingRow, error) {
	leftKeys := leftColumns(keys)
	rightKeys := rightColumns(keys)

	args := &queryArgs{}
	leftSource := a.keySource(left, lo.Uniq(leftKeys), args)
	rightSource := a.keySource(right, lo.Uniq(rightKeys), args)

	query := fmt.Sprintf(`
		SELECT l.%[1]s IS NOT NULL, %[2]s, %[3]s
		FROM %[4]s l
		FULL OUTER JOIN %[5]s r ON %[6]s
		WHERE l.%[1]s IS NULL OR r.%[1]s IS NULL
		ORDER BY %[7]s, %[8]s
		LIMIT %[9]s`,
		presenceColumn,
		keyList("l", leftKeys, true),
		keyList("r", rightKeys, true),
		leftSource,
		rightSource,
		joinCondition("l", "r", keys),
		keyList("l", leftKeys, false),
		keyList("r", rightKeys, false),
		args.add(limit),
	)

	rows, err := a.db.Query(ctx, query, args.values...)
	if err != nil {
		return nil, fmt.Errorf("sample unmatched rows: %w", err)
	}
	defer rows.Close()

	sample := []models.MissingRow{}
	for rows.Next() {
		var leftPresent bool
		leftValues, leftDest := textScanTargets(len(leftKeys))
		rightValues, rightDest := textScanTargets(len(rightKeys))

		dest := append([]any{&leftPresent}, leftDest...)
		dest = append(dest, rightDest...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan unmatched row: %w", err)
		}

		if leftPresent {
			sample = append(sample, models.MissingRow{
				Side: models.MissingSideLeftOnly,
				Key:  keyMap(leftKeys, leftValues),
			})
		} else {
			sample = append(sample, models.MissingRow{
				Side: models.MissingSideRightOnly,
				Key:  keyMap(rightKeys, rightValues),
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unmatched rows: %w", err)
	}

	return sample, nil
}

// keySource projects the key columns of ref plus a presence marker.
func (a *Adapter) keySource(ref models.TableRef, columns []string, args *queryArgs) string {
	projection := "TRUE AS " + presenceColumn + ", " + keyList("", columns, false)
	table := qualifiedTableName(ref.Environment, ref.Table)
	if !ref.HasPartition() {
		return fmt.Sprintf("(SELECT %s FROM %s)", projection, table)
	}
	return fmt.Sprintf("(SELECT %s FROM %s WHERE %s = %s)",
		projection, table, col("", a.partitionColumn), args.add(ref.Partition))
}

// CountColumnDiffs counts matched rows and differing values per compare column in one pass.
func (a *Adapter) CountColumnDiffs(ctx context.Context, left, right models.TableRef, keys []models.ColumnPair, columns []datasource.CompareColumn) (*datasource.ColumnDiffCounts, error) {
	args := &queryArgs{}
	leftSource := a.source(left, args)
	rightSource := a.source(right, args)

	selects := make([]string, 0, len(columns)+1)
	selects = append(selects, "COUNT(*)")
	for _, c := range columns {
		selects = append(selects, fmt.Sprintf("COUNT(*) FILTER (WHERE %s)", distinctPredicate(c)))
	}

	query := fmt.Sprintf("SELECT %s FROM %s l JOIN %s r ON %s",
		strings.Join(selects, ", "), leftSource, rightSource, joinCondition("l", "r", keys))

	result := &datasource.ColumnDiffCounts{Diffs: make([]int64, len(columns))}
	dest := make([]any, 0, len(columns)+1)
	dest = append(dest, &result.TotalCompared)
	for i := range result.Diffs {
		dest = append(dest, &result.Diffs[i])
	}

	if err := a.db.QueryRow(ctx, query, args.values...).Scan(dest...); err != nil {
		return nil, fmt.Errorf("count column differences: %w", err)
	}
	return result, nil
}

// SampleColumnDiff returns up to limit matched rows whose values differ for column.
func (a *Adapter) SampleColumnDiff(ctx context.Context, left, right models.TableRef, keys []models.ColumnPair, column datasource.CompareColumn, limit int) ([]models.DiffSample, error) {
	leftKeys := leftColumns(keys)

	args := &queryArgs{}
	leftSource := a.source(left, args)
	rightSource := a.source(right, args)

	query := fmt.Sprintf(`
		SELECT %s::text, %s::text, %s
		FROM %s l
		JOIN %s r ON %s
		WHERE %s
		ORDER BY %s
		LIMIT %s`,
		col("l", column.Pair.Left),
		col("r", column.Pair.Right),
		keyList("l", leftKeys, true),
		leftSource,
		rightSource,
		joinCondition("l", "r", keys),
		distinctPredicate(column),
		keyList("l", leftKeys, false),
		args.add(limit),
	)

	rows, err := a.db.Query(ctx, query, args.values...)
	if err != nil {
		return nil, fmt.Errorf("sample differences for %s: %w", column.Pair.Left, err)
	}
	defer rows.Close()

	sample := []models.DiffSample{}
	for rows.Next() {
		var d models.DiffSample
		keyValues, keyDest := textScanTargets(len(leftKeys))
		dest := append([]any{&d.LeftValue, &d.RightValue}, keyDest...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan difference: %w", err)
		}
		d.Key = keyMap(leftKeys, keyValues)
		sample = append(sample, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate differences: %w", err)
	}

	return sample, nil
}

// distinctPredicate is true when the pair's values differ; NULL equals NULL.
func distinctPredicate(c datasource.CompareColumn) string {
	left := col("l", c.Pair.Left)
	right := col("r", c.Pair.Right)
	if c.AsText {
		left += "::text"
		right += "::text"
	}
	return fmt.Sprintf("%s IS DISTINCT FROM %s", left, right)
}

func keyMap(columns []string, values []*string) map[string]*string {
	m := make(map[string]*string, len(columns))
	for i, c := range columns {
		m[c] = values[i]
	}
	return m
}
