package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

type fakeRow map[string]*string

// fakeWarehouse evaluates comparison queries over in-memory rows kept in key order.
type fakeWarehouse struct {
	tables  map[string][]fakeRow
	failOn  string
	sampled []string
}

func (w *fakeWarehouse) rows(ref models.TableRef) []fakeRow {
	return w.tables[ref.Environment+"."+ref.Table]
}

func keysMatch(a, b fakeRow, keys []models.ColumnPair) bool {
	for _, k := range keys {
		av, bv := a[k.Left], b[k.Right]
		if av == nil || bv == nil || *av != *bv {
			return false
		}
	}
	return true
}

func valuesDiffer(a, b *string) bool {
	if a == nil || b == nil {
		return a != b
	}
	return *a != *b
}

func (w *fakeWarehouse) CountRows(ctx context.Context, ref models.TableRef) (int64, error) {
	if w.failOn == "count" {
		return 0, errors.New("connection reset")
	}
	return int64(len(w.rows(ref))), nil
}

func (w *fakeWarehouse) unmatched(from, against []fakeRow, keys []models.ColumnPair) []fakeRow {
	var out []fakeRow
	for _, f := range from {
		found := false
		for _, a := range against {
			if keysMatch(f, a, keys) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, f)
		}
	}
	return out
}

func swap(keys []models.ColumnPair) []models.ColumnPair {
	out := make([]models.ColumnPair, len(keys))
	for i, k := range keys {
		out[i] = models.ColumnPair{Left: k.Right, Right: k.Left}
	}
	return out
}

func (w *fakeWarehouse) CountUnmatched(ctx context.Context, from, against models.TableRef, keys []models.ColumnPair) (int64, error) {
	return int64(len(w.unmatched(w.rows(from), w.rows(against), keys))), nil
}

func (w *fakeWarehouse) SampleUnmatched(ctx context.Context, left, right models.TableRef, keys []models.ColumnPair, limit int) ([]models.MissingRow, error) {
	sample := []models.MissingRow{}
	add := func(side models.MissingSide, row fakeRow, cols []models.ColumnPair, useLeft bool) {
		key := map[string]*string{}
		for _, k := range cols {
			name := k.Right
			if useLeft {
				name = k.Left
			}
			key[name] = row[name]
		}
		if len(sample) < limit {
			sample = append(sample, models.MissingRow{Side: side, Key: key})
		}
	}
	for _, r := range w.unmatched(w.rows(left), w.rows(right), keys) {
		add(models.MissingSideLeftOnly, r, keys, true)
	}
	for _, r := range w.unmatched(w.rows(right), w.rows(left), swap(keys)) {
		add(models.MissingSideRightOnly, r, keys, false)
	}
	return sample, nil
}

func (w *fakeWarehouse) matched(left, right models.TableRef, keys []models.ColumnPair) [][2]fakeRow {
	var out [][2]fakeRow
	for _, l := range w.rows(left) {
		for _, r := range w.rows(right) {
			if keysMatch(l, r, keys) {
				out = append(out, [2]fakeRow{l, r})
			}
		}
	}
	return out
}

func (w *fakeWarehouse) CountColumnDiffs(ctx context.Context, left, right models.TableRef, keys []models.ColumnPair, columns []datasource.CompareColumn) (*datasource.ColumnDiffCounts, error) {
	pairs := w.matched(left, right, keys)
	counts := &datasource.ColumnDiffCounts{TotalCompared: int64(len(pairs)), Diffs: make([]int64, len(columns))}
	for _, p := range pairs {
		for i, c := range columns {
			if valuesDiffer(p[0][c.Pair.Left], p[1][c.Pair.Right]) {
				counts.Diffs[i]++
			}
		}
	}
	return counts, nil
}

func (w *fakeWarehouse) SampleColumnDiff(ctx context.Context, left, right models.TableRef, keys []models.ColumnPair, column datasource.CompareColumn, limit int) ([]models.DiffSample, error) {
	if w.failOn == "sample" {
		return nil, errors.New("canceling statement due to statement timeout")
	}
	w.sampled = append(w.sampled, column.Pair.Left)
	sample := []models.DiffSample{}
	for _, p := range w.matched(left, right, keys) {
		l, r := p[0][column.Pair.Left], p[1][column.Pair.Right]
		if !valuesDiffer(l, r) || len(sample) >= limit {
			continue
		}
		key := map[string]*string{}
		for _, k := range keys {
			key[k.Left] = p[0][k.Left]
		}
		sample = append(sample, models.DiffSample{LeftValue: l, RightValue: r, Key: key})
	}
	return sample, nil
}

func idRows(ids ...string) []fakeRow {
	rows := make([]fakeRow, len(ids))
	for i, id := range ids {
		rows[i] = fakeRow{"id": strPtr(id), "status": strPtr("active")}
	}
	return rows
}

func ordersIntrospector() *mockIntrospector {
	cols := []models.ColumnMeta{
		{Name: "id", DataType: "bigint", OrdinalPosition: 1},
		{Name: "status", DataType: "text", OrdinalPosition: 2},
	}
	return &mockIntrospector{columns: map[string][]models.ColumnMeta{"dev.orders": cols, "prod.orders": cols}}
}

func ordersPlan(compare ...models.ColumnPair) *models.ComparisonPlan {
	return &models.ComparisonPlan{
		Left:            models.TableRef{Environment: "dev", Table: "orders"},
		Right:           models.TableRef{Environment: "prod", Table: "orders"},
		JoinKeys:        []models.ColumnPair{models.SelfPair("id")},
		CompareColumns:  compare,
		SampleLimit:     50,
		DiffSampleLimit: 20,
	}
}

func TestComparisonExecutor_MissingRows(t *testing.T) {
	w := &fakeWarehouse{tables: map[string][]fakeRow{
		"dev.orders":  idRows("1", "2", "3"),
		"prod.orders": idRows("2", "3", "4"),
	}}
	e := NewComparisonExecutor(ordersIntrospector(), w, 2, zap.NewNop())

	result, err := e.Execute(context.Background(), ordersPlan())
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.LeftCount)
	assert.Equal(t, int64(3), result.RightCount)
	assert.Equal(t, int64(1), result.MissingInRight)
	assert.Equal(t, int64(1), result.MissingInLeft)
	require.Len(t, result.Sample, 2)
	assert.Equal(t, models.MissingSideLeftOnly, result.Sample[0].Side)
	assert.Equal(t, "1", *result.Sample[0].Key["id"])
	assert.Equal(t, models.MissingSideRightOnly, result.Sample[1].Side)
	assert.Equal(t, "4", *result.Sample[1].Key["id"])
	assert.Empty(t, result.ColumnDiffs)

	// Count identities hold for keys unique per side.
	matched := result.LeftCount - result.MissingInRight
	assert.Equal(t, matched, result.RightCount-result.MissingInLeft)
}

func TestComparisonExecutor_ColumnDiff(t *testing.T) {
	left := idRows("1", "2", "3")
	right := idRows("1", "2", "3")
	right[1]["status"] = strPtr("suspended")

	w := &fakeWarehouse{tables: map[string][]fakeRow{"dev.orders": left, "prod.orders": right}}
	e := NewComparisonExecutor(ordersIntrospector(), w, 2, zap.NewNop())

	result, err := e.Execute(context.Background(), ordersPlan(models.SelfPair("status"), models.SelfPair("id")))
	require.NoError(t, err)

	assert.Zero(t, result.MissingInRight)
	assert.Zero(t, result.MissingInLeft)
	require.Len(t, result.ColumnDiffs, 2)

	status := result.ColumnDiffs[0]
	assert.Equal(t, "status", status.LeftColumn)
	assert.Equal(t, int64(3), status.TotalCompared)
	assert.Equal(t, int64(1), status.DiffCount)
	require.Len(t, status.Sample, 1)
	assert.Equal(t, "2", *status.Sample[0].Key["id"])
	assert.Equal(t, "active", *status.Sample[0].LeftValue)
	assert.Equal(t, "suspended", *status.Sample[0].RightValue)

	id := result.ColumnDiffs[1]
	assert.Zero(t, id.DiffCount)
	assert.Empty(t, id.Sample)
	assert.Equal(t, []string{"status"}, w.sampled)
}

func TestComparisonExecutor_NullKeysNeverMatch(t *testing.T) {
	left := idRows("1")
	left = append(left, fakeRow{"id": nil, "status": strPtr("x")})
	right := idRows("1")
	right = append(right, fakeRow{"id": nil, "status": strPtr("x")})

	w := &fakeWarehouse{tables: map[string][]fakeRow{"dev.orders": left, "prod.orders": right}}
	e := NewComparisonExecutor(ordersIntrospector(), w, 1, zap.NewNop())

	result, err := e.Execute(context.Background(), ordersPlan())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.MissingInRight)
	assert.Equal(t, int64(1), result.MissingInLeft)
}

func TestComparisonExecutor_MissingColumn(t *testing.T) {
	w := &fakeWarehouse{}
	e := NewComparisonExecutor(ordersIntrospector(), w, 2, zap.NewNop())

	plan := ordersPlan(models.ColumnPair{Left: "status", Right: "state"})
	_, err := e.Execute(context.Background(), plan)
	require.Error(t, err)

	var execErr *apperrors.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, err.Error(), `compare column "state" not found on prod.orders`)
}

func TestComparisonExecutor_IncompatibleJoinKey(t *testing.T) {
	intro := ordersIntrospector()
	intro.columns["prod.orders"] = []models.ColumnMeta{
		{Name: "id", DataType: "uuid", OrdinalPosition: 1},
		{Name: "status", DataType: "text", OrdinalPosition: 2},
	}
	e := NewComparisonExecutor(intro, &fakeWarehouse{}, 2, zap.NewNop())

	_, err := e.Execute(context.Background(), ordersPlan())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible types")
}

func TestComparisonExecutor_TableMissing(t *testing.T) {
	intro := ordersIntrospector()
	delete(intro.columns, "prod.orders")
	e := NewComparisonExecutor(intro, &fakeWarehouse{}, 2, zap.NewNop())

	_, err := e.Execute(context.Background(), ordersPlan())
	require.Error(t, err)

	var execErr *apperrors.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "introspect schema", execErr.Op)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestComparisonExecutor_QueryFailure(t *testing.T) {
	left := idRows("1", "2")
	right := idRows("1", "2")
	right[0]["status"] = strPtr("closed")

	for _, failOn := range []string{"count", "sample"} {
		w := &fakeWarehouse{failOn: failOn, tables: map[string][]fakeRow{"dev.orders": left, "prod.orders": right}}
		e := NewComparisonExecutor(ordersIntrospector(), w, 2, zap.NewNop())

		_, err := e.Execute(context.Background(), ordersPlan(models.SelfPair("status")))
		require.Error(t, err, failOn)

		var execErr *apperrors.ExecutionError
		assert.True(t, errors.As(err, &execErr), failOn)
	}
}
