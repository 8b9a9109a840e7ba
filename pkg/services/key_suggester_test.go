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

func newTestKeySuggester(intro *mockIntrospector, prof *mockProfiler) (KeySuggester, *mockAuditService) {
	audit := &mockAuditService{}
	return NewKeySuggester(intro, prof, audit, testDataToolsConfig(), zap.NewNop()), audit
}

func suggestRequest() models.SuggestKeysRequest {
	return models.SuggestKeysRequest{
		LeftTable:      "orders",
		RightTable:     "orders",
		LeftEnvSchema:  "dev",
		RightEnvSchema: "prod",
		LeftPartition:  "20240101",
		RightPartition: "20240101",
	}
}

func TestKeySuggester_SingleSharedBigint(t *testing.T) {
	intro := &mockIntrospector{columns: map[string][]models.ColumnMeta{
		"dev.orders": {
			{Name: "id", DataType: "bigint", OrdinalPosition: 1},
			{Name: "left_only", DataType: "text", OrdinalPosition: 2},
		},
		"prod.orders": {
			{Name: "right_only", DataType: "text", OrdinalPosition: 1},
			{Name: "id", DataType: "bigint", OrdinalPosition: 2},
		},
	}}
	s, audit := newTestKeySuggester(intro, &mockProfiler{})

	result, err := s.SuggestKeys(context.Background(), suggestRequest())
	require.NoError(t, err)

	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "id", result.Candidates[0].Column)
	assert.Equal(t, 1.0, result.Candidates[0].Score)
	assert.Equal(t, []string{"id"}, result.CompareCandidates)
	assert.Empty(t, result.SkippedReason)
	assert.Equal(t, []string{models.AuditActionSuggestKeys}, audit.recorded())
}

func TestKeySuggester_SkipsPartitionColumn(t *testing.T) {
	intro := &mockIntrospector{columns: map[string][]models.ColumnMeta{
		"dev.orders": {
			{Name: "id", DataType: "bigint", OrdinalPosition: 1},
			{Name: "pt", DataType: "text", OrdinalPosition: 2},
		},
		"prod.orders": {
			{Name: "id", DataType: "bigint", OrdinalPosition: 1},
			{Name: "pt", DataType: "text", OrdinalPosition: 2},
		},
	}}
	s, _ := newTestKeySuggester(intro, &mockProfiler{})

	result, err := s.SuggestKeys(context.Background(), suggestRequest())
	require.NoError(t, err)

	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "id", result.Candidates[0].Column)
	assert.Equal(t, []string{"id"}, result.CompareCandidates)
}

func TestRankKeyCandidates_Ordering(t *testing.T) {
	left := []models.ColumnMeta{
		{Name: "zeta", DataType: "integer", OrdinalPosition: 1},
		{Name: "amount", DataType: "numeric(10,2)", OrdinalPosition: 2},
		{Name: "alpha", DataType: "integer", OrdinalPosition: 3},
		{Name: "note", DataType: "text", OrdinalPosition: 4},
		{Name: "flag", DataType: "boolean", OrdinalPosition: 5},
	}
	right := []models.ColumnMeta{
		{Name: "alpha", DataType: "int4", OrdinalPosition: 1},
		{Name: "zeta", DataType: "integer", OrdinalPosition: 2},
		{Name: "amount", DataType: "bigint", OrdinalPosition: 3},
		{Name: "note", DataType: "character varying(40)", OrdinalPosition: 4},
		{Name: "flag", DataType: "text", OrdinalPosition: 5},
	}

	candidates, compare := RankKeyCandidates(left, right)

	var names []string
	for _, c := range candidates {
		names = append(names, c.Column)
	}
	assert.Equal(t, []string{"alpha", "zeta", "amount", "note"}, names)
	assert.Equal(t, []string{"zeta", "amount", "alpha", "note"}, compare)

	for i := 1; i < len(candidates); i++ {
		prev, cur := candidates[i-1], candidates[i]
		assert.True(t, prev.Score > cur.Score || (prev.Score == cur.Score && prev.Column < cur.Column))
	}
}

func TestKeySuggester_TruncatesToMaxCandidates(t *testing.T) {
	cols := []models.ColumnMeta{
		{Name: "a", DataType: "text", OrdinalPosition: 1},
		{Name: "b", DataType: "text", OrdinalPosition: 2},
		{Name: "c", DataType: "text", OrdinalPosition: 3},
	}
	intro := &mockIntrospector{columns: map[string][]models.ColumnMeta{"dev.orders": cols, "prod.orders": cols}}
	s, _ := newTestKeySuggester(intro, &mockProfiler{})

	req := suggestRequest()
	req.MaxCandidates = intPtr(2)
	result, err := s.SuggestKeys(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Candidates, 2)
	assert.Len(t, result.CompareCandidates, 3)
}

func TestKeySuggester_ValidationErrors(t *testing.T) {
	s, audit := newTestKeySuggester(&mockIntrospector{}, &mockProfiler{})

	req := models.SuggestKeysRequest{
		LeftTable:      "bad-name",
		LeftEnvSchema:  "staging",
		LeftPartition:  "2024",
		RightPartition: "20240101",
		MaxCandidates:  intPtr(0),
	}
	_, err := s.SuggestKeys(context.Background(), req)
	require.Error(t, err)

	verr, ok := apperrors.AsValidationError(err)
	require.True(t, ok)

	var fields []string
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"left_env_schema", "left_table", "left_pt", "right_table", "max_candidates"}, fields)
	assert.Empty(t, audit.recorded())
}

func TestKeySuggester_PartitionGate(t *testing.T) {
	intro := &mockIntrospector{err: errors.New("must not be called")}
	s, _ := newTestKeySuggester(intro, &mockProfiler{})

	req := suggestRequest()
	req.RightPartition = ""
	result, err := s.SuggestKeys(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.Equal(t, SkippedReasonPartitionRequired, result.SkippedReason)
}

func TestKeySuggester_TableNotFound(t *testing.T) {
	intro := &mockIntrospector{columns: map[string][]models.ColumnMeta{}}
	s, _ := newTestKeySuggester(intro, &mockProfiler{})

	_, err := s.SuggestKeys(context.Background(), suggestRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestKeySuggester_Profile(t *testing.T) {
	cols := []models.ColumnMeta{
		{Name: "id", DataType: "bigint", OrdinalPosition: 1},
		{Name: "region", DataType: "text", OrdinalPosition: 2},
	}
	intro := &mockIntrospector{columns: map[string][]models.ColumnMeta{"dev.orders": cols, "prod.orders": cols}}
	prof := &mockProfiler{profiles: map[string]*datasource.ColumnProfile{
		"dev.orders.id":      {Rows: 100, Distinct: 100, Nulls: 0},
		"prod.orders.id":     {Rows: 100, Distinct: 90, Nulls: 5},
		"dev.orders.region":  {Rows: 100, Distinct: 4, Nulls: 0},
		"prod.orders.region": {Rows: 100, Distinct: 4, Nulls: 0},
	}}
	s, _ := newTestKeySuggester(intro, prof)

	req := suggestRequest()
	req.Profile = true
	result, err := s.SuggestKeys(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)

	id := result.Candidates[0]
	assert.Equal(t, "id", id.Column)
	assert.Equal(t, 0.85, id.Score)
	require.NotNil(t, id.Uniqueness)
	assert.Equal(t, 0.9, *id.Uniqueness)
	assert.Equal(t, 0.05, *id.NullRatio)

	region := result.Candidates[1]
	assert.Equal(t, "region", region.Column)
	assert.Equal(t, 0.04, region.Score)
	assert.Equal(t, 4, prof.calls)
}

func TestKeySuggester_ProfileError(t *testing.T) {
	cols := []models.ColumnMeta{{Name: "id", DataType: "bigint", OrdinalPosition: 1}}
	intro := &mockIntrospector{columns: map[string][]models.ColumnMeta{"dev.orders": cols, "prod.orders": cols}}
	s, _ := newTestKeySuggester(intro, &mockProfiler{err: errors.New("statement timeout")})

	req := suggestRequest()
	req.Profile = true
	_, err := s.SuggestKeys(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement timeout")
}

func TestApplyProfile_EmptyTables(t *testing.T) {
	c := models.KeyCandidate{Column: "id", Score: 1}
	applyProfile(&c, &datasource.ColumnProfile{}, &datasource.ColumnProfile{Rows: 3, Distinct: 3})
	assert.Equal(t, 0.0, c.Score)
	assert.Equal(t, 0.0, *c.Uniqueness)
}
