package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/config"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// SkippedReasonPartitionRequired is returned when suggestion is gated on partitions.
const SkippedReasonPartitionRequired = "left_pt and right_pt are required to suggest keys"

// KeySuggester proposes join-key and compare-column candidates for two tables.
type KeySuggester interface {
	SuggestKeys(ctx context.Context, req models.SuggestKeysRequest) (*models.SuggestKeysResult, error)
}

type keySuggester struct {
	introspector datasource.SchemaIntrospector
	profiler     datasource.TableProfiler
	audit        AuditService
	cfg          config.DataToolsConfig
	logger       *zap.Logger
}

// NewKeySuggester creates a KeySuggester.
func NewKeySuggester(
	introspector datasource.SchemaIntrospector,
	profiler datasource.TableProfiler,
	audit AuditService,
	cfg config.DataToolsConfig,
	logger *zap.Logger,
) KeySuggester {
	return &keySuggester{
		introspector: introspector,
		profiler:     profiler,
		audit:        audit,
		cfg:          cfg,
		logger:       logger.Named("key-suggester"),
	}
}

var _ KeySuggester = (*keySuggester)(nil)

func (s *keySuggester) SuggestKeys(ctx context.Context, req models.SuggestKeysRequest) (*models.SuggestKeysResult, error) {
	v := &apperrors.ValidationError{}
	left := resolveTableRef(v, s.cfg, tableSide{
		tableField: "left_table", envField: "left_env_schema", ptField: "left_pt",
		table: req.LeftTable, env: req.LeftEnvSchema, sharedEnv: req.EnvSchema, partition: req.LeftPartition,
	})
	right := resolveTableRef(v, s.cfg, tableSide{
		tableField: "right_table", envField: "right_env_schema", ptField: "right_pt",
		table: req.RightTable, env: req.RightEnvSchema, sharedEnv: req.EnvSchema, partition: req.RightPartition,
	})

	limit := models.DefaultMaxCandidates
	if req.MaxCandidates != nil {
		limit = *req.MaxCandidates
		if limit < 1 || limit > models.MaxCandidatesLimit {
			v.Add("max_candidates", fmt.Sprintf("must be between 1 and %d", models.MaxCandidatesLimit))
		}
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if s.cfg.RequirePartitionForSuggest && (!left.HasPartition() || !right.HasPartition()) {
		s.logger.Debug("Skipping key suggestion without partitions",
			zap.String("left", left.String()),
			zap.String("right", right.String()))
		return &models.SuggestKeysResult{
			Candidates:        []models.KeyCandidate{},
			CompareCandidates: []string{},
			SkippedReason:     SkippedReasonPartitionRequired,
		}, nil
	}

	leftCols, err := s.introspector.Columns(ctx, left)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", left, err)
	}
	rightCols, err := s.introspector.Columns(ctx, right)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", right, err)
	}

	// The partition column scopes both sides and is never a key.
	leftCols = lo.Reject(leftCols, func(c models.ColumnMeta, _ int) bool {
		return c.Name == s.cfg.PartitionColumn
	})
	candidates, compareCandidates := RankKeyCandidates(leftCols, rightCols)

	if req.Profile && len(candidates) > 0 {
		if err := s.profileCandidates(ctx, left, right, candidates); err != nil {
			return nil, err
		}
		sortCandidates(candidates)
	}

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	s.audit.Record(ctx, models.AuditActionSuggestKeys, left.Environment, map[string]any{
		"left_table":  left.String(),
		"right_table": right.String(),
		"profiled":    req.Profile,
		"candidates":  candidates,
	})

	return &models.SuggestKeysResult{
		Candidates:        candidates,
		CompareCandidates: compareCandidates,
	}, nil
}

// profileCandidates refines scores with live uniqueness and NULL statistics.
func (s *keySuggester) profileCandidates(ctx context.Context, left, right models.TableRef, candidates []models.KeyCandidate) error {
	concurrency := s.cfg.QueryConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(concurrency)

	for i := range candidates {
		c := &candidates[i]
		p.Go(func(ctx context.Context) error {
			lp, err := s.profiler.ProfileColumn(ctx, left, c.Column)
			if err != nil {
				return err
			}
			rp, err := s.profiler.ProfileColumn(ctx, right, c.Column)
			if err != nil {
				return err
			}
			applyProfile(c, lp, rp)
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return fmt.Errorf("failed to profile key candidates: %w", err)
	}
	return nil
}

// applyProfile scores a candidate as type score × max(0, uniqueness − null penalty).
// Uniqueness is the lower distinct ratio of both sides; the null penalty sums both NULL ratios.
func applyProfile(c *models.KeyCandidate, left, right *datasource.ColumnProfile) {
	uniqueness, nullPenalty := 0.0, 0.0
	if left.Rows > 0 && right.Rows > 0 {
		uniqueness = math.Min(
			float64(left.Distinct)/float64(left.Rows),
			float64(right.Distinct)/float64(right.Rows),
		)
		uniqueness = math.Min(uniqueness, 1.0)
		nullPenalty = float64(left.Nulls)/float64(left.Rows) + float64(right.Nulls)/float64(right.Rows)
	}

	u := round4(uniqueness)
	n := round4(nullPenalty)
	c.Uniqueness = &u
	c.NullRatio = &n
	c.Score = round4(c.Score * math.Max(0, uniqueness-nullPenalty))
}

// RankKeyCandidates intersects two column lists by name in left ordinal order
// and scores each common column by declared type compatibility. Incompatible
// columns are excluded. Candidates are sorted by score descending, then name.
// The second result lists every compatible common column in left ordinal order.
func RankKeyCandidates(left, right []models.ColumnMeta) ([]models.KeyCandidate, []string) {
	rightByName := make(map[string]models.ColumnMeta, len(right))
	for _, c := range right {
		rightByName[c.Name] = c
	}

	ordered := make([]models.ColumnMeta, len(left))
	copy(ordered, left)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrdinalPosition < ordered[j].OrdinalPosition
	})

	candidates := []models.KeyCandidate{}
	compareCandidates := []string{}
	for _, l := range ordered {
		r, ok := rightByName[l.Name]
		if !ok {
			continue
		}
		score := typeCompatibility(l.DataType, r.DataType)
		if score == 0 {
			continue
		}
		candidates = append(candidates, models.KeyCandidate{
			Column:        l.Name,
			DataType:      l.DataType,
			RightDataType: r.DataType,
			Score:         score,
		})
		compareCandidates = append(compareCandidates, l.Name)
	}

	sortCandidates(candidates)
	return candidates, compareCandidates
}

func sortCandidates(candidates []models.KeyCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Column < candidates[j].Column
	})
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
