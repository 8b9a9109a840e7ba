package services

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/config"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// ComparisonPlanner validates comparison requests and compiles them into plans.
type ComparisonPlanner interface {
	// Plan returns the canonical plan, or an *apperrors.ValidationError listing
	// every failing field.
	Plan(req models.CompareRunRequest) (*models.ComparisonPlan, error)
}

type comparisonPlanner struct {
	cfg config.DataToolsConfig
}

// NewComparisonPlanner creates a ComparisonPlanner.
func NewComparisonPlanner(cfg config.DataToolsConfig) ComparisonPlanner {
	return &comparisonPlanner{cfg: cfg}
}

var _ ComparisonPlanner = (*comparisonPlanner)(nil)

func (p *comparisonPlanner) Plan(req models.CompareRunRequest) (*models.ComparisonPlan, error) {
	v := &apperrors.ValidationError{}

	left := resolveTableRef(v, p.cfg, tableSide{
		tableField: "left_table", envField: "left_env_schema", ptField: "left_pt",
		table: req.LeftTable, env: req.LeftEnvSchema, sharedEnv: req.EnvSchema, partition: req.LeftPartition,
	})
	right := resolveTableRef(v, p.cfg, tableSide{
		tableField: "right_table", envField: "right_env_schema", ptField: "right_pt",
		table: req.RightTable, env: req.RightEnvSchema, sharedEnv: req.EnvSchema, partition: req.RightPartition,
	})

	joinKeys := planJoinKeys(v, req)
	compareColumns := planCompareColumns(v, req)

	sampleLimit := models.DefaultSampleLimit
	if req.SampleLimit != nil {
		sampleLimit = *req.SampleLimit
		if sampleLimit < 1 || sampleLimit > models.MaxSampleLimit {
			v.Add("sample_limit", fmt.Sprintf("must be between 1 and %d", models.MaxSampleLimit))
		}
	}

	if req.LeftTable != "" && left.SameTable(right) {
		v.Add("right_table", "must differ from the left table (same environment, table and partition)")
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}

	diffSampleLimit := sampleLimit
	if p.cfg.DiffSampleCap > 0 && p.cfg.DiffSampleCap < diffSampleLimit {
		diffSampleLimit = p.cfg.DiffSampleCap
	}

	return &models.ComparisonPlan{
		Left:            left,
		Right:           right,
		JoinKeys:        joinKeys,
		CompareColumns:  compareColumns,
		SampleLimit:     sampleLimit,
		DiffSampleLimit: diffSampleLimit,
	}, nil
}

// planJoinKeys prefers explicit pairs and falls back to legacy bare names.
func planJoinKeys(v *apperrors.ValidationError, req models.CompareRunRequest) []models.ColumnPair {
	var keys []models.ColumnPair

	switch {
	case len(req.JoinKeyPairs) > 0:
		seen := map[models.ColumnPair]bool{}
		for i, pair := range req.JoinKeyPairs {
			ok := checkPairSide(v, fmt.Sprintf("join_key_pairs[%d].left", i), pair.Left)
			ok = checkPairSide(v, fmt.Sprintf("join_key_pairs[%d].right", i), pair.Right) && ok
			if !ok {
				continue
			}
			if seen[pair] {
				v.Add(fmt.Sprintf("join_key_pairs[%d]", i), "duplicate join key pair")
				continue
			}
			seen[pair] = true
			keys = append(keys, pair)
		}

	case len(req.JoinKeys) > 0:
		seen := map[string]bool{}
		for i, name := range req.JoinKeys {
			field := fmt.Sprintf("join_keys[%d]", i)
			if !checkPairSide(v, field, name) {
				continue
			}
			if seen[name] {
				v.Add(field, "duplicate join key")
				continue
			}
			seen[name] = true
			keys = append(keys, models.SelfPair(name))
		}

	default:
		v.Add("join_key_pairs", "at least one join key pair is required")
	}

	return keys
}

// planCompareColumns drops pairs with an empty side, rejects invalid
// identifiers and deduplicates keeping first occurrence order.
func planCompareColumns(v *apperrors.ValidationError, req models.CompareRunRequest) []models.ColumnPair {
	columns := []models.ColumnPair{}

	if len(req.CompareColumnPairs) > 0 {
		for i, pair := range req.CompareColumnPairs {
			if pair.Left == "" || pair.Right == "" {
				continue
			}
			ok := checkPairSide(v, fmt.Sprintf("compare_column_pairs[%d].left", i), pair.Left)
			ok = checkPairSide(v, fmt.Sprintf("compare_column_pairs[%d].right", i), pair.Right) && ok
			if ok {
				columns = append(columns, pair)
			}
		}
	} else {
		for i, name := range req.CompareColumns {
			if name == "" {
				continue
			}
			if checkPairSide(v, fmt.Sprintf("compare_columns[%d]", i), name) {
				columns = append(columns, models.SelfPair(name))
			}
		}
	}

	return lo.Uniq(columns)
}

func checkPairSide(v *apperrors.ValidationError, field, name string) bool {
	if name == "" {
		v.Add(field, "is required")
		return false
	}
	if !models.IsValidIdentifier(name) {
		v.Add(field, "must be a valid identifier")
		return false
	}
	return true
}
