package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-datatools/pkg/client"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// tableFlags are the left/right table selectors shared by suggest and compare.
type tableFlags struct {
	left, right       string
	env               string
	leftEnv, rightEnv string
	leftPt, rightPt   string
}

func (f *tableFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.left, "left", "", "left table")
	cmd.Flags().StringVar(&f.right, "right", "", "right table")
	cmd.Flags().StringVar(&f.env, "env", "", "environment for both sides")
	cmd.Flags().StringVar(&f.leftEnv, "left-env", "", "left environment")
	cmd.Flags().StringVar(&f.rightEnv, "right-env", "", "right environment")
	cmd.Flags().StringVar(&f.leftPt, "left-pt", "", "left partition token")
	cmd.Flags().StringVar(&f.rightPt, "right-pt", "", "right partition token")
}

// parseColumnPairs turns "col" or "left:right" arguments into pairs.
func parseColumnPairs(values []string) ([]models.ColumnPair, error) {
	pairs := make([]models.ColumnPair, 0, len(values))
	for _, v := range values {
		left, right, found := strings.Cut(v, ":")
		if !found {
			right = left
		}
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if left == "" || right == "" {
			return nil, fmt.Errorf("invalid column pair %q (want name or left:right)", v)
		}
		pairs = append(pairs, models.ColumnPair{Left: left, Right: right})
	}
	return pairs, nil
}

func newSuggestCmd(opts *rootOptions) *cobra.Command {
	var (
		tables        tableFlags
		maxCandidates int
		profile       bool
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest join keys for two tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}

			req := models.SuggestKeysRequest{
				LeftTable:      tables.left,
				RightTable:     tables.right,
				EnvSchema:      tables.env,
				LeftEnvSchema:  tables.leftEnv,
				RightEnvSchema: tables.rightEnv,
				LeftPartition:  tables.leftPt,
				RightPartition: tables.rightPt,
				Profile:        profile,
			}
			if cmd.Flags().Changed("max") {
				req.MaxCandidates = &maxCandidates
			}

			result, err := opts.client().SuggestKeys(cmd.Context(), req)
			if err != nil {
				return err
			}
			return r.keyCandidates(result)
		},
	}
	tables.register(cmd)
	cmd.Flags().IntVar(&maxCandidates, "max", models.DefaultMaxCandidates, "maximum number of candidates")
	cmd.Flags().BoolVar(&profile, "profile", false, "refine scores with live uniqueness and NULL statistics")
	return cmd
}

func newCompareCmd(opts *rootOptions) *cobra.Command {
	var (
		tables       tableFlags
		keys         []string
		columns      []string
		sampleLimit  int
		wait         bool
		pollInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run a comparison between two tables",
		Example: `  dtctl compare --left orders --right orders --left-env dev --right-env prod \
    --left-pt 20240101 --right-pt 20240101 --key id --column status --column amount:total`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			keyPairs, err := parseColumnPairs(keys)
			if err != nil {
				return err
			}
			columnPairs, err := parseColumnPairs(columns)
			if err != nil {
				return err
			}

			req := models.CompareRunRequest{
				LeftTable:          tables.left,
				RightTable:         tables.right,
				EnvSchema:          tables.env,
				LeftEnvSchema:      tables.leftEnv,
				RightEnvSchema:     tables.rightEnv,
				LeftPartition:      tables.leftPt,
				RightPartition:     tables.rightPt,
				JoinKeyPairs:       keyPairs,
				CompareColumnPairs: columnPairs,
			}
			if cmd.Flags().Changed("sample-limit") {
				req.SampleLimit = &sampleLimit
			}

			c := opts.client()
			submitted, err := c.SubmitComparison(cmd.Context(), req)
			if err != nil {
				return err
			}
			return finishRun(cmd, c, r, submitted, wait, pollInterval)
		},
	}
	tables.register(cmd)
	cmd.Flags().StringArrayVarP(&keys, "key", "k", nil, "join key, as name or left:right (repeatable)")
	cmd.Flags().StringArrayVarP(&columns, "column", "c", nil, "compare column, as name or left:right (repeatable)")
	cmd.Flags().IntVar(&sampleLimit, "sample-limit", models.DefaultSampleLimit, "maximum missing rows to sample")
	registerWaitFlags(cmd, &wait, &pollInterval)
	return cmd
}

func registerWaitFlags(cmd *cobra.Command, wait *bool, pollInterval *time.Duration) {
	cmd.Flags().BoolVar(wait, "wait", true, "poll until the run finishes")
	cmd.Flags().DurationVar(pollInterval, "poll-interval", client.DefaultPollInterval, "delay between status checks")
}

// finishRun prints the submitted run, or polls it to completion and prints the outcome.
func finishRun(cmd *cobra.Command, c *client.Client, r *renderer, submitted *models.SubmittedRun, wait bool, pollInterval time.Duration) error {
	if !wait {
		return r.submitted(submitted)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Run %s submitted, waiting...\n", submitted.RunID)
	run, err := c.WaitForRun(cmd.Context(), submitted.RunID, pollInterval, nil)
	if err != nil {
		return err
	}
	if err := r.run(run); err != nil {
		return err
	}
	if run.Status == models.RunStatusError {
		return fmt.Errorf("run %s failed", run.ID)
	}
	return nil
}
