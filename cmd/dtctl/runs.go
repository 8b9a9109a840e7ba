package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

func newRunsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect comparison and validation runs",
	}
	cmd.AddCommand(newRunsListCmd(opts), newRunsGetCmd(opts))
	return cmd
}

func newRunsListCmd(opts *rootOptions) *cobra.Command {
	var (
		filter models.RunFilter
		kind   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			filter.Kind = models.RunKind(kind)

			runs, err := opts.client().ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return r.runList(runs)
		},
	}
	cmd.Flags().StringVar(&filter.Environment, "env", "", "only runs touching this environment")
	cmd.Flags().StringVar(&kind, "kind", "", "comparison or validation")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum runs to list")
	return cmd
}

func newRunsGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get RUN_ID",
		Short: "Show one run with its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			run, err := opts.client().GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}
			return r.run(run)
		},
	}
}
