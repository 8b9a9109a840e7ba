package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var (
		req          models.ValidateRunRequest
		wait         bool
		pollInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run data-quality checks on one table",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}

			c := opts.client()
			submitted, err := c.SubmitValidation(cmd.Context(), req)
			if err != nil {
				return err
			}
			return finishRun(cmd, c, r, submitted, wait, pollInterval)
		},
	}
	cmd.Flags().StringVar(&req.TargetTable, "table", "", "table to validate")
	cmd.Flags().StringVar(&req.EnvSchema, "env", "", "environment")
	cmd.Flags().StringVar(&req.Partition, "pt", "", "partition token")
	registerWaitFlags(cmd, &wait, &pollInterval)
	return cmd
}
