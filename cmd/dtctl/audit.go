package main

import (
	"github.com/spf13/cobra"
)

func newAuditCmd(opts *rootOptions) *cobra.Command {
	var (
		action string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the newest audit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			entries, err := opts.client().AuditEntries(cmd.Context(), action, limit)
			if err != nil {
				return err
			}
			return r.auditEntries(entries)
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "only entries with this action, e.g. compare_run_submitted")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries to show")
	return cmd
}
