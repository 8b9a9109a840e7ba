package main

import (
	"github.com/spf13/cobra"
)

func newTablesCmd(opts *rootOptions) *cobra.Command {
	var env, filter string

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables of an environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			tables, err := opts.client().ListTables(cmd.Context(), env, filter)
			if err != nil {
				return err
			}
			return r.tables(tables)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment")
	cmd.Flags().StringVar(&filter, "filter", "", "substring of the table name")
	return cmd
}

func newColumnsCmd(opts *rootOptions) *cobra.Command {
	var env, table, partition string

	cmd := &cobra.Command{
		Use:   "columns",
		Short: "List the columns of a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			cols, err := opts.client().TableColumns(cmd.Context(), env, table, partition)
			if err != nil {
				return err
			}
			return r.columns(cols)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment")
	cmd.Flags().StringVar(&table, "table", "", "table name")
	cmd.Flags().StringVar(&partition, "pt", "", "partition token that must exist")
	return cmd
}
