package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/client"
)

const defaultServerURL = "http://127.0.0.1:8080"

// rootOptions are the flags shared by every command.
type rootOptions struct {
	server  string
	output  string
	verbose bool
}

func (o *rootOptions) client() *client.Client {
	logger := zap.NewNop()
	if o.verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}
	return client.New(o.server, client.WithLogger(logger))
}

func (o *rootOptions) renderer(cmd *cobra.Command) (*renderer, error) {
	switch o.output {
	case outputTable, outputJSON, outputYAML:
		return &renderer{out: cmd.OutOrStdout(), format: o.output}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, json or yaml)", o.output)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	server := os.Getenv("DATATOOLS_URL")
	if server == "" {
		server = defaultServerURL
	}

	cmd := &cobra.Command{
		Use:           "dtctl",
		Short:         "Compare and validate warehouse tables through a datatools server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", server, "datatools server URL (env DATATOOLS_URL)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "output format: table, json or yaml")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log client activity to stderr")

	cmd.AddCommand(
		newSuggestCmd(opts),
		newCompareCmd(opts),
		newValidateCmd(opts),
		newRunsCmd(opts),
		newTablesCmd(opts),
		newColumnsCmd(opts),
		newAuditCmd(opts),
	)
	return cmd
}
