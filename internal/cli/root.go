// Package cli holds the library's command line: the server and account
// bootstrapping.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/schoollib/library/internal/config"
	"github.com/schoollib/library/internal/entrypoint"
)

// BuildInfo is stamped at build time via ldflags.
type BuildInfo struct {
	Version string
	Commit  string
}

// NewRootCommand returns the CLI. With no subcommand it runs the server.
func NewRootCommand(info BuildInfo) *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "School library inventory and attendance service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			entrypoint.Run(config.NewConfig(), info.Version)
			return nil
		},
	}
	root.AddCommand(
		newServeCommand(info),
		newCreateAdminCommand(),
		newVersionCommand(info),
	)
	return root
}

func newServeCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entrypoint.Run(config.NewConfig(), info.Version)
			return nil
		},
	}
}

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("library %s (%s)\n", info.Version, info.Commit)
		},
	}
}
