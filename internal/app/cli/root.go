// Package cli implements conduit's command-line surface: a cobra root
// command with serve and version subcommands, grounded in the shape
// of a conventional cobra CLI rather than the teacher's bare flag
// parsing (the teacher has no CLI layer to imitate here).
package cli

import (
	"github.com/spf13/cobra"

	"github.com/thushan/conduit/internal/version"
)

// NewRootCmd builds the conduit command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "conduit",
		Short:         "conduit runs stream endpoints over TCP and TLS, filtered and forwarded",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
