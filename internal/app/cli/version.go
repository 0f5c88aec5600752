package cli

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/thushan/conduit/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			vlog := log.New(cmd.OutOrStdout(), "", 0)
			version.PrintVersionInfo(true, vlog)
			return nil
		},
		SilenceUsage: true,
	}
}
