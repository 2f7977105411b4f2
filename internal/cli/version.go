package cli

import (
	"github.com/spf13/cobra"
)

// VersionCommand prints the build version.
func VersionCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("present-ponder version %s\n", opts.version)
		},
	}
}
