package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/babelcloud/gbox/packages/avtool/internal/version"
)

func NewVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Info()
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, info.Version)
				return nil
			}
			fmt.Fprintf(out, "%s version %s, build %s\n", info.Name, info.Version, info.GitCommit)
			fmt.Fprintf(out, "Built:      %s\n", info.FormattedTime)
			fmt.Fprintf(out, "Go version: %s\n", info.GoVersion)
			fmt.Fprintf(out, "OS/Arch:    %s/%s\n", info.OS, info.Arch)
			return nil
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}
