package versioncmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sacctcollapse/command"
)

func New(env *command.Env, version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(env.Stdout, "sacctcollapse %s\n", version)
			fmt.Fprintf(env.Stdout, "  commit: %s\n", commit)
			fmt.Fprintf(env.Stdout, "  built:  %s\n", date)
		},
	}
}
