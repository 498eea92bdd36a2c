// `sacctcollapse` -- Collapse per-step Slurm sacct rows into one row per job
//
// Run `sacctcollapse help` for brief help.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	collapsecmd "sacctcollapse/cmd/collapse"
	policycmd "sacctcollapse/cmd/policy"
	runcmd "sacctcollapse/cmd/run"
	servecmd "sacctcollapse/cmd/serve"
	versioncmd "sacctcollapse/cmd/version"
	"sacctcollapse/command"
)

// v0.1.0 - first-pass and analytic collapse of one partition
// v0.2.0 - shard ranges, sinks, and the HTTP service

const SacctcollapseVersion = "0.2.0"

// Set with -ldflags at build time.
var (
	commit = "unknown"
	date   = "unknown"
)

func main() {
	if err := newRoot(command.NewEnv()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRoot(env *command.Env) *cobra.Command {
	root := &cobra.Command{
		Use:   "sacctcollapse",
		Short: "Collapse per-step Slurm sacct rows into one row per job",
		Long: `sacctcollapse reads delimited sacct output that has been split into partitions, groups the
rows of each partition by job, reduces every column by its policy, and writes one row per job to
the output directory and any configured sinks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       SacctcollapseVersion,
	}
	root.PersistentFlags().StringVar(&env.ConfigFile, "config", "", "configuration file (YAML)")
	root.PersistentFlags().StringVar(&env.LogLevel, "log-level", "", "debug, info, warning, error or critical")

	root.AddCommand(
		collapsecmd.New(env),
		runcmd.New(env),
		servecmd.New(env, SacctcollapseVersion),
		policycmd.New(env),
		versioncmd.New(env, SacctcollapseVersion, commit, date),
	)
	return root
}
