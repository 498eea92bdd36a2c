// The collapse verb processes one partition, addressed the way the split step names them.

package collapsecmd

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sacctcollapse/command"
	"sacctcollapse/partition"
	"sacctcollapse/pipeline"
	"sacctcollapse/sink"
)

func New(env *command.Env) *cobra.Command {
	var (
		variant     string
		diagnostics bool
	)
	cmd := &cobra.Command{
		Use:   "collapse <base> <data-dir> <out-dir> <shard>",
		Short: "Collapse one partition: <data-dir>/split_<base>_<shard> to <out-dir>/<shard>",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := partition.Address{Base: args[0], Shard: args[3]}
			return run(cmd.Context(), env, addr, args[1], args[2], variant, diagnostics)
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "", "collapse variant (first-pass, analytic); default from config")
	cmd.Flags().BoolVar(&diagnostics, "diagnostics", true, "print diagnostics to stdout")
	return cmd
}

func run(ctx context.Context, env *command.Env, addr partition.Address, dataDir, outDir, variant string, diagnostics bool) (err error) {
	cfg, err := env.Config()
	if err != nil {
		return err
	}
	stopTracing, err := env.StartTracing(cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, stopTracing(context.Background())) }()

	engine, err := env.Engine(cfg, variant)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	sinks, err := sink.FromConfig(ctx, cfg, outDir, runID, env.Log)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, sinks.Close()) }()

	proc := pipeline.NewProcessor(engine, pipeline.Options{
		Source: partition.NewDirSource(dataDir),
		Sink:   sinks,
		Format: cfg.Format(),
		RunID:  runID,
	}, env.Log)

	res, err := proc.Process(ctx, addr)
	if err != nil {
		return err
	}
	if diagnostics {
		return res.Diagnostics.Format(env.Stdout)
	}
	return nil
}
