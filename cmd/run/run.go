// The run verb processes a range of shards with a pool of workers.

package runcmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sacctcollapse/command"
	"sacctcollapse/common"
	"sacctcollapse/partition"
	"sacctcollapse/pipeline"
	"sacctcollapse/sink"
)

type options struct {
	base        string
	dataDir     string
	outDir      string
	variant     string
	from, to    int
	workers     int
	skipMissing bool
}

func New(env *command.Env) *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "run --from N --to M",
		Short: "Collapse shards N through M",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.to < o.from {
				return fmt.Errorf("empty shard range %d..%d", o.from, o.to)
			}
			return run(cmd.Context(), env, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.base, "base", "", "partition base name; default from config")
	f.StringVar(&o.dataDir, "data-dir", "", "input directory; default from config")
	f.StringVar(&o.outDir, "out-dir", "", "output directory, in addition to configured sinks")
	f.StringVar(&o.variant, "variant", "", "collapse variant (first-pass, analytic); default from config")
	f.IntVar(&o.from, "from", 0, "first shard")
	f.IntVar(&o.to, "to", 0, "last shard, inclusive")
	f.IntVar(&o.workers, "workers", 0, "concurrent partitions; default from config")
	f.BoolVar(&o.skipMissing, "skip-missing", false, "skip shards that have no input")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func run(ctx context.Context, env *command.Env, o options) (err error) {
	cfg, err := env.Config()
	if err != nil {
		return err
	}
	common.ApplyDefault(&o.dataDir, common.DefaultDataDir)
	common.ApplyDefault(&o.outDir, common.DefaultOutDir)
	if o.base == "" {
		o.base = cfg.Input.Base
	}
	if o.base == "" {
		return errors.New("no partition base name: use --base or configure input.base")
	}
	if o.workers == 0 {
		o.workers = cfg.Workers
	}

	stopTracing, err := env.StartTracing(cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, stopTracing(context.Background())) }()

	engine, err := env.Engine(cfg, o.variant)
	if err != nil {
		return err
	}
	source, err := partition.FromConfig(&cfg.Input, o.dataDir)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	sinks, err := sink.FromConfig(ctx, cfg, o.outDir, runID, env.Log)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, sinks.Close()) }()

	proc := pipeline.NewProcessor(engine, pipeline.Options{
		Source:      source,
		Sink:        sinks,
		Format:      cfg.Format(),
		Workers:     o.workers,
		SkipMissing: o.skipMissing,
		RunID:       runID,
	}, env.Log)

	env.Log.Infof("Run %s: shards %d..%d of %s from %s to %s", runID, o.from, o.to, o.base, source, sinks)
	outcomes, err := proc.ProcessRange(ctx, partition.ShardRange(o.base, o.from, o.to))
	printSummary(env, runID, outcomes)
	return err
}

func printSummary(env *command.Env, runID string, outcomes []pipeline.Outcome) {
	var done, skipped, failed, rows, jobs int
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			failed++
		case o.Skipped:
			skipped++
		case o.Diagnostics != nil:
			done++
			rows += o.Diagnostics.InputRows
			jobs += o.Diagnostics.Rows
		}
	}
	fmt.Fprintf(env.Stdout, "run %s: %d done, %d skipped, %d failed; %d rows collapsed to %d jobs\n",
		runID, done, skipped, failed, rows, jobs)
}
