// The partition pipeline: read a partition, collapse it, hand the result to the sinks.  Partitions
// are independent; a range of them is processed by a bounded pool of workers.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"sacctcollapse/collapse"
	"sacctcollapse/metrics"
	"sacctcollapse/partition"
	"sacctcollapse/policy"
	"sacctcollapse/sink"
	"sacctcollapse/status"
	"sacctcollapse/table"
	"sacctcollapse/tracing"
)

type Options struct {
	Source partition.Source
	Sink   sink.Sink
	Format table.Format

	// Input columns; nil means the sacct columns.
	Columns []string

	Workers int

	// Missing partitions are skipped rather than failed.
	SkipMissing bool

	// A fresh id is generated if empty.
	RunID string
}

type Processor struct {
	engine *collapse.Engine
	opts   Options
	log    status.Logger
}

func NewProcessor(engine *collapse.Engine, opts Options, log status.Logger) *Processor {
	if opts.Columns == nil {
		opts.Columns = slices.Clone(policy.SacctColumns)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Processor{
		engine: engine,
		opts:   opts,
		log:    log.WithField("run", opts.RunID),
	}
}

func (p *Processor) RunID() string {
	return p.opts.RunID
}

// Process collapses one partition.  Every failure is a *partition.PartitionError, and nothing is
// written for a failed partition.
func (p *Processor) Process(ctx context.Context, addr partition.Address) (*collapse.Result, error) {
	variant := p.engine.Variant().Name
	ctx, span := tracing.Tracer().Start(ctx, "partition")
	defer span.End()
	span.SetAttributes(
		attribute.String("partition.base", addr.Base),
		attribute.String("partition.shard", addr.Shard),
		attribute.String("variant", variant),
		attribute.String("run.id", p.opts.RunID),
	)

	started := time.Now()
	res, err := p.process(ctx, addr)
	var diag *collapse.Diagnostics
	if res != nil {
		diag = res.Diagnostics
	}
	metrics.ObservePartition(variant, diag, time.Since(started), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "partition failed")
		return nil, partition.Fail(addr, err)
	}
	span.SetAttributes(
		attribute.Int("rows.in", res.Diagnostics.InputRows),
		attribute.Int("rows.out", res.Diagnostics.Rows),
	)
	return res, nil
}

func (p *Processor) process(ctx context.Context, addr partition.Address) (*collapse.Result, error) {
	t, size, err := partition.Read(ctx, p.opts.Source, addr, p.opts.Columns, p.opts.Format)
	if err != nil {
		return nil, err
	}
	res, err := p.engine.Collapse(ctx, t)
	if err != nil {
		return nil, err
	}
	if size > 0 {
		res.Diagnostics.InputBytes = size
	}
	if err := p.opts.Sink.Write(ctx, addr, res); err != nil {
		// Diagnostics are still reported for the rows that were read.
		return res, fmt.Errorf("writing to %s: %w", p.opts.Sink, err)
	}
	return res, nil
}

type Outcome struct {
	Address     partition.Address
	Diagnostics *collapse.Diagnostics
	Skipped     bool
	Err         error
}

// ProcessRange processes the partitions concurrently.  A failing partition does not stop the
// others; the outcomes are in the order of `addrs` and the error joins all failures.  Only
// cancellation of `ctx` stops the run early.
func (p *Processor) ProcessRange(ctx context.Context, addrs []partition.Address) ([]Outcome, error) {
	outcomes := make([]Outcome, len(addrs))
	for i, addr := range addrs {
		outcomes[i].Address = addr
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	var failed atomic.Int64
	for i, addr := range addrs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			metrics.BusyWorkers.Inc()
			defer metrics.BusyWorkers.Dec()

			res, err := p.Process(gctx, addr)
			switch {
			case err == nil:
				outcomes[i].Diagnostics = res.Diagnostics
				p.log.Infof("Partition %s: %d rows, %d jobs", addr, res.Diagnostics.InputRows, res.Diagnostics.Rows)
			case p.opts.SkipMissing && errors.Is(err, partition.ErrNotFound):
				outcomes[i].Skipped = true
				p.log.Infof("Partition %s: skipped, no input", addr)
			default:
				outcomes[i].Err = err
				failed.Add(1)
				p.log.Errorf("%v", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	if n := failed.Load(); n > 0 {
		p.log.Warningf("%d of %d partitions failed", n, len(addrs))
	}
	return outcomes, errors.Join(errs...)
}
