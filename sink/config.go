package sink

import (
	"context"
	"errors"

	"sacctcollapse/config"
	"sacctcollapse/partition"
	"sacctcollapse/status"
)

// FromConfig opens every configured sink.  A non-empty `outDir` adds a file sink there, in front
// of any configured one.  If opening any sink fails the ones already opened are closed.
func FromConfig(ctx context.Context, cfg *config.Config, outDir, runID string, log status.Logger) (Multi, error) {
	var sinks Multi
	fail := func(err error) (Multi, error) {
		return nil, errors.Join(err, sinks.Close())
	}
	delim := cfg.DelimiterRune()

	if outDir != "" {
		fs, err := NewFileSink(outDir, delim)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, fs)
	}
	sc := &cfg.Sinks
	if sc.File != nil && sc.File.Dir != outDir {
		fs, err := NewFileSink(sc.File.Dir, delim)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, fs)
	}
	if sc.S3 != nil {
		sinks = append(sinks, NewS3Sink(partition.NewS3Client(sc.S3), sc.S3.Bucket, sc.S3.Prefix, delim))
	}
	if sc.Postgres != nil {
		ps, err := NewPostgresSink(ctx, sc.Postgres.DSN, sc.Postgres.Table, runID, log)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, ps)
	}
	if sc.Database != nil {
		ds, err := NewDatabaseSink(ctx, sc.Database, runID, log)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, ds)
	}
	if sc.Kafka != nil {
		ks, err := NewKafkaSink(sc.Kafka.Brokers, sc.Kafka.Topic, runID)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, ks)
	}

	if len(sinks) == 0 {
		return nil, errors.New("no output: give an output directory or configure a sink")
	}
	return sinks, nil
}
