// Sinks receive collapsed partitions.  A partition is written whole or not at all, as far as the
// backend allows: files are renamed into place, database rows are written in one transaction, and
// Kafka records are produced in one synchronous batch.

package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sacctcollapse/collapse"
	"sacctcollapse/partition"
)

// Implementations are safe for concurrent use by the partition workers.
type Sink interface {
	Write(ctx context.Context, addr partition.Address, res *collapse.Result) error
	Close() error
	String() string
}

// Multi writes to each sink in order.  A failing sink does not stop the others; all errors are
// returned together.
type Multi []Sink

var _ Sink = Multi(nil)

func (m Multi) Write(ctx context.Context, addr partition.Address, res *collapse.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, addr, res); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) String() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.String()
	}
	return strings.Join(names, "+")
}
