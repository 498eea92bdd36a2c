// Partitions are the unit of work: one input object per shard of a base name, collapsed
// independently of every other partition.
//
// The input for shard S of base B is named split_B_S and its output is named S, in whatever
// location the source and sink address.

package partition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"sacctcollapse/table"
)

var ErrNotFound = errors.New("partition not found")

type Address struct {
	Base  string `json:"base"`
	Shard string `json:"shard"`
}

func (a Address) InputName() string {
	return "split_" + a.Base + "_" + a.Shard
}

func (a Address) OutputName() string {
	return a.Shard
}

func (a Address) String() string {
	return a.Base + "/" + a.Shard
}

// ShardRange addresses shards from..to inclusive, named by their decimal number.
func ShardRange(base string, from, to int) []Address {
	if to < from {
		return nil
	}
	xs := make([]Address, 0, to-from+1)
	for i := from; i <= to; i++ {
		xs = append(xs, Address{Base: base, Shard: strconv.Itoa(i)})
	}
	return xs
}

// A PartitionError is any failure to collapse a partition.  The partition produces no output.
type PartitionError struct {
	Address Address
	Err     error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %s: %v", e.Address, e.Err)
}

func (e *PartitionError) Unwrap() error {
	return e.Err
}

func Fail(addr Address, err error) error {
	if err == nil {
		return nil
	}
	var pe *PartitionError
	if errors.As(err, &pe) && pe.Address == addr {
		return err
	}
	return &PartitionError{Address: addr, Err: err}
}

// A Source opens partition inputs.  Implementations are safe for concurrent use.
type Source interface {
	// Open returns the input and its size in bytes, or -1 if the size is not known.  A missing
	// input is reported with an error wrapping ErrNotFound.
	Open(ctx context.Context, addr Address) (io.ReadCloser, int64, error)
	String() string
}

// Read opens and parses one partition.  All failures are PartitionErrors.
func Read(ctx context.Context, src Source, addr Address, columns []string, f table.Format) (*table.Table, int64, error) {
	input, size, err := src.Open(ctx, addr)
	if err != nil {
		return nil, 0, Fail(addr, err)
	}
	defer input.Close()
	t, err := table.Read(input, columns, f)
	if err != nil {
		return nil, 0, Fail(addr, fmt.Errorf("reading %s: %w", addr.InputName(), err))
	}
	return t, size, nil
}
