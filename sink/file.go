package sink

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"sacctcollapse/collapse"
	"sacctcollapse/partition"
)

const OutputMode = 0o644

// FileSink writes each partition as a delimited text file named by its output name.
type FileSink struct {
	dir       string
	delimiter rune
}

var _ Sink = (*FileSink)(nil)

func NewFileSink(dir string, delimiter rune) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileSink{dir: dir, delimiter: delimiter}, nil
}

func (fs *FileSink) Path(addr partition.Address) string {
	return filepath.Join(fs.dir, addr.OutputName())
}

// The output is written to a temporary file and renamed into place, so readers never see a
// partial partition.
func (fs *FileSink) Write(_ context.Context, addr partition.Address, res *collapse.Result) error {
	output, err := os.CreateTemp(fs.dir, ".collapse-*")
	if err != nil {
		return err
	}
	tmpname := output.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpname)
		}
	}()

	// CreateTemp creates the file 0600.
	err = output.Chmod(OutputMode)
	w := bufio.NewWriter(output)
	if err == nil {
		err = res.Write(w, fs.delimiter)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := output.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", fs.Path(addr), err)
	}
	if err := os.Rename(tmpname, fs.Path(addr)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (fs *FileSink) Close() error {
	return nil
}

func (fs *FileSink) String() string {
	return "file:" + fs.dir
}
