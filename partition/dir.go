package partition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

type DirSource struct {
	Dir string
}

var _ Source = (*DirSource)(nil)

func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

func (d *DirSource) Open(_ context.Context, addr Address) (io.ReadCloser, int64, error) {
	fn := filepath.Join(d.Dir, addr.InputName())
	f, err := os.Open(fn)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, fn)
		}
		return nil, 0, err
	}
	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return f, size, nil
}

func (d *DirSource) String() string {
	return d.Dir
}
