package partition

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacctcollapse/config"
	"sacctcollapse/table"
)

func TestAddress(t *testing.T) {
	a := Address{Base: "fox", Shard: "17"}
	assert.Equal(t, "split_fox_17", a.InputName())
	assert.Equal(t, "17", a.OutputName())
	assert.Equal(t, "fox/17", a.String())

	xs := ShardRange("fox", 3, 5)
	require.Len(t, xs, 3)
	assert.Equal(t, "3", xs[0].Shard)
	assert.Equal(t, "5", xs[2].Shard)
	assert.Empty(t, ShardRange("fox", 5, 3))
}

func TestPartitionError(t *testing.T) {
	a := Address{Base: "fox", Shard: "1"}
	err := Fail(a, table.ErrStructure)
	assert.ErrorIs(t, err, table.ErrStructure)
	var pe *PartitionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, a, pe.Address)
	assert.Contains(t, err.Error(), "fox/1")

	assert.Same(t, err, Fail(a, err))
	assert.NoError(t, Fail(a, nil))
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "split_fox_2"), []byte("1|a\n2|b\n"), 0o644))

	src := NewDirSource(dir)
	tb, size, err := Read(context.Background(), src, Address{"fox", "2"}, []string{"x", "y"}, table.DefaultFormat())
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
	assert.Equal(t, 2, tb.NumRows())

	_, _, err = Read(context.Background(), src, Address{"fox", "3"}, []string{"x", "y"}, table.DefaultFormat())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "split_fox_4"), []byte("1|a|extra\n"), 0o644))
	_, _, err = Read(context.Background(), src, Address{"fox", "4"}, []string{"x", "y"}, table.DefaultFormat())
	assert.ErrorIs(t, err, table.ErrStructure)
	var pe *PartitionError
	assert.True(t, errors.As(err, &pe))
}

func TestS3Source(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sacct/in/split_fox_1":
			w.Header().Set("Content-Length", "4")
			_, _ = io.WriteString(w, "1|a\n")
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
		}
	}))
	defer srv.Close()

	client := NewS3Client(&config.S3Config{
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		UsePathStyle:    true,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	src := NewS3Source(client, "sacct", "in")
	assert.Equal(t, "s3://sacct/in", src.String())

	tb, size, err := Read(context.Background(), src, Address{"fox", "1"}, []string{"x", "y"}, table.DefaultFormat())
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)
	assert.Equal(t, 1, tb.NumRows())

	_, _, err = Read(context.Background(), src, Address{"fox", "2"}, []string{"x", "y"}, table.DefaultFormat())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFromConfig(t *testing.T) {
	src, err := FromConfig(&config.InputConfig{Dir: "/a"}, "/b")
	require.NoError(t, err)
	assert.Equal(t, "/b", src.String())

	src, err = FromConfig(&config.InputConfig{Dir: "/a"}, "")
	require.NoError(t, err)
	assert.Equal(t, "/a", src.String())

	src, err = FromConfig(&config.InputConfig{S3: &config.S3Config{Bucket: "b", Region: "r"}}, "")
	require.NoError(t, err)
	assert.IsType(t, &S3Source{}, src)

	_, err = FromConfig(&config.InputConfig{}, "")
	assert.Error(t, err)
}
