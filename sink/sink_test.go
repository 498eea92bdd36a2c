package sink

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacctcollapse/collapse"
	"sacctcollapse/config"
	"sacctcollapse/partition"
	"sacctcollapse/status"
	"sacctcollapse/table"
)

var addr = partition.Address{Base: "fox", Shard: "7"}

func testLog() status.Logger {
	return status.New(io.Discard, status.LogLevelWarning)
}

func result(t *testing.T) *collapse.Result {
	t.Helper()
	tb := table.MustNew([]string{"Job", "Elapsed", "State"})
	require.NoError(t, tb.AppendRow([]table.Cell{table.TextCell("100"), table.NumCell(60), table.TextCell("COMPLETED")}))
	require.NoError(t, tb.AppendRow([]table.Cell{table.TextCell("101"), table.NumCell(1.5), table.NullCell()}))
	return &collapse.Result{Variant: "first-pass", Table: tb}
}

func TestJobs(t *testing.T) {
	jobs := Jobs(result(t))
	require.Len(t, jobs, 2)
	assert.Equal(t, "100", jobs[0].Key)
	assert.Equal(t, map[string]any{"Job": "101", "Elapsed": 1.5, "State": nil}, jobs[1].Fields)

	b, err := jobs[0].JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"Job":"100","Elapsed":60,"State":"COMPLETED"}`, string(b))
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	fs, err := NewFileSink(dir, '|')
	require.NoError(t, err)
	require.NoError(t, fs.Write(context.Background(), addr, result(t)))

	data, err := os.ReadFile(filepath.Join(dir, "7"))
	require.NoError(t, err)
	assert.Equal(t, "100|60|COMPLETED\n101|1.5|\n", string(data))

	info, err := os.Stat(filepath.Join(dir, "7"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(OutputMode), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

type fakeSink struct {
	name   string
	err    error
	mu     sync.Mutex
	writes int
	closed bool
}

func (f *fakeSink) Write(context.Context, partition.Address, *collapse.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	return f.err
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSink) String() string {
	return f.name
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	a := &fakeSink{name: "a", err: boom}
	b := &fakeSink{name: "b"}
	m := Multi{a, b}

	err := m.Write(context.Background(), addr, result(t))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "a: boom")
	assert.Equal(t, 1, b.writes)

	require.NoError(t, m.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Equal(t, "a+b", m.String())
}

func TestDatabaseSink(t *testing.T) {
	ctx := context.Background()
	ds, err := NewDatabaseSink(ctx, &config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "jobs.db"),
	}, "run-1", testLog())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	require.NoError(t, ds.Write(ctx, addr, result(t)))
	require.NoError(t, ds.Write(ctx, addr, result(t)))

	rows, err := ds.Rows(ctx, addr)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "100", rows[0].Job)
	assert.Equal(t, "run-1", rows[0].RunID)
	assert.JSONEq(t, `{"Job":"100","Elapsed":60,"State":"COMPLETED"}`, rows[0].Fields)

	other, err := ds.Rows(ctx, partition.Address{Base: "fox", Shard: "8"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDatabaseSinkReplacesAcrossRuns(t *testing.T) {
	ctx := context.Background()
	cfg := &config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "jobs.db")}

	for _, run := range []string{"run-1", "run-2"} {
		ds, err := NewDatabaseSink(ctx, cfg, run, testLog())
		require.NoError(t, err)
		require.NoError(t, ds.Write(ctx, addr, result(t)))
		require.NoError(t, ds.Close())
	}

	ds, err := NewDatabaseSink(ctx, cfg, "run-3", testLog())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	rows, err := ds.Rows(ctx, addr)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "run-2", rows[0].RunID)
}

func TestDatabaseSinkDriver(t *testing.T) {
	_, err := NewDatabaseSink(context.Background(), &config.DatabaseConfig{Driver: "mysql"}, "r", testLog())
	assert.ErrorContains(t, err, "unsupported")
}

func TestKafkaRecords(t *testing.T) {
	records, err := kafkaRecords("jobs", "run-1", addr, result(t))
	require.NoError(t, err)
	require.Len(t, records, 2)
	r := records[1]
	assert.Equal(t, "jobs", r.Topic)
	assert.Equal(t, []byte("101"), r.Key)
	assert.JSONEq(t, `{"Job":"101","Elapsed":1.5,"State":null}`, string(r.Value))
	headers := make(map[string]string)
	for _, h := range r.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, map[string]string{"run": "run-1", "base": "fox", "shard": "7", "variant": "first-pass"}, headers)
}

func TestCopyRows(t *testing.T) {
	rows := copyRows("run-1", addr, result(t))
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"run-1", "fox", "7", "100",
		map[string]any{"Job": "100", "Elapsed": 60.0, "State": "COMPLETED"}}, rows[0])
}

func TestPostgresStatements(t *testing.T) {
	ps := &PostgresSink{table: pgx.Identifier{"collapsed_jobs"}, runID: "run-2"}
	assert.Equal(t, `DELETE FROM "collapsed_jobs" WHERE base = $1 AND shard = $2`, ps.deleteSQL())
	assert.NotContains(t, ps.deleteSQL(), "run_id")
	assert.Contains(t, ps.createTableSQL(), `CREATE TABLE IF NOT EXISTS "collapsed_jobs"`)
}

func TestS3Sink(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path = r.Method, r.URL.Path
		mu.Unlock()
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := partition.NewS3Client(&config.S3Config{
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		UsePathStyle:    true,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	s := NewS3Sink(client, "sacct", "out", '|')
	require.NoError(t, s.Write(context.Background(), addr, result(t)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/sacct/out/7", path)
	assert.Equal(t, "s3://sacct/out", s.String())
}

func TestFromConfig(t *testing.T) {
	cfg := config.Defaults()
	_, err := FromConfig(context.Background(), cfg, "", "r", testLog())
	assert.Error(t, err)

	dir := t.TempDir()
	cfg.Sinks.Database = &config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "j.db")}
	sinks, err := FromConfig(context.Background(), cfg, filepath.Join(dir, "out"), "r", testLog())
	require.NoError(t, err)
	defer sinks.Close()
	require.Len(t, sinks, 2)
	assert.Equal(t, "file:"+filepath.Join(dir, "out")+"+database:sqlite", sinks.String())

	var buf bytes.Buffer
	require.NoError(t, result(t).Write(&buf, '|'))
	require.NoError(t, sinks.Write(context.Background(), addr, result(t)))
	data, err := os.ReadFile(filepath.Join(dir, "out", "7"))
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(data))
}
