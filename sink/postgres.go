package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"sacctcollapse/collapse"
	"sacctcollapse/partition"
	"sacctcollapse/status"
)

var postgresColumns = []string{"run_id", "base", "shard", "job", "fields"}

// PostgresSink copies jobs into a table with one jsonb document per job.  A partition's rows from
// any earlier write, in this run or another, are replaced; run_id records which run wrote them.
type PostgresSink struct {
	// MT: Locked; a pgx.Conn is not safe for concurrent use
	mu    sync.Mutex
	conn  *pgx.Conn
	table pgx.Identifier
	runID string
	log   status.Logger
}

var _ Sink = (*PostgresSink)(nil)

func NewPostgresSink(ctx context.Context, dsn, tableName, runID string, log status.Logger) (*PostgresSink, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	ps := &PostgresSink{
		conn:  conn,
		table: pgx.Identifier{tableName},
		runID: runID,
		log:   log.WithField("sink", "postgres"),
	}
	if _, err := conn.Exec(ctx, ps.createTableSQL()); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("creating %s: %w", tableName, err)
	}
	return ps, nil
}

func (ps *PostgresSink) createTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT NOT NULL,
	base TEXT NOT NULL,
	shard TEXT NOT NULL,
	job TEXT NOT NULL,
	fields JSONB NOT NULL,
	inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, ps.table.Sanitize())
}

func (ps *PostgresSink) Write(ctx context.Context, addr partition.Address, res *collapse.Result) error {
	rows := copyRows(ps.runID, addr, res)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	tx, err := ps.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, ps.deleteSQL(), addr.Base, addr.Shard); err != nil {
		return err
	}
	n, err := tx.CopyFrom(ctx, ps.table, postgresColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copying %s: %w", addr, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	ps.log.Debugf("Copied %d jobs of %s", n, addr)
	return nil
}

func (ps *PostgresSink) deleteSQL() string {
	return fmt.Sprintf("DELETE FROM %s WHERE base = $1 AND shard = $2", ps.table.Sanitize())
}

func copyRows(runID string, addr partition.Address, res *collapse.Result) [][]any {
	jobs := Jobs(res)
	rows := make([][]any, len(jobs))
	for i, j := range jobs {
		rows[i] = []any{runID, addr.Base, addr.Shard, j.Key, j.Fields}
	}
	return rows
}

func (ps *PostgresSink) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.conn.Close(context.Background())
}

func (ps *PostgresSink) String() string {
	return "postgres:" + ps.table.Sanitize()
}
