package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sacctcollapse/collapse"
	"sacctcollapse/config"
	"sacctcollapse/partition"
	"sacctcollapse/status"
)

// JobRow is one collapsed job in the job database.  Fields holds the whole output row as JSON.
type JobRow struct {
	ID     uint   `gorm:"primaryKey"`
	RunID  string `gorm:"not null;index"`
	Base   string `gorm:"not null;index:idx_job_rows_partition"`
	Shard  string `gorm:"not null;index:idx_job_rows_partition"`
	Job    string `gorm:"not null;index"`
	Fields string `gorm:"type:text"`
}

// DatabaseSink keeps jobs in a gorm-managed database.  Rewriting a partition replaces its rows.
type DatabaseSink struct {
	// MT: Locked; sqlite permits one writer
	mu     sync.Mutex
	db     *gorm.DB
	driver string
	runID  string
	log    status.Logger
}

var _ Sink = (*DatabaseSink)(nil)

func NewDatabaseSink(ctx context.Context, cfg *config.DatabaseConfig, runID string, log status.Logger) (*DatabaseSink, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("opening job database: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&JobRow{}); err != nil {
		return nil, fmt.Errorf("migrating job database: %w", err)
	}
	return &DatabaseSink{
		db:     db,
		driver: cfg.Driver,
		runID:  runID,
		log:    log.WithField("sink", "database"),
	}, nil
}

func (ds *DatabaseSink) Write(ctx context.Context, addr partition.Address, res *collapse.Result) error {
	jobs := Jobs(res)
	rows := make([]JobRow, len(jobs))
	for i, j := range jobs {
		fields, err := j.JSON()
		if err != nil {
			return err
		}
		rows[i] = JobRow{RunID: ds.runID, Base: addr.Base, Shard: addr.Shard, Job: j.Key, Fields: string(fields)}
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("base = ? AND shard = ?", addr.Base, addr.Shard).Delete(&JobRow{}).Error; err != nil {
			return fmt.Errorf("replacing %s: %w", addr, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("inserting %s: %w", addr, err)
		}
		return nil
	})
}

// Rows returns the stored jobs of one partition in insertion order.
func (ds *DatabaseSink) Rows(ctx context.Context, addr partition.Address) ([]JobRow, error) {
	var rows []JobRow
	err := ds.db.WithContext(ctx).
		Where("base = ? AND shard = ?", addr.Base, addr.Shard).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", addr, err)
	}
	return rows, nil
}

func (ds *DatabaseSink) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}
	return sqlDB.Close()
}

func (ds *DatabaseSink) String() string {
	return "database:" + ds.driver
}
