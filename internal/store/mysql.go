package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rotisserie/eris"
)

// MySQLStore implements Store using go-sql-driver/mysql.
type MySQLStore struct {
	sqlStore
}

// NewMySQL opens a MySQL database and verifies the connection.
func NewMySQL(ctx context.Context, dsn string) (*MySQLStore, error) {
	normalized, err := mysqlDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", normalized)
	if err != nil {
		return nil, eris.Wrap(err, "mysql: open")
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "mysql: ping")
	}
	return &MySQLStore{sqlStore{db: db, dialect: "mysql"}}, nil
}

// mysqlDSN forces DATETIME columns to scan into time.Time in UTC.
func mysqlDSN(dsn string) (string, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", eris.Wrap(err, "mysql: parse dsn")
	}
	c.ParseTime = true
	c.Loc = time.UTC
	return c.FormatDSN(), nil
}

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
var mysqlMigration = []string{
	`CREATE TABLE IF NOT EXISTS backups (
		id         VARCHAR(128) PRIMARY KEY,
		mode       VARCHAR(16) NOT NULL,
		pct        DOUBLE NULL,
		item_count INT NOT NULL,
		items      LONGTEXT NOT NULL,
		created_at DATETIME(3) NOT NULL,
		INDEX idx_backups_created_at (created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS run_logs (
		id          VARCHAR(128) PRIMARY KEY,
		kind        VARCHAR(32) NOT NULL,
		backup_id   VARCHAR(128) NOT NULL,
		pct         DOUBLE NULL,
		updated     INT NOT NULL,
		skipped     INT NOT NULL,
		errors      INT NOT NULL,
		remaining   INT NOT NULL DEFAULT 0,
		cancelled   BOOLEAN NOT NULL DEFAULT FALSE,
		` + "`lines`" + `     LONGTEXT NOT NULL,
		started_at  DATETIME(3) NOT NULL,
		finished_at DATETIME(3) NOT NULL,
		INDEX idx_run_logs_backup_id (backup_id),
		INDEX idx_run_logs_started_at (started_at)
	)`,
}

func (s *MySQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range mysqlMigration {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "mysql: migrate")
		}
	}
	return nil
}
