package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	sqlStore
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=FULL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{sqlStore{db: db, dialect: "sqlite"}}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS backups (
	id         TEXT PRIMARY KEY,
	mode       TEXT NOT NULL,
	pct        REAL,
	item_count INTEGER NOT NULL,
	items      TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_logs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	backup_id   TEXT NOT NULL,
	pct         REAL,
	updated     INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	errors      INTEGER NOT NULL,
	remaining   INTEGER NOT NULL DEFAULT 0,
	cancelled   INTEGER NOT NULL DEFAULT 0,
	lines       TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_backups_created_at ON backups(created_at);
CREATE INDEX IF NOT EXISTS idx_run_logs_backup_id ON run_logs(backup_id);
CREATE INDEX IF NOT EXISTS idx_run_logs_started_at ON run_logs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

