package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/reprice/internal/db"
	"github.com/sells-group/reprice/internal/model"
)

// PostgresStore implements Store on a pgx pool. Backup items are
// normalized into backup_items and bulk-loaded with COPY.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects to connString and returns a PostgresStore.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS backups (
	id         TEXT PRIMARY KEY,
	mode       TEXT NOT NULL,
	pct        DOUBLE PRECISION,
	item_count INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS backup_items (
	backup_id        TEXT NOT NULL REFERENCES backups(id),
	ord              INTEGER NOT NULL,
	product_id       BIGINT NOT NULL,
	product_title    TEXT NOT NULL,
	variant_id       BIGINT NOT NULL,
	variant_title    TEXT NOT NULL DEFAULT '',
	sku              TEXT NOT NULL DEFAULT '',
	position         INTEGER,
	price            BIGINT NOT NULL,
	compare_at_price BIGINT,
	PRIMARY KEY (backup_id, ord)
);

CREATE TABLE IF NOT EXISTS run_logs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	backup_id   TEXT NOT NULL,
	pct         DOUBLE PRECISION,
	updated     INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	errors      INTEGER NOT NULL,
	remaining   INTEGER NOT NULL DEFAULT 0,
	cancelled   BOOLEAN NOT NULL DEFAULT false,
	lines       JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_backups_created_at ON backups(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_run_logs_backup_id ON run_logs(backup_id);
CREATE INDEX IF NOT EXISTS idx_run_logs_started_at ON run_logs(started_at DESC);
`

var backupItemColumns = []string{
	"backup_id", "ord", "product_id", "product_title", "variant_id",
	"variant_title", "sku", "position", "price", "compare_at_price",
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateBackup(ctx context.Context, rec *model.BackupRecord) (string, error) {
	if err := prepareBackup(rec); err != nil {
		return "", err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin backup tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO backups (id, mode, pct, item_count, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, string(rec.Mode), rec.Pct, len(rec.Items), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert backup %s", rec.ID)
	}

	rows := make([][]any, 0, len(rec.Items))
	for i, it := range rec.Items {
		var compare *int64
		if it.CompareAtPrice != nil {
			c := int64(*it.CompareAtPrice)
			compare = &c
		}
		rows = append(rows, []any{
			rec.ID, i, it.ProductID, it.ProductTitle, it.VariantID,
			it.VariantTitle, it.SKU, it.Position, int64(it.Price), compare,
		})
	}
	if _, err := db.CopyFrom(ctx, tx, "backup_items", backupItemColumns, rows); err != nil {
		return "", eris.Wrapf(err, "postgres: copy items for backup %s", rec.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit backup tx")
	}
	return rec.ID, nil
}

func (s *PostgresStore) GetBackup(ctx context.Context, id string) (*model.BackupRecord, error) {
	id, err := normalizeID("backup", id)
	if err != nil {
		return nil, err
	}

	var rec model.BackupRecord
	var mode string
	err = s.pool.QueryRow(ctx,
		`SELECT id, mode, pct, created_at FROM backups WHERE id = $1`, id,
	).Scan(&rec.ID, &mode, &rec.Pct, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewNotFoundError("backup", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get backup %s", id)
	}
	rec.Mode = model.Mode(mode)

	rows, err := s.pool.Query(ctx,
		`SELECT product_id, product_title, variant_id, variant_title, sku, position, price, compare_at_price
		 FROM backup_items WHERE backup_id = $1 ORDER BY ord`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get items for backup %s", id)
	}
	defer rows.Close()

	rec.Items = []model.BackupItem{}
	for rows.Next() {
		var it model.BackupItem
		var price int64
		var compare *int64
		if err := rows.Scan(&it.ProductID, &it.ProductTitle, &it.VariantID, &it.VariantTitle,
			&it.SKU, &it.Position, &price, &compare); err != nil {
			return nil, eris.Wrap(err, "postgres: scan backup item")
		}
		it.Price = model.Money(price)
		if compare != nil {
			it.CompareAtPrice = model.Money(*compare).Ptr()
		}
		rec.Items = append(rec.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate backup items")
	}
	return &rec, nil
}

func (s *PostgresStore) ListBackups(ctx context.Context, filter BackupFilter) ([]BackupInfo, error) {
	query := `SELECT id, mode, pct, item_count, created_at FROM backups WHERE 1=1`
	var args []any
	argN := 1
	if filter.Mode != "" {
		query += fmt.Sprintf(` AND mode = $%d`, argN)
		args = append(args, string(filter.Mode))
		argN++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, argN)
	args = append(args, listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list backups")
	}
	defer rows.Close()

	var out []BackupInfo
	for rows.Next() {
		var b BackupInfo
		var mode string
		if err := rows.Scan(&b.ID, &mode, &b.Pct, &b.Items, &b.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan backup")
		}
		b.Mode = model.Mode(mode)
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list backups iterate")
}

func (s *PostgresStore) SaveRunLog(ctx context.Context, log *model.RunLog) (string, error) {
	if err := prepareRunLog(log); err != nil {
		return "", err
	}
	linesJSON, err := json.Marshal(log.Lines)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal run log lines")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO run_logs (id, kind, backup_id, pct, updated, skipped, errors, remaining, cancelled, lines, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		log.ID, string(log.Kind), log.BackupID, log.Pct,
		log.Updated, log.Skipped, log.Errors, log.Remaining, log.Cancelled,
		linesJSON, log.StartedAt.UTC(), log.FinishedAt.UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert run log %s", log.ID)
	}
	return log.ID, nil
}

const postgresRunColumns = `id, kind, backup_id, pct, updated, skipped, errors, remaining, cancelled, started_at, finished_at`

func (s *PostgresStore) GetRunLog(ctx context.Context, id string) (*model.RunLog, error) {
	id, err := normalizeID("run log", id)
	if err != nil {
		return nil, err
	}

	var log model.RunLog
	var kind string
	var linesJSON []byte
	err = s.pool.QueryRow(ctx,
		`SELECT `+postgresRunColumns+`, lines FROM run_logs WHERE id = $1`, id,
	).Scan(&log.ID, &kind, &log.BackupID, &log.Pct,
		&log.Updated, &log.Skipped, &log.Errors, &log.Remaining, &log.Cancelled,
		&log.StartedAt, &log.FinishedAt, &linesJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewNotFoundError("run log", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run log %s", id)
	}
	log.Kind = model.RunKind(kind)
	if err := json.Unmarshal(linesJSON, &log.Lines); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run log lines")
	}
	return &log, nil
}

func (s *PostgresStore) ListRunLogs(ctx context.Context, filter RunFilter) ([]model.RunLog, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM run_logs WHERE 1=1`
	var args []any
	argN := 1
	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argN)
		args = append(args, string(filter.Kind))
		argN++
	}
	if filter.BackupID != "" {
		query += fmt.Sprintf(` AND backup_id = $%d`, argN)
		args = append(args, filter.BackupID)
		argN++
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC, id DESC LIMIT $%d`, argN)
	args = append(args, listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list run logs")
	}
	defer rows.Close()

	var out []model.RunLog
	for rows.Next() {
		var log model.RunLog
		var kind string
		if err := rows.Scan(&log.ID, &kind, &log.BackupID, &log.Pct,
			&log.Updated, &log.Skipped, &log.Errors, &log.Remaining, &log.Cancelled,
			&log.StartedAt, &log.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run log")
		}
		log.Kind = model.RunKind(kind)
		out = append(out, log)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list run logs iterate")
}

// compile-time interface checks
var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MySQLStore)(nil)
	_ Store = (*FileStore)(nil)
)
