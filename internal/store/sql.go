package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reprice/internal/model"
)

// sqlStore holds the database/sql queries shared by the SQLite and MySQL
// stores. Both drivers take ? placeholders, so only the schema differs.
// The lines column is quoted because LINES is reserved in MySQL.
type sqlStore struct {
	db      *sql.DB
	dialect string
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) CreateBackup(ctx context.Context, rec *model.BackupRecord) (string, error) {
	if err := prepareBackup(rec); err != nil {
		return "", err
	}
	itemsJSON, err := json.Marshal(rec.Items)
	if err != nil {
		return "", eris.Wrapf(err, "%s: marshal backup items", s.dialect)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO backups (id, mode, pct, item_count, items, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Mode), rec.Pct, len(rec.Items), string(itemsJSON), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "%s: insert backup %s", s.dialect, rec.ID)
	}
	return rec.ID, nil
}

func (s *sqlStore) GetBackup(ctx context.Context, id string) (*model.BackupRecord, error) {
	id, err := normalizeID("backup", id)
	if err != nil {
		return nil, err
	}

	var rec model.BackupRecord
	var mode, itemsJSON string
	var pct sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT id, mode, pct, items, created_at FROM backups WHERE id = ?`, id,
	).Scan(&rec.ID, &mode, &pct, &itemsJSON, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("backup", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get backup %s", s.dialect, id)
	}

	rec.Mode = model.Mode(mode)
	if pct.Valid {
		rec.Pct = &pct.Float64
	}
	if err := json.Unmarshal([]byte(itemsJSON), &rec.Items); err != nil {
		return nil, eris.Wrapf(err, "%s: unmarshal backup items", s.dialect)
	}
	return &rec, nil
}

func (s *sqlStore) ListBackups(ctx context.Context, filter BackupFilter) ([]BackupInfo, error) {
	query := `SELECT id, mode, pct, item_count, created_at FROM backups WHERE 1=1`
	var args []any
	if filter.Mode != "" {
		query += ` AND mode = ?`
		args = append(args, string(filter.Mode))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list backups", s.dialect)
	}
	defer rows.Close() //nolint:errcheck

	var out []BackupInfo
	for rows.Next() {
		var b BackupInfo
		var mode string
		var pct sql.NullFloat64
		if err := rows.Scan(&b.ID, &mode, &pct, &b.Items, &b.CreatedAt); err != nil {
			return nil, eris.Wrapf(err, "%s: scan backup", s.dialect)
		}
		b.Mode = model.Mode(mode)
		if pct.Valid {
			v := pct.Float64
			b.Pct = &v
		}
		out = append(out, b)
	}
	return out, eris.Wrapf(rows.Err(), "%s: list backups iterate", s.dialect)
}

func (s *sqlStore) SaveRunLog(ctx context.Context, log *model.RunLog) (string, error) {
	if err := prepareRunLog(log); err != nil {
		return "", err
	}
	linesJSON, err := json.Marshal(log.Lines)
	if err != nil {
		return "", eris.Wrapf(err, "%s: marshal run log lines", s.dialect)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO run_logs (id, kind, backup_id, pct, updated, skipped, errors, remaining, cancelled, `lines`, started_at, finished_at)"+
			" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		log.ID, string(log.Kind), log.BackupID, log.Pct,
		log.Updated, log.Skipped, log.Errors, log.Remaining, log.Cancelled,
		string(linesJSON), log.StartedAt.UTC(), log.FinishedAt.UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "%s: insert run log %s", s.dialect, log.ID)
	}
	return log.ID, nil
}

const sqlRunColumns = `id, kind, backup_id, pct, updated, skipped, errors, remaining, cancelled, started_at, finished_at`

func (s *sqlStore) GetRunLog(ctx context.Context, id string) (*model.RunLog, error) {
	id, err := normalizeID("run log", id)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+sqlRunColumns+", `lines` FROM run_logs WHERE id = ?", id)

	var linesJSON string
	log, err := scanRunLog(row, &linesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("run log", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get run log %s", s.dialect, id)
	}
	if err := json.Unmarshal([]byte(linesJSON), &log.Lines); err != nil {
		return nil, eris.Wrapf(err, "%s: unmarshal run log lines", s.dialect)
	}
	return log, nil
}

func (s *sqlStore) ListRunLogs(ctx context.Context, filter RunFilter) ([]model.RunLog, error) {
	query := `SELECT ` + sqlRunColumns + ` FROM run_logs WHERE 1=1`
	var args []any
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.BackupID != "" {
		query += ` AND backup_id = ?`
		args = append(args, filter.BackupID)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list run logs", s.dialect)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RunLog
	for rows.Next() {
		log, err := scanRunLog(rows, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: scan run log", s.dialect)
		}
		out = append(out, *log)
	}
	return out, eris.Wrapf(rows.Err(), "%s: list run logs iterate", s.dialect)
}

type scannable interface {
	Scan(dest ...any) error
}

// scanRunLog scans the sqlRunColumns, plus the lines column when linesJSON is set.
func scanRunLog(row scannable, linesJSON *string) (*model.RunLog, error) {
	var log model.RunLog
	var kind string
	var pct sql.NullFloat64
	dest := []any{
		&log.ID, &kind, &log.BackupID, &pct,
		&log.Updated, &log.Skipped, &log.Errors, &log.Remaining, &log.Cancelled,
		&log.StartedAt, &log.FinishedAt,
	}
	if linesJSON != nil {
		dest = append(dest, linesJSON)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	log.Kind = model.RunKind(kind)
	if pct.Valid {
		v := pct.Float64
		log.Pct = &v
	}
	return &log, nil
}
