package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reprice/internal/model"
)

const (
	backupsDir   = "backups"
	logsDir      = "logs"
	backupSuffix = ".json"
	logSuffix    = ".log.json"
)

// FileStore implements Store as pretty-printed JSON files under a data
// directory: backups/<id>.json and logs/<id>.log.json.
type FileStore struct {
	root string
}

// NewFile creates a FileStore rooted at dir. Directories are created by Migrate.
func NewFile(dir string) *FileStore {
	return &FileStore{root: dir}
}

func (s *FileStore) Migrate(_ context.Context) error {
	for _, d := range []string{s.root, filepath.Join(s.root, backupsDir), filepath.Join(s.root, logsDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return eris.Wrapf(err, "file store: create %s", d)
		}
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) CreateBackup(_ context.Context, rec *model.BackupRecord) (string, error) {
	if err := prepareBackup(rec); err != nil {
		return "", err
	}
	path := filepath.Join(s.root, backupsDir, rec.ID+backupSuffix)
	if err := writeJSONOnce(path, rec); err != nil {
		return "", eris.Wrapf(err, "file store: write backup %s", rec.ID)
	}
	return rec.ID, nil
}

func (s *FileStore) GetBackup(_ context.Context, id string) (*model.BackupRecord, error) {
	id, err := normalizeID("backup", id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, backupsDir, id+backupSuffix))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.NewNotFoundError("backup", id)
		}
		return nil, eris.Wrapf(err, "file store: read backup %s", id)
	}
	rec, err := decodeBackup(data, id)
	if err != nil {
		return nil, eris.Wrapf(err, "file store: decode backup %s", id)
	}
	return rec, nil
}

func (s *FileStore) ListBackups(ctx context.Context, filter BackupFilter) ([]BackupInfo, error) {
	ids, err := s.listIDs(filepath.Join(s.root, backupsDir), backupSuffix)
	if err != nil {
		return nil, err
	}

	var out []BackupInfo
	for _, id := range ids {
		rec, err := s.GetBackup(ctx, id)
		if err != nil {
			zap.L().Warn("file store: skipping unreadable backup", zap.String("id", id), zap.Error(err))
			continue
		}
		if filter.Mode != "" && rec.Mode != filter.Mode {
			continue
		}
		out = append(out, BackupInfo{
			ID:        rec.ID,
			Mode:      rec.Mode,
			CreatedAt: rec.CreatedAt,
			Pct:       rec.Pct,
			Items:     len(rec.Items),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit := listLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FileStore) SaveRunLog(_ context.Context, log *model.RunLog) (string, error) {
	if err := prepareRunLog(log); err != nil {
		return "", err
	}
	path := filepath.Join(s.root, logsDir, log.ID+logSuffix)
	if err := writeJSONOnce(path, log); err != nil {
		return "", eris.Wrapf(err, "file store: write run log %s", log.ID)
	}
	return log.ID, nil
}

func (s *FileStore) GetRunLog(_ context.Context, id string) (*model.RunLog, error) {
	id = strings.TrimSuffix(strings.TrimSpace(id), logSuffix)
	id, err := normalizeID("run log", id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, logsDir, id+logSuffix))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.NewNotFoundError("run log", id)
		}
		return nil, eris.Wrapf(err, "file store: read run log %s", id)
	}
	log, err := decodeRunLog(data, id)
	if err != nil {
		return nil, eris.Wrapf(err, "file store: decode run log %s", id)
	}
	return log, nil
}

func (s *FileStore) ListRunLogs(ctx context.Context, filter RunFilter) ([]model.RunLog, error) {
	ids, err := s.listIDs(filepath.Join(s.root, logsDir), logSuffix)
	if err != nil {
		return nil, err
	}

	var out []model.RunLog
	for _, id := range ids {
		log, err := s.GetRunLog(ctx, id)
		if err != nil {
			zap.L().Warn("file store: skipping unreadable run log", zap.String("id", id), zap.Error(err))
			continue
		}
		if filter.Kind != "" && log.Kind != filter.Kind {
			continue
		}
		if filter.BackupID != "" && log.BackupID != filter.BackupID {
			continue
		}
		log.Lines = nil
		out = append(out, *log)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit := listLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FileStore) listIDs(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "file store: list %s", dir)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		// backups/ only holds *.json; skip stray run logs if someone shares a dir.
		if suffix == backupSuffix && strings.HasSuffix(name, logSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, suffix))
	}
	return ids, nil
}

// writeJSONOnce writes v to path through a temp file and rename, refusing to
// replace an existing record.
func writeJSONOnce(path string, v any) error {
	if _, err := os.Stat(path); err == nil {
		return eris.Errorf("record already exists: %s", filepath.Base(path))
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return eris.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "close temp file")
	}
	return eris.Wrap(os.Rename(tmpName, path), "rename temp file")
}
