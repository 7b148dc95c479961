package store

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/reprice/internal/model"
)

// BackupFilter specifies criteria for listing backups.
type BackupFilter struct {
	Mode  model.Mode `json:"mode,omitempty"`
	Limit int        `json:"limit,omitempty"`
}

// RunFilter specifies criteria for listing run logs.
type RunFilter struct {
	Kind     model.RunKind `json:"kind,omitempty"`
	BackupID string        `json:"backup_id,omitempty"`
	Limit    int           `json:"limit,omitempty"`
}

// BackupInfo summarizes a stored backup without its items.
type BackupInfo struct {
	ID        string     `json:"backupId"`
	Mode      model.Mode `json:"mode"`
	CreatedAt time.Time  `json:"created_at"`
	Pct       *float64   `json:"pct,omitempty"`
	Items     int        `json:"items"`
}

// Store persists backup snapshots and run logs. Both are append-only:
// records are never updated, deleted or expired.
type Store interface {
	// Backups
	CreateBackup(ctx context.Context, rec *model.BackupRecord) (string, error)
	GetBackup(ctx context.Context, id string) (*model.BackupRecord, error)
	ListBackups(ctx context.Context, filter BackupFilter) ([]BackupInfo, error)

	// Run logs
	SaveRunLog(ctx context.Context, log *model.RunLog) (string, error)
	GetRunLog(ctx context.Context, id string) (*model.RunLog, error)
	ListRunLogs(ctx context.Context, filter RunFilter) ([]model.RunLog, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

var idPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]{0,80}$`)

// newID returns a collision-resistant, time-ordered identifier.
func newID(prefix string) (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", eris.Wrap(err, "store: generate id")
	}
	return prefix + "-" + u.String(), nil
}

func backupPrefix(mode model.Mode) string {
	return string(mode) + "-backup"
}

func runPrefix(kind model.RunKind) string {
	return string(kind) + "-run"
}

// normalizeID strips the ".json" suffix older file backups were addressed by
// and rejects anything that is not a plain identifier.
func normalizeID(kind, id string) (string, error) {
	id = strings.TrimSuffix(strings.TrimSpace(id), ".json")
	if !idPattern.MatchString(id) {
		return "", model.NewNotFoundError(kind, id)
	}
	return id, nil
}

// prepareBackup validates rec and fills its identifier and timestamp.
func prepareBackup(rec *model.BackupRecord) error {
	if rec == nil {
		return eris.New("store: nil backup record")
	}
	if !rec.Mode.Valid() {
		return eris.Errorf("store: invalid backup mode %q", rec.Mode)
	}
	id, err := newID(backupPrefix(rec.Mode))
	if err != nil {
		return err
	}
	rec.ID = id
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Items == nil {
		rec.Items = []model.BackupItem{}
	}
	return nil
}

// prepareRunLog validates log and fills its identifier.
func prepareRunLog(log *model.RunLog) error {
	if log == nil {
		return eris.New("store: nil run log")
	}
	if log.Kind == "" {
		return eris.New("store: run log kind is required")
	}
	id, err := newID(runPrefix(log.Kind))
	if err != nil {
		return err
	}
	log.ID = id
	if log.Lines == nil {
		log.Lines = []string{}
	}
	return nil
}

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

// inferMode recovers the mode of a backup written before records carried one.
func inferMode(id string) model.Mode {
	if strings.HasPrefix(id, string(model.ModeChain)+"-") {
		return model.ModeChain
	}
	return model.ModePercent
}
