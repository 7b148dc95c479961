package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reprice/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestFile(t *testing.T) Store {
	t.Helper()
	s := NewFile(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestFileStore(t *testing.T) {
	storeTestSuite(t, newTestFile)
}

func sampleBackup(mode model.Mode, createdAt time.Time) *model.BackupRecord {
	pos := 1
	return &model.BackupRecord{
		Mode:      mode,
		CreatedAt: createdAt,
		Items: []model.BackupItem{
			{
				ProductID:      10,
				ProductTitle:   "Gold Rope",
				VariantID:      101,
				VariantTitle:   "18 inch",
				SKU:            "GR-18",
				Position:       &pos,
				Price:          1590,
				CompareAtPrice: model.Money(1990).Ptr(),
			},
			{
				ProductID:    10,
				ProductTitle: "Gold Rope",
				VariantID:    102,
				VariantTitle: "20 inch",
				Price:        1700,
			},
		},
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetBackup", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		pct := 10.0
		rec := sampleBackup(model.ModePercent, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
		rec.Pct = &pct

		id, err := s.CreateBackup(ctx, rec)
		require.NoError(t, err)
		assert.Regexp(t, `^pct-backup-`, id)
		assert.Equal(t, id, rec.ID)

		got, err := s.GetBackup(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, model.ModePercent, got.Mode)
		require.NotNil(t, got.Pct)
		assert.InDelta(t, 10.0, *got.Pct, 1e-9)
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
		require.Len(t, got.Items, 2)
		assert.Equal(t, int64(101), got.Items[0].VariantID)
		assert.Equal(t, model.Money(1590), got.Items[0].Price)
		require.NotNil(t, got.Items[0].CompareAtPrice)
		assert.Equal(t, model.Money(1990), *got.Items[0].CompareAtPrice)
		require.NotNil(t, got.Items[0].Position)
		assert.Equal(t, 1, *got.Items[0].Position)
		assert.Nil(t, got.Items[1].CompareAtPrice)
		assert.Nil(t, got.Items[1].Position)
	})

	t.Run("GetBackupByFileName", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.CreateBackup(ctx, sampleBackup(model.ModeChain, time.Now()))
		require.NoError(t, err)

		got, err := s.GetBackup(ctx, id+".json")
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, model.ModeChain, got.Mode)
	})

	t.Run("GetBackupNotFound", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetBackup(context.Background(), "pct-backup-missing")
		require.Error(t, err)
		assert.True(t, model.IsNotFound(err))
	})

	t.Run("GetBackupRejectsPaths", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetBackup(context.Background(), "../etc/passwd")
		require.Error(t, err)
		assert.True(t, model.IsNotFound(err))
	})

	t.Run("CreateBackupInvalidMode", func(t *testing.T) {
		s := newStore(t)

		_, err := s.CreateBackup(context.Background(), &model.BackupRecord{Mode: "bogus"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid backup mode")
	})

	t.Run("EmptyBackup", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.CreateBackup(ctx, &model.BackupRecord{Mode: model.ModePercent})
		require.NoError(t, err)

		got, err := s.GetBackup(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, got.Items)
		assert.Empty(t, got.Items)
	})

	t.Run("ListBackups", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		first, err := s.CreateBackup(ctx, sampleBackup(model.ModePercent, base))
		require.NoError(t, err)
		second, err := s.CreateBackup(ctx, sampleBackup(model.ModeChain, base.Add(time.Hour)))
		require.NoError(t, err)
		third, err := s.CreateBackup(ctx, sampleBackup(model.ModePercent, base.Add(2*time.Hour)))
		require.NoError(t, err)

		all, err := s.ListBackups(ctx, BackupFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{third, second, first}, []string{all[0].ID, all[1].ID, all[2].ID})
		assert.Equal(t, 2, all[0].Items)

		pct, err := s.ListBackups(ctx, BackupFilter{Mode: model.ModePercent})
		require.NoError(t, err)
		require.Len(t, pct, 2)
		assert.Equal(t, third, pct[0].ID)

		limited, err := s.ListBackups(ctx, BackupFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, third, limited[0].ID)
	})

	t.Run("SaveAndGetRunLog", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		started := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

		pct := -5.0
		log := &model.RunLog{
			Kind:       model.RunKindPercentApply,
			StartedAt:  started,
			FinishedAt: started.Add(3 * time.Second),
			Pct:        &pct,
			BackupID:   "pct-backup-abc",
			Updated:    2,
			Skipped:    1,
			Errors:     1,
			Lines:      []string{"OK 1: price 1500→1390, compare null→null", "ERR 2: boom"},
		}
		id, err := s.SaveRunLog(ctx, log)
		require.NoError(t, err)
		assert.Regexp(t, `^pct-apply-run-`, id)

		got, err := s.GetRunLog(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.RunKindPercentApply, got.Kind)
		assert.Equal(t, "pct-backup-abc", got.BackupID)
		assert.Equal(t, model.Summary{Updated: 2, Skipped: 1, Errors: 1}, got.Summary())
		assert.Equal(t, log.Lines, got.Lines)
		require.NotNil(t, got.Pct)
		assert.InDelta(t, -5.0, *got.Pct, 1e-9)
		assert.True(t, started.Equal(got.StartedAt))
	})

	t.Run("CancelledRunLog", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.SaveRunLog(ctx, &model.RunLog{
			Kind:      model.RunKindRollback,
			StartedAt: time.Now(),
			BackupID:  "chain-backup-x",
			Remaining: 7,
			Cancelled: true,
		})
		require.NoError(t, err)

		got, err := s.GetRunLog(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Cancelled)
		assert.Equal(t, 7, got.Remaining)
		assert.Nil(t, got.Pct)
		assert.NotNil(t, got.Lines)
	})

	t.Run("GetRunLogNotFound", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetRunLog(context.Background(), "rollback-run-missing")
		require.Error(t, err)
		assert.True(t, model.IsNotFound(err))
	})

	t.Run("ListRunLogs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		_, err := s.SaveRunLog(ctx, &model.RunLog{Kind: model.RunKindChainApply, BackupID: "b1", StartedAt: base, Lines: []string{"x"}})
		require.NoError(t, err)
		_, err = s.SaveRunLog(ctx, &model.RunLog{Kind: model.RunKindRollback, BackupID: "b1", StartedAt: base.Add(time.Minute)})
		require.NoError(t, err)
		_, err = s.SaveRunLog(ctx, &model.RunLog{Kind: model.RunKindChainApply, BackupID: "b2", StartedAt: base.Add(2 * time.Minute)})
		require.NoError(t, err)

		all, err := s.ListRunLogs(ctx, RunFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "b2", all[0].BackupID)
		assert.Empty(t, all[2].Lines)

		byBackup, err := s.ListRunLogs(ctx, RunFilter{BackupID: "b1"})
		require.NoError(t, err)
		assert.Len(t, byBackup, 2)

		byKind, err := s.ListRunLogs(ctx, RunFilter{Kind: model.RunKindRollback})
		require.NoError(t, err)
		require.Len(t, byKind, 1)
		assert.Equal(t, model.RunKindRollback, byKind[0].Kind)
	})
}

func TestFileStore_LegacyBackupWithoutMode(t *testing.T) {
	dir := t.TempDir()
	s := NewFile(dir)
	require.NoError(t, s.Migrate(context.Background()))

	legacy := `{
  "created_at": "2024-05-01T10:00:00.000Z",
  "items": [
    {"product_id": 1, "product_title": "Box Chain", "variant_id": 11, "price": 1500, "compare_at_price": null}
  ]
}`
	id := "chain-backup-2024-05-01T10-00-00-000Z"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backups", id+".json"), []byte(legacy), 0o644))

	got, err := s.GetBackup(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, model.ModeChain, got.Mode)
	require.Len(t, got.Items, 1)
	assert.Equal(t, model.Money(1500), got.Items[0].Price)
	assert.Nil(t, got.Items[0].CompareAtPrice)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), got.CreatedAt)
	assert.Nil(t, got.Pct)
}

func TestFileStore_LegacyPercentBackupStringPct(t *testing.T) {
	dir := t.TempDir()
	s := NewFile(dir)
	require.NoError(t, s.Migrate(context.Background()))

	legacy := `{"created_at": "2024-05-02T08:30:00.123Z", "pct": "12.5", "items": []}`
	id := "pct-backup-2024-05-02T08-30-00-123Z"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backups", id+".json"), []byte(legacy), 0o644))

	got, err := s.GetBackup(context.Background(), id+".json")
	require.NoError(t, err)
	assert.Equal(t, model.ModePercent, got.Mode)
	require.NotNil(t, got.Pct)
	assert.InDelta(t, 12.5, *got.Pct, 1e-9)
	assert.Equal(t, time.Date(2024, 5, 2, 8, 30, 0, 123_000_000, time.UTC), got.CreatedAt)
}

func TestFileStore_LegacyRunLog(t *testing.T) {
	dir := t.TempDir()
	s := NewFile(dir)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	pctLog := `{
  "started_at": "2024-05-01T10-00-00-000Z",
  "pct": 10,
  "backupId": null,
  "updated": 2,
  "skipped": 1,
  "errors": 1,
  "lines": ["OK 11: price 15.00→16.50, compare null→null", "ERR 12: boom"]
}`
	chainLog := `{
  "started_at": "2024-05-03T09-15-30-250Z",
  "backupId": "chain-backup-2024-05-03T09-10-00-000Z.json",
  "updated": 1,
  "skipped": 0,
  "errors": 0,
  "lines": []
}`
	pctID := "pct-run-2024-05-01T10-00-00-000Z"
	chainID := "chain-run-2024-05-03T09-15-30-250Z"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", pctID+".log.json"), []byte(pctLog), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", chainID+".log.json"), []byte(chainLog), 0o644))

	got, err := s.GetRunLog(ctx, pctID)
	require.NoError(t, err)
	assert.Equal(t, pctID, got.ID)
	assert.Equal(t, model.RunKindPercentApply, got.Kind)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), got.StartedAt)
	assert.Equal(t, got.StartedAt, got.FinishedAt)
	require.NotNil(t, got.Pct)
	assert.InDelta(t, 10.0, *got.Pct, 1e-9)
	assert.Empty(t, got.BackupID)
	assert.Equal(t, 2, got.Updated)
	assert.Equal(t, 1, got.Errors)
	assert.Len(t, got.Lines, 2)

	all, err := s.ListRunLogs(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, chainID, all[0].ID)
	assert.Equal(t, model.RunKindChainApply, all[0].Kind)
	assert.Equal(t, "chain-backup-2024-05-03T09-10-00-000Z", all[0].BackupID)
	assert.Equal(t, pctID, all[1].ID)

	byBackup, err := s.ListRunLogs(ctx, RunFilter{BackupID: "chain-backup-2024-05-03T09-10-00-000Z"})
	require.NoError(t, err)
	require.Len(t, byBackup, 1)
	assert.Equal(t, chainID, byBackup[0].ID)
}

func TestFileStore_ListSkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	s := NewFile(dir)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	_, err := s.SaveRunLog(ctx, &model.RunLog{Kind: model.RunKindRollback, BackupID: "b1"})
	require.NoError(t, err)
	_, err = s.CreateBackup(ctx, &model.BackupRecord{Mode: model.ModeChain})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", "pct-run-broken.log.json"), []byte(`{"started_at": "yesterday"`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backups", "pct-backup-broken.json"), []byte(`not json`), 0o644))

	runs, err := s.ListRunLogs(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunKindRollback, runs[0].Kind)

	backups, err := s.ListBackups(ctx, BackupFilter{})
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, model.ModeChain, backups[0].Mode)

	_, err = s.GetRunLog(ctx, "pct-run-broken")
	require.Error(t, err)
	assert.False(t, model.IsNotFound(err))
}

func TestFileStore_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.json")
	require.NoError(t, writeJSONOnce(path, map[string]int{"a": 1}))

	err := writeJSONOnce(path, map[string]int{"a": 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"a": 1`)
}

func TestFileStore_ListEmptyRoot(t *testing.T) {
	s := NewFile(filepath.Join(t.TempDir(), "never-created"))

	backups, err := s.ListBackups(context.Background(), BackupFilter{})
	require.NoError(t, err)
	assert.Empty(t, backups)
}
