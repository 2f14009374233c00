package metrics

import (
	"database/sql"
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/amdpower/internal/errors"
	"codeberg.org/mutker/amdpower/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAt(ts time.Time, watts float64) *MetricsSnapshot {
	return &MetricsSnapshot{
		Timestamp: ts,
		Cores: []CoreMetrics{
			{CPU: 0, PackageID: 0, Watts: watts},
			{CPU: 1, PackageID: 0, Watts: watts},
		},
		Packages: []PackageMetrics{{Index: 0, PackageID: 0, Watts: 2 * watts}},
	}
}

func rows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestFlushPrunesExpiredSamples(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := Config{
		DBPath:         filepath.Join(t.TempDir(), "metrics.db"),
		Enabled:        true,
		BatchSize:      3,
		RetentionHours: 1,
	}

	repo, err := newRepository(cfg, logger.Get(), func() time.Time { return now })
	require.NoError(t, err)

	require.NoError(t, repo.Record(sampleAt(now.Add(-2*time.Hour), 1)))
	require.NoError(t, repo.Record(sampleAt(now.Add(-30*time.Minute), 2)))
	require.NoError(t, repo.Record(sampleAt(now, 3)))

	// the two hour old sample goes in the same flush, its rows by cascade
	assert.Equal(t, 2, rows(t, repo.db, "samples"))
	assert.Equal(t, 4, rows(t, repo.db, "core_power"))
	assert.Equal(t, 2, rows(t, repo.db, "package_power"))
	require.NoError(t, repo.Close())
}

func TestFlushKeepsEverythingWithoutRetention(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := Config{
		DBPath:    filepath.Join(t.TempDir(), "metrics.db"),
		Enabled:   true,
		BatchSize: 2,
	}

	repo, err := newRepository(cfg, logger.Get(), func() time.Time { return now })
	require.NoError(t, err)

	require.NoError(t, repo.Record(sampleAt(now.Add(-1000*time.Hour), 1)))
	require.NoError(t, repo.Record(sampleAt(now, 2)))

	assert.Equal(t, 2, rows(t, repo.db, "samples"))
	assert.Equal(t, 4, rows(t, repo.db, "core_power"))
	assert.Empty(t, repo.buffer)
	require.NoError(t, repo.Close())
}

func TestBackupDatabaseName(t *testing.T) {
	dir := t.TempDir()
	db, err := sql.Open("sqlite3", filepath.Join(dir, "metrics.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, InitSchema(db, logger.Get()))

	now := time.Date(2024, 3, 1, 12, 30, 5, 0, time.UTC)
	path, err := backupDatabase(db, filepath.Join(dir, "backups"), 7, now, logger.Get())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backups", "power_v7_20240301T123005Z.db"), path)
	assert.FileExists(t, path)
}

func TestFailureCarriesPhase(t *testing.T) {
	cause := stderrors.New("disk full")
	err := failure(ErrFlush, "insert_sample", "", cause)

	assert.True(t, errors.HasCode(err, ErrFlush))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "Failed to write buffered samples: insert_sample: disk full", err.Error())

	err = failure(ErrBackup, "vacuum_into", "/tmp/b.db", cause)
	assert.Equal(t, "Failed to back up metrics database: vacuum_into /tmp/b.db: disk full", err.Error())
}
