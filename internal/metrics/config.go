package metrics

import (
	"path/filepath"

	"codeberg.org/mutker/amdpower/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/amdpower/metrics.db"
	defaultBatchSize    = 10
	defaultBatchTimeout = 30
	backupDirName       = "backups"
)

type Config struct {
	DBPath         string
	Enabled        bool
	BatchSize      int // snapshots buffered before a flush
	BatchTimeout   int // seconds between background flushes, 0 disables them
	RetentionHours int // samples older than this are pruned on flush, 0 keeps everything
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		Enabled:      false, // Disabled by default
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if metrics is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 || c.RetentionHours < 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "batch size, timeout and retention must not be negative")
	}
	return nil
}

func (c Config) backupDir() string {
	return filepath.Join(filepath.Dir(c.DBPath), backupDirName)
}
