package metrics

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/amdpower/internal/errors"
	"codeberg.org/mutker/amdpower/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

// WAL journal, incremental auto vacuum, and foreign keys for the
// cascading deletes of pruned samples
const dsnOptions = "?_journal=WAL&_auto_vacuum=2&_foreign_keys=1"

type repository struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config
	now    func() time.Time

	mu     sync.Mutex
	buffer []*MetricsSnapshot

	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

// NewRepository opens (or creates) the power history database
func NewRepository(cfg Config, log logger.Logger) (MetricsRepository, error) {
	return newRepository(cfg, log, time.Now)
}

func newRepository(cfg Config, log logger.Logger, now func() time.Time) (*repository, error) {
	if cfg.DBPath == "" {
		return nil, errors.New().New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, failure(ErrStorageInit, "create_directory", cfg.DBPath, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+dsnOptions)
	if err != nil {
		return nil, failure(ErrStorageInit, "open_database", cfg.DBPath, err)
	}

	if err := ValidateAndUpdateSchema(db, cfg, log); err != nil {
		db.Close()
		return nil, errors.New().Wrap(ErrStorageInit, err)
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Int("batch_timeout", cfg.BatchTimeout).
		Int("retention_hours", cfg.RetentionHours).
		Msg("Metrics repository initialized")

	repo := &repository{
		db:            db,
		logger:        log,
		cfg:           cfg,
		now:           now,
		buffer:        make([]*MetricsSnapshot, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if cfg.BatchSize > 0 && cfg.BatchTimeout > 0 {
		repo.flushTicker = time.NewTicker(time.Duration(cfg.BatchTimeout) * time.Second)
		go repo.flusher()
	}

	return repo, nil
}

func (r *repository) Record(snapshot *MetricsSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, snapshot)

	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}

	return nil
}

func (r *repository) Close() error {
	if r.flushTicker != nil {
		close(r.shutdownChan)
		r.flushTicker.Stop()

		// the flusher writes what is left before it exits
		<-r.flushDoneChan
	} else {
		r.mu.Lock()
		err := r.flush()
		r.mu.Unlock()
		if err != nil {
			return err
		}
	}

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return failure(ErrStorageClose, "checkpoint_wal", r.cfg.DBPath, err)
	}

	if err := r.db.Close(); err != nil {
		return failure(ErrStorageClose, "close_database", r.cfg.DBPath, err)
	}

	r.logger.Info().Msg("Metrics repository closed gracefully")

	return nil
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Warn().Err(err).Msg("Periodic flush failed")
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Warn().Err(err).Msg("Final flush failed")
			}
			r.mu.Unlock()
			return
		}
	}
}

// flush writes the buffer and prunes expired samples in one transaction.
// The buffer is kept on failure so the next flush retries it.
func (r *repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	var pruned int64
	err := inTx(r.db, r.logger, ErrFlush, func(tx *sql.Tx) error {
		for _, snapshot := range r.buffer {
			if err := insertSnapshot(tx, snapshot); err != nil {
				return failure(ErrFlush, "insert_sample", "", err)
			}
		}

		n, err := r.prune(tx)
		pruned = n
		return err
	})
	if err != nil {
		r.logger.Error().Err(err).Int("buffered", len(r.buffer)).Msg("Failed to flush metrics")
		return err
	}

	r.logger.Debug().
		Int("records", len(r.buffer)).
		Int64("pruned", pruned).
		Msg("Flushed metrics to database")
	r.buffer = r.buffer[:0]

	return nil
}

func (r *repository) prune(tx *sql.Tx) (int64, error) {
	if r.cfg.RetentionHours <= 0 {
		return 0, nil
	}

	cutoff := r.now().Add(-time.Duration(r.cfg.RetentionHours) * time.Hour)
	res, err := tx.Exec(pruneSamplesSQL, cutoff.UnixNano())
	if err != nil {
		return 0, failure(ErrPrune, "delete_samples", "", err)
	}

	return res.RowsAffected()
}

func insertSnapshot(tx *sql.Tx, snapshot *MetricsSnapshot) error {
	res, err := tx.Exec(insertSampleSQL, snapshot.Timestamp.UnixNano())
	if err != nil {
		return err
	}
	sampleID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, c := range snapshot.Cores {
		if _, err := tx.Exec(insertCorePowerSQL, sampleID, c.CPU, int64(c.PackageID), c.Watts); err != nil {
			return err
		}
	}
	for _, p := range snapshot.Packages {
		if _, err := tx.Exec(insertPackagePowerSQL, sampleID, p.Index, int64(p.PackageID), p.Watts); err != nil {
			return err
		}
	}

	return nil
}
