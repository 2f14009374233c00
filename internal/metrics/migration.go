package metrics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/amdpower/internal/logger"
)

const backupTimeFormat = "20060102T150405Z"

// backupDatabase copies the live database into dir before its schema is
// replaced. The copy is named after the schema version it holds.
func backupDatabase(db *sql.DB, dir string, version int, now time.Time, log logger.Logger) (string, error) {
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return "", failure(ErrBackup, "create_backup_dir", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("power_v%d_%s.db", version, now.UTC().Format(backupTimeFormat)))

	// VACUUM INTO requires no active transaction
	if _, err := db.Exec("VACUUM INTO ?", path); err != nil {
		return "", failure(ErrBackup, "vacuum_into", path, err)
	}

	log.Info().
		Str("path", path).
		Int("version", version).
		Msg("Database backup created")

	return path, nil
}

// ValidateAndUpdateSchema creates the schema on an empty database. A database
// written by another schema version is backed up next to itself, then its
// tables are dropped and recreated; the history it held lives on only in
// the backup.
func ValidateAndUpdateSchema(db *sql.DB, cfg Config, log logger.Logger) error {
	version, err := GetSchemaVersion(db)
	if err != nil {
		return err
	}

	switch version {
	case SchemaVersion:
		log.Debug().Int("version", version).Msg("Schema version is current")
		return nil
	case 0:
		log.Debug().Msg("Empty database, creating schema")
	default:
		log.Warn().
			Int("found", version).
			Int("expected", SchemaVersion).
			Msg("Schema version mismatch, recreating power history")

		if _, err := backupDatabase(db, cfg.backupDir(), version, time.Now(), log); err != nil {
			return err
		}
	}

	if err := dropTables(db, log); err != nil {
		return err
	}

	return InitSchema(db, log)
}

func dropTables(db *sql.DB, log logger.Logger) error {
	return inTx(db, log, ErrSchemaRecreate, func(tx *sql.Tx) error {
		for _, table := range schemaTables {
			if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return failure(ErrSchemaRecreate, "drop_table", table, err)
			}
		}
		return nil
	})
}
