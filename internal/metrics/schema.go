package metrics

import (
	"database/sql"

	"codeberg.org/mutker/amdpower/internal/errors"
	"codeberg.org/mutker/amdpower/internal/logger"
)

const (
	SchemaVersion = 1

	// SQL statements derived from schema
	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS samples (
	       id         INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp  INTEGER NOT NULL CHECK (typeof(timestamp) = 'integer')
	   );
	   CREATE TABLE IF NOT EXISTS core_power (
	       sample_id  INTEGER NOT NULL REFERENCES samples(id) ON DELETE CASCADE,
	       cpu        INTEGER NOT NULL CHECK (cpu >= 0),
	       package_id INTEGER NOT NULL CHECK (package_id >= 0),
	       watts      REAL NOT NULL,
	       PRIMARY KEY (sample_id, cpu)
	   );
	   CREATE TABLE IF NOT EXISTS package_power (
	       sample_id  INTEGER NOT NULL REFERENCES samples(id) ON DELETE CASCADE,
	       idx        INTEGER NOT NULL CHECK (idx >= 0),
	       package_id INTEGER NOT NULL CHECK (package_id >= 0),
	       watts      REAL NOT NULL,
	       PRIMARY KEY (sample_id, idx)
	   );
	   CREATE INDEX IF NOT EXISTS samples_timestamp ON samples(timestamp);`

	insertSampleSQL = `INSERT INTO samples (timestamp) VALUES (?)`

	insertCorePowerSQL = `
    INSERT INTO core_power (
        sample_id, cpu, package_id, watts
    ) VALUES (?, ?, ?, ?)`

	insertPackagePowerSQL = `
    INSERT INTO package_power (
        sample_id, idx, package_id, watts
    ) VALUES (?, ?, ?, ?)`

	insertVersionSQL = `
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))`

	// core_power and package_power rows follow through ON DELETE CASCADE
	pruneSamplesSQL = `DELETE FROM samples WHERE timestamp < ?`
)

// tables in drop order
var schemaTables = []string{"core_power", "package_power", "samples", "schema_versions"}

// InitSchema creates the power history tables and records SchemaVersion
func InitSchema(db *sql.DB, log logger.Logger) error {
	log.Debug().Msg("Creating database...")

	err := inTx(db, log, ErrSchemaInit, func(tx *sql.Tx) error {
		if _, err := tx.Exec(createTablesSQL); err != nil {
			return failure(ErrSchemaInit, "create_tables", "", err)
		}
		if _, err := tx.Exec(insertVersionSQL, SchemaVersion); err != nil {
			return failure(ErrSchemaInit, "record_version", "", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

// GetSchemaVersion returns the recorded schema version, 0 for an empty database
func GetSchemaVersion(db *sql.DB) (int, error) {
	exists, err := TableExists(db, "schema_versions")
	if err != nil || !exists {
		return 0, err
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, failure(ErrSchemaValidation, "get_version", "", err)
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, failure(ErrSchemaValidation, "check_table_exists", tableName, err)
	}
	return exists, nil
}

// inTx runs fn in a transaction, rolling back when fn or the commit fails.
// code tags failures of the transaction itself.
func inTx(db *sql.DB, log logger.Logger, code errors.ErrorCode, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return failure(code, "begin", "", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Debug().Err(rbErr).Msg("Failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return failure(code, "commit", "", err)
	}

	return nil
}
