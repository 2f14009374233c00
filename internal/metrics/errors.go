package metrics

import (
	"fmt"

	"codeberg.org/mutker/amdpower/internal/errors"
)

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("metrics_invalid_db_path")

	// Schema lifecycle
	ErrSchemaInit       = errors.ErrorCode("metrics_schema_init_failed")
	ErrSchemaValidation = errors.ErrorCode("metrics_schema_validation_failed")
	ErrSchemaRecreate   = errors.ErrorCode("metrics_schema_recreate_failed")
	ErrBackup           = errors.ErrorCode("metrics_backup_failed")

	// Storage
	ErrStorageInit  = errors.ErrInitMetrics
	ErrStorageClose = errors.ErrCloseMetrics
	ErrFlush        = errors.ErrorCode("metrics_flush_failed")
	ErrPrune        = errors.ErrorCode("metrics_prune_failed")

	// Recording
	ErrRecord           = errors.ErrCollectMetrics
	ErrInvalidSnapshot  = errors.ErrorCode("metrics_invalid_snapshot")
	ErrOperationTimeout = errors.ErrTimeout
)

func init() {
	errors.RegisterMessage(ErrInvalidDBPath, "Metrics database path is not set")
	errors.RegisterMessage(ErrSchemaInit, "Failed to create metrics schema")
	errors.RegisterMessage(ErrSchemaValidation, "Failed to read metrics schema version")
	errors.RegisterMessage(ErrSchemaRecreate, "Failed to recreate metrics schema")
	errors.RegisterMessage(ErrBackup, "Failed to back up metrics database")
	errors.RegisterMessage(ErrFlush, "Failed to write buffered samples")
	errors.RegisterMessage(ErrPrune, "Failed to prune expired samples")
	errors.RegisterMessage(ErrInvalidSnapshot, "Snapshot has no power readings")
}

// storageFailure is attached as error data to storage errors
type storageFailure struct {
	Phase string
	Path  string
	Err   error
}

func (f storageFailure) String() string {
	if f.Path == "" {
		return fmt.Sprintf("%s: %v", f.Phase, f.Err)
	}

	return fmt.Sprintf("%s %s: %v", f.Phase, f.Path, f.Err)
}

func failure(code errors.ErrorCode, phase, path string, err error) errors.Error {
	return errors.New().Wrap(code, err).WithData(storageFailure{Phase: phase, Path: path, Err: err})
}
