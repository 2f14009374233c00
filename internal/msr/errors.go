package msr

import (
	"io/fs"

	"codeberg.org/mutker/amdpower/internal/errors"
)

const (
	// Device access errors
	ErrPermissionDenied = errors.ErrorCode("msr_permission_denied")
	ErrCoreNotFound     = errors.ErrorCode("msr_core_not_found")
	ErrIO               = errors.ErrorCode("msr_io_failed")

	// Topology errors
	ErrInvalidPackage = errors.ErrorCode("msr_invalid_package")
	ErrNoCores        = errors.ErrorCode("msr_no_cores")
)

func init() {
	errors.RegisterMessage(ErrPermissionDenied, "Permission denied when trying to open msr, are you running as root?")
	errors.RegisterMessage(ErrCoreNotFound, "Core with id not found")
	errors.RegisterMessage(ErrIO, "IO error when accessing msr")
	errors.RegisterMessage(ErrInvalidPackage, "Invalid package data")
	errors.RegisterMessage(ErrNoCores, "No cores detected")
}

// classify maps a filesystem error onto the device access codes.
func classify(err error) errors.Error {
	errFactory := errors.New()

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errFactory.Wrap(ErrCoreNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return errFactory.Wrap(ErrPermissionDenied, err)
	default:
		return errFactory.Wrap(ErrIO, err)
	}
}
