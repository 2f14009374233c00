package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/amdpower/internal/errors"
)

const (
	pidFile = "amdpower.pid"
)

// Path returns the location of the PID file.
func Path() string {
	return filepath.Join(os.TempDir(), pidFile)
}

// Write writes the current process ID to a PID file.
func Write() error {
	return write(Path(), os.Getpid())
}

func write(path string, pid int) error {
	errFactory := errors.New()

	if bytes, err := os.ReadFile(path); err == nil {
		// PID file exists, check if the process is running
		owner, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
		if err == nil && owner != pid && isRunning(owner) {
			return errFactory.WithData(errors.ErrAlreadyRunning, owner)
		}
	} else if !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func isRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return process.Signal(syscall.Signal(0)) == nil
}

// Remove removes the PID file.
func Remove() error {
	return remove(Path())
}

func remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}
