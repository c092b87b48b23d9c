// Package lock provides a PID lockfile that serialises imports across
// processes sharing one data directory.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ps "github.com/mitchellh/go-ps"

	"github.com/GitSaviour/jaaptracker/internal/constants"
	"github.com/GitSaviour/jaaptracker/internal/logger"
)

// ErrLocked is returned while another live process holds the lock.
var ErrLocked = errors.New("another jaaptracker process holds the data lock")

var (
	findProcessFunc = ps.FindProcess
	retryDelay      = constants.LockRetryDelay
)

// Lock is a held lockfile. Release it when done.
type Lock struct {
	path string
	pid  int
}

// Holder describes the process recorded in a lockfile.
type Holder struct {
	PID       int
	Operation string
}

// Path returns the lockfile location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, constants.LockfileName)
}

// Acquire takes the lockfile in dir for operation. A lockfile left by a dead
// process is reclaimed; one held by a live jaaptracker process yields ErrLocked.
func Acquire(dir, operation string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	path := Path(dir)
	pid := os.Getpid()
	content := fmt.Sprintf("%d|%s", pid, operation)

	for attempt := 0; attempt <= constants.LockMaxRetries; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err == nil {
			_, werr := f.WriteString(content)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("failed to write lockfile: %w", errors.Join(werr, cerr))
			}
			logger.Debug("Lock acquired", "path", path, "operation", operation)
			return &Lock{path: path, pid: pid}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lockfile: %w", err)
		}

		holder, live := inspect(path)
		if live {
			return nil, fmt.Errorf("%w (pid %d, %s)", ErrLocked, holder.PID, holder.Operation)
		}
		logger.Warn("Removing stale lockfile", "path", path, "pid", holder.PID)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lockfile: %w", err)
		}
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("%w: could not acquire %s", ErrLocked, path)
}

// Check returns ErrLocked when a live process holds the lockfile in dir.
func Check(dir string) error {
	holder, live := inspect(Path(dir))
	if live {
		return fmt.Errorf("%w (pid %d, %s)", ErrLocked, holder.PID, holder.Operation)
	}
	return nil
}

// inspect reads a lockfile and reports whether its owner is still running.
// Unreadable or malformed files count as stale.
func inspect(path string) (Holder, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Holder{}, false
	}

	pidStr, operation, _ := strings.Cut(strings.TrimSpace(string(content)), "|")
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return Holder{}, false
	}
	holder := Holder{PID: pid, Operation: operation}

	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return holder, false
	}
	// a recycled PID belonging to another program does not hold the lock
	if !strings.HasPrefix(process.Executable(), constants.ExecutablePrefix) {
		return holder, false
	}
	return holder, true
}

// Release removes the lockfile if it still belongs to this lock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	holder, _ := inspect(l.path)
	if holder.PID != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	logger.Debug("Lock released", "path", l.path)
	return nil
}
