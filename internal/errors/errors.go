package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/GitSaviour/jaaptracker/internal/lock"
	"github.com/GitSaviour/jaaptracker/internal/logger"
	"github.com/GitSaviour/jaaptracker/internal/storage"
	"github.com/GitSaviour/jaaptracker/internal/storage/postgres"
)

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Hint returns a follow-up suggestion for errors the user can fix, or "".
func Hint(err error) string {
	switch {
	case stderrors.Is(err, storage.ErrNotInitialized):
		return "run 'jaaptracker init' first"
	case stderrors.Is(err, storage.ErrSchemaOutdated):
		return "run 'jaaptracker migrate' to upgrade the database"
	case stderrors.Is(err, storage.ErrSchemaTooNew):
		return "upgrade jaaptracker to a version that supports this database"
	case stderrors.Is(err, postgres.ErrEmbeddedCredentials):
		return "store the password with 'jaaptracker config set-connection', JAAPTRACKER_DB_CONNECTION or ~/.pgpass"
	case stderrors.Is(err, lock.ErrLocked):
		return "wait for the running import to finish"
	}
	return ""
}

// Print writes the formatted error and its hint, if any, to w.
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(w, Format(err))
	if hint := Hint(err); hint != "" {
		fmt.Fprintf(w, "       hint: %s\n", hint)
	}
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		Print(os.Stderr, err)
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
