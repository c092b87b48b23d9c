package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/GitSaviour/jaaptracker/internal/constants"
	"github.com/GitSaviour/jaaptracker/internal/logger"
	"github.com/GitSaviour/jaaptracker/internal/storage"
	"github.com/GitSaviour/jaaptracker/internal/storage/migrations"
)

type Store struct {
	path string
	mode storage.IntegrityMode
	db   *sql.DB
}

var _ storage.Provider = (*Store)(nil)

func NewStore(path string, mode storage.IntegrityMode) *Store {
	if mode == "" {
		mode = storage.IntegrityEnforced
	}
	return &Store{
		path: path,
		mode: mode,
	}
}

func (s *Store) dsn() string {
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", s.path, constants.SQLiteBusyTimeout)
}

// Init creates the database file if needed and applies pending migrations.
// It is safe to call on an existing database.
func (s *Store) Init(ctx context.Context) error {
	// Create config directory if it doesn't exist
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := migrations.Up(migrations.SQLite, s.dsn()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return s.open(ctx)
}

func (s *Store) Load(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("%w at %s", storage.ErrNotInitialized, s.path)
	}

	if err := migrations.Validate(migrations.SQLite, s.dsn()); err != nil {
		return err
	}

	return s.open(ctx)
}

func (s *Store) open(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serialises writers; SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	logger.Debug("Opened SQLite store", "path", s.path, "integrity", s.mode)
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) GetConfigPath() string {
	return s.path
}

func (s *Store) IntegrityMode() storage.IntegrityMode {
	return s.mode
}

// GetDB returns the underlying database connection.
// Returns nil if the database has not been initialized or loaded.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

func (s *Store) conn() (*sql.DB, error) {
	if s.db == nil {
		return nil, storage.ErrNotLoaded
	}
	return s.db, nil
}

// withTx runs fn in a transaction, rolling back when fn or the commit fails.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	db, err := s.conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if e := tx.Commit(); e != nil {
			err = fmt.Errorf("failed to commit transaction: %w", e)
		}
	}()

	return fn(tx)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// SchemaVersion returns the applied migration version and the newest one this
// build knows about.
func (s *Store) SchemaVersion() (current, latest uint, err error) {
	if _, statErr := os.Stat(s.path); statErr == nil {
		if current, err = migrations.Current(migrations.SQLite, s.dsn()); err != nil {
			return 0, 0, err
		}
	}
	latest, err = migrations.Latest(migrations.SQLite)
	return current, latest, err
}
