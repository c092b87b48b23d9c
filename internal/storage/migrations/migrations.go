// Package migrations embeds the schema for each supported backend and applies it
// with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/GitSaviour/jaaptracker/internal/storage"
)

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

// Dialect names a backend; it doubles as the database/sql driver name and the
// embedded directory holding its migrations.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Up applies all pending migrations. It opens its own connection because
// closing a migrate instance closes the underlying database.
func Up(dialect Dialect, dsn string) error {
	m, err := open(dialect, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Current returns the applied schema version, or 0 when none has been applied.
func Current(dialect Dialect, dsn string) (uint, error) {
	m, err := open(dialect, dsn)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty, a previous migration failed part way", version)
	}
	return version, nil
}

// Validate checks the applied version against the newest embedded migration.
func Validate(dialect Dialect, dsn string) error {
	current, err := Current(dialect, dsn)
	if err != nil {
		return err
	}
	latest, err := Latest(dialect)
	if err != nil {
		return err
	}
	return compare(current, latest)
}

func compare(current, latest uint) error {
	switch {
	case current == 0:
		return storage.ErrNotInitialized
	case current > latest:
		return fmt.Errorf("%w: database at version %d, this release supports up to %d", storage.ErrSchemaTooNew, current, latest)
	case current < latest:
		return fmt.Errorf("%w: database at version %d, latest is %d", storage.ErrSchemaOutdated, current, latest)
	}
	return nil
}

// Latest returns the highest migration version embedded for the dialect.
func Latest(dialect Dialect) (uint, error) {
	versions, err := versions(dialect)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[len(versions)-1], nil
}

func versions(dialect Dialect) ([]uint, error) {
	entries, err := fs.ReadDir(FS, string(dialect))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s migrations: %w", dialect, err)
	}

	seen := make(map[uint]bool)
	var out []uint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("invalid migration filename format: %s (expected NNNNNN_name.up.sql)", name)
		}
		v, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil || v == 0 {
			return nil, fmt.Errorf("invalid version number in filename %s", name)
		}
		if seen[uint(v)] {
			return nil, fmt.Errorf("duplicate migration version %d", v)
		}
		seen[uint(v)] = true
		out = append(out, uint(v))
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func open(dialect Dialect, dsn string) (*migrate.Migrate, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}

	var driver database.Driver
	switch dialect {
	case SQLite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	case Postgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		err = fmt.Errorf("unsupported dialect %q", dialect)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create %s migration driver: %w", dialect, err)
	}

	src, err := iofs.New(FS, string(dialect))
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}
