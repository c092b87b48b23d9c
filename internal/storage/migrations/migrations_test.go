package migrations

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GitSaviour/jaaptracker/internal/storage"
)

func TestLatestMatchesAcrossDialects(t *testing.T) {
	sqliteLatest, err := Latest(SQLite)
	require.NoError(t, err)
	pgLatest, err := Latest(Postgres)
	require.NoError(t, err)

	assert.Equal(t, uint(2), sqliteLatest)
	assert.Equal(t, sqliteLatest, pgLatest, "both backends must ship the same schema versions")
}

func TestCompare(t *testing.T) {
	assert.ErrorIs(t, compare(0, 2), storage.ErrNotInitialized)
	assert.ErrorIs(t, compare(1, 2), storage.ErrSchemaOutdated)
	assert.ErrorIs(t, compare(3, 2), storage.ErrSchemaTooNew)
	assert.NoError(t, compare(2, 2))
}

func TestUpAndValidateSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")

	err := Validate(SQLite, dsn)
	require.True(t, errors.Is(err, storage.ErrNotInitialized), "fresh database should be uninitialized, got %v", err)

	require.NoError(t, Up(SQLite, dsn))
	require.NoError(t, Validate(SQLite, dsn))

	// Re-running is a no-op.
	require.NoError(t, Up(SQLite, dsn))

	current, err := Current(SQLite, dsn)
	require.NoError(t, err)
	latest, err := Latest(SQLite)
	require.NoError(t, err)
	assert.Equal(t, latest, current)
}
