package storage

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a log entry already exists for the profile and date.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotInitialized is returned by Load when the store has never been initialized.
	ErrNotInitialized = errors.New("storage not initialized")
	// ErrSchemaOutdated indicates pending migrations.
	ErrSchemaOutdated = errors.New("database schema is outdated")
	// ErrSchemaTooNew indicates the database was migrated by a newer release.
	ErrSchemaTooNew = errors.New("database schema is newer than supported")
	// ErrNotLoaded is returned when a store method runs before Init or Load.
	ErrNotLoaded = errors.New("storage not loaded")
)
