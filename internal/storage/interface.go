package storage

import (
	"context"

	"github.com/GitSaviour/jaaptracker/internal/models"
)

// Provider is the durable store of profiles and log entries.
//
// Every mutating call is durable when it returns. Update and delete of an id that
// does not exist are no-ops, not errors.
type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error

	// Profiles
	CreateProfile(ctx context.Context, name string) (models.Profile, error)
	// ListProfiles returns profiles ordered by name ascending.
	ListProfiles(ctx context.Context) ([]models.Profile, error)
	// DeleteProfile removes the profile and, in IntegrityEnforced mode, its logs.
	DeleteProfile(ctx context.Context, id int64) error

	// Logs
	GetLog(ctx context.Context, id int64) (models.LogEntry, error)
	// GetLogForDate returns ErrNotFound when the profile has no entry for the date.
	GetLogForDate(ctx context.Context, profileID int64, date models.Date) (models.LogEntry, error)
	InsertLog(ctx context.Context, entry models.LogEntry) (models.LogEntry, error)
	UpdateLog(ctx context.Context, entry models.LogEntry) error
	UpdateLogCount(ctx context.Context, id int64, count int64) error
	// IncrementLog adds delta to the (profileID, date) entry, creating it when
	// absent, as a single atomic statement.
	IncrementLog(ctx context.Context, profileID int64, date models.Date, delta int64) (models.LogEntry, error)
	DeleteLog(ctx context.Context, id int64) error
	// ListLogsForProfile returns the profile's entries ordered by date descending.
	ListLogsForProfile(ctx context.Context, profileID int64) ([]models.LogEntry, error)
	// SumCountForRange sums counts with start <= date <= end. No match yields 0.
	SumCountForRange(ctx context.Context, profileID int64, start, end models.Date) (int64, error)
	// PruneOrphanLogs deletes entries whose profile no longer exists.
	PruneOrphanLogs(ctx context.Context) (int64, error)

	// Bulk access for backups
	ListAllProfilesRaw(ctx context.Context) ([]models.Profile, error)
	ListAllLogsRaw(ctx context.Context) ([]models.LogEntry, error)
	// Restore runs fn in a single transaction, committing only if fn returns nil.
	Restore(ctx context.Context, fn func(tx RestoreTx) error) error

	// Utils
	GetConfigPath() string
	IntegrityMode() IntegrityMode
}

// RestoreTx is the destructive, id-preserving surface used while restoring a
// backup. It is only valid inside Provider.Restore.
type RestoreTx interface {
	ClearAllLogs(ctx context.Context) error
	ClearAllProfiles(ctx context.Context) error
	// ResetIDSequence makes the next store-assigned ids start from 1 again.
	ResetIDSequence(ctx context.Context) error
	InsertProfileWithID(ctx context.Context, p models.Profile) error
	InsertLogWithID(ctx context.Context, entry models.LogEntry) error
}
