// Package tally implements the counting rules on top of a storage.Provider:
// additions on the same day accumulate into one entry, edits overwrite, and
// range sums include both ends.
package tally

import (
	"context"
	"errors"
	"fmt"

	"github.com/GitSaviour/jaaptracker/internal/logger"
	"github.com/GitSaviour/jaaptracker/internal/models"
	"github.com/GitSaviour/jaaptracker/internal/storage"
)

// ErrInvalidCount is returned for a non-positive addition or a negative edit.
var ErrInvalidCount = errors.New("invalid count")

type Aggregator struct {
	store storage.Provider
}

func New(store storage.Provider) *Aggregator {
	return &Aggregator{store: store}
}

// AddCount adds delta to the profile's entry for date, creating the entry when
// the day has none. The store applies it as one atomic upsert, so concurrent
// additions never lose an increment.
func (a *Aggregator) AddCount(ctx context.Context, profileID int64, date models.Date, delta int64) (models.LogEntry, error) {
	if delta <= 0 {
		return models.LogEntry{}, fmt.Errorf("%w: count must be positive, got %d", ErrInvalidCount, delta)
	}
	if date.IsZero() {
		return models.LogEntry{}, fmt.Errorf("%w: date is required", ErrInvalidCount)
	}

	entry, err := a.store.IncrementLog(ctx, profileID, date, delta)
	if err != nil {
		return models.LogEntry{}, fmt.Errorf("failed to add count for profile %d on %s: %w", profileID, date, err)
	}
	logger.Debug("Count added", "profile", profileID, "date", date, "delta", delta, "total", entry.Count)
	return entry, nil
}

// SetCount overwrites the count of an existing entry. A missing entry is a
// silent no-op.
func (a *Aggregator) SetCount(ctx context.Context, entryID int64, newCount int64) error {
	if newCount < 0 {
		return fmt.Errorf("%w: count must not be negative, got %d", ErrInvalidCount, newCount)
	}
	if err := a.store.UpdateLogCount(ctx, entryID, newCount); err != nil {
		return fmt.Errorf("failed to set count for log %d: %w", entryID, err)
	}
	return nil
}

// RangeSum returns the total count for start <= date <= end. No entries, or
// an inverted range, yield 0.
func (a *Aggregator) RangeSum(ctx context.Context, profileID int64, start, end models.Date) (int64, error) {
	if end.Before(start) {
		return 0, nil
	}
	sum, err := a.store.SumCountForRange(ctx, profileID, start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to sum counts for profile %d: %w", profileID, err)
	}
	return sum, nil
}
