package storage

import (
	"context"

	"github.com/GitSaviour/jaaptracker/internal/logger"
	"github.com/GitSaviour/jaaptracker/internal/models"
	"github.com/GitSaviour/jaaptracker/internal/watch"
)

// Live decorates a Provider with change notification. Reads pass straight
// through; every successful mutation bumps a per-table version that drives the
// Watch* subscriptions.
type Live struct {
	Provider

	profiles *watch.Value[uint64]
	logs     *watch.Value[uint64]
}

var _ Provider = (*Live)(nil)

func NewLive(p Provider) *Live {
	return &Live{
		Provider: p,
		profiles: watch.NewValue[uint64](0),
		logs:     watch.NewValue[uint64](0),
	}
}

func bump(v *watch.Value[uint64]) {
	v.Update(func(n uint64) uint64 { return n + 1 })
}

func (l *Live) profilesChanged() { bump(l.profiles) }
func (l *Live) logsChanged()     { bump(l.logs) }

// WatchProfiles calls fn with the profile list ordered by name, once now and
// again after every profile mutation, until cancel is called or ctx ends.
func (l *Live) WatchProfiles(ctx context.Context, fn func([]models.Profile, error)) (cancel func()) {
	return l.watch(ctx, l.profiles, func() {
		fn(l.ListProfiles(ctx))
	})
}

// WatchLogs calls fn with the profile's entries ordered by date descending,
// once now and again after every log mutation.
func (l *Live) WatchLogs(ctx context.Context, profileID int64, fn func([]models.LogEntry, error)) (cancel func()) {
	return l.watch(ctx, l.logs, func() {
		fn(l.ListLogsForProfile(ctx, profileID))
	})
}

func (l *Live) watch(ctx context.Context, v *watch.Value[uint64], query func()) func() {
	unsubscribe := v.Subscribe(func(uint64) {
		if ctx.Err() != nil {
			return
		}
		query()
	})
	stop := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stop()
		unsubscribe()
	}
}

// Close stops all subscriptions and closes the wrapped Provider.
func (l *Live) Close() error {
	l.profiles.Close()
	l.logs.Close()
	return l.Provider.Close()
}

func (l *Live) CreateProfile(ctx context.Context, name string) (models.Profile, error) {
	p, err := l.Provider.CreateProfile(ctx, name)
	if err == nil {
		l.profilesChanged()
	}
	return p, err
}

func (l *Live) DeleteProfile(ctx context.Context, id int64) error {
	err := l.Provider.DeleteProfile(ctx, id)
	if err == nil {
		l.profilesChanged()
		l.logsChanged()
	}
	return err
}

func (l *Live) InsertLog(ctx context.Context, entry models.LogEntry) (models.LogEntry, error) {
	e, err := l.Provider.InsertLog(ctx, entry)
	if err == nil {
		l.logsChanged()
	}
	return e, err
}

func (l *Live) UpdateLog(ctx context.Context, entry models.LogEntry) error {
	err := l.Provider.UpdateLog(ctx, entry)
	if err == nil {
		l.logsChanged()
	}
	return err
}

func (l *Live) UpdateLogCount(ctx context.Context, id int64, count int64) error {
	err := l.Provider.UpdateLogCount(ctx, id, count)
	if err == nil {
		l.logsChanged()
	}
	return err
}

func (l *Live) IncrementLog(ctx context.Context, profileID int64, date models.Date, delta int64) (models.LogEntry, error) {
	e, err := l.Provider.IncrementLog(ctx, profileID, date, delta)
	if err == nil {
		l.logsChanged()
	}
	return e, err
}

func (l *Live) DeleteLog(ctx context.Context, id int64) error {
	err := l.Provider.DeleteLog(ctx, id)
	if err == nil {
		l.logsChanged()
	}
	return err
}

func (l *Live) PruneOrphanLogs(ctx context.Context) (int64, error) {
	n, err := l.Provider.PruneOrphanLogs(ctx)
	if err == nil && n > 0 {
		l.logsChanged()
	}
	return n, err
}

func (l *Live) Restore(ctx context.Context, fn func(tx RestoreTx) error) error {
	err := l.Provider.Restore(ctx, fn)
	if err != nil {
		logger.Debug("Restore rolled back, no change published", "error", err)
		return err
	}
	l.profilesChanged()
	l.logsChanged()
	return nil
}
