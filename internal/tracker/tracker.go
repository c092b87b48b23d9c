// Package tracker is the query/command entry point for presentations.
//
// State is exposed as observable values; commands are fire-and-forget and run
// on background goroutines. Their effects arrive through the observables, and
// export, import and failures also produce a Notice.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/GitSaviour/jaaptracker/internal/backup"
	"github.com/GitSaviour/jaaptracker/internal/logger"
	"github.com/GitSaviour/jaaptracker/internal/models"
	"github.com/GitSaviour/jaaptracker/internal/storage"
	"github.com/GitSaviour/jaaptracker/internal/tally"
	"github.com/GitSaviour/jaaptracker/internal/watch"
)

var (
	// ErrValidation wraps input rejected before a command is dispatched.
	ErrValidation = errors.New("invalid input")
	ErrClosed     = errors.New("tracker is closed")
)

const defaultNoticeLimit = 50

type Option func(*Tracker)

// WithContext sets the parent context of background work. Cancelling it
// stops live subscriptions; commands already running still complete.
func WithContext(ctx context.Context) Option {
	return func(t *Tracker) { t.parent = ctx }
}

// WithNoticeLimit bounds how many recent notices Notices keeps.
func WithNoticeLimit(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.noticeLimit = n
		}
	}
}

type Tracker struct {
	live  *storage.Live
	agg   *tally.Aggregator
	codec *backup.Codec

	parent      context.Context
	ctx         context.Context
	cancel      context.CancelFunc
	noticeLimit int

	// write is held shared by ordinary commands and exclusively by Import.
	write sync.RWMutex
	tasks sync.WaitGroup

	lifeMu sync.Mutex
	closed bool

	// selMu guards the selection generation and its log subscription.
	selMu      sync.Mutex
	generation uint64
	stopLogs   func()
	stopProfs  func()

	profiles *watch.Value[[]models.Profile]
	selected *watch.Value[int64]
	logs     *watch.Value[[]models.LogEntry]
	rangeSum *watch.Value[*int64]
	notices  *watch.Value[[]Notice]
}

func New(live *storage.Live, opts ...Option) *Tracker {
	t := &Tracker{
		live:        live,
		agg:         tally.New(live),
		codec:       backup.NewCodec(live),
		parent:      context.Background(),
		noticeLimit: defaultNoticeLimit,
		profiles:    watch.NewValue[[]models.Profile](nil),
		selected:    watch.NewValue[int64](0),
		logs:        watch.NewValue[[]models.LogEntry](nil),
		rangeSum:    watch.NewValue[*int64](nil),
		notices:     watch.NewValue[[]Notice](nil),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.ctx, t.cancel = context.WithCancel(t.parent)

	t.stopProfs = live.WatchProfiles(t.ctx, func(list []models.Profile, err error) {
		if err != nil {
			t.notify(failure("load profiles", err))
			return
		}
		t.profiles.Set(list)
	})
	return t
}

// Profiles is the live profile list ordered by name.
func (t *Tracker) Profiles() *watch.Value[[]models.Profile] { return t.profiles }

// Selected is the selected profile id, 0 when none.
func (t *Tracker) Selected() *watch.Value[int64] { return t.selected }

// Logs is the live log list of the selected profile, newest date first.
func (t *Tracker) Logs() *watch.Value[[]models.LogEntry] { return t.logs }

// RangeSum is the last computed range sum, nil until one completes and after
// the selection changes.
func (t *Tracker) RangeSum() *watch.Value[*int64] { return t.rangeSum }

// Notices holds the most recent notices, oldest first.
func (t *Tracker) Notices() *watch.Value[[]Notice] { return t.notices }

func (t *Tracker) notify(n Notice) {
	if n.Kind == NoticeFailure {
		logger.Error("Command failed", "command", n.Command, "error", n.Err)
	} else {
		logger.Info(n.Message, "command", n.Command)
	}
	t.notices.Update(func(list []Notice) []Notice {
		next := append(append([]Notice(nil), list...), n)
		if len(next) > t.noticeLimit {
			next = next[len(next)-t.noticeLimit:]
		}
		return next
	})
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// dispatch runs fn in the background. Exclusive tasks wait for every running
// task and block new ones until they finish.
func (t *Tracker) dispatch(command string, exclusive bool, fn func(ctx context.Context) error) error {
	t.lifeMu.Lock()
	defer t.lifeMu.Unlock()
	if t.closed {
		return ErrClosed
	}

	t.tasks.Add(1)
	go func() {
		defer t.tasks.Done()
		if exclusive {
			t.write.Lock()
			defer t.write.Unlock()
		} else {
			t.write.RLock()
			defer t.write.RUnlock()
		}
		if err := fn(t.ctx); err != nil {
			t.notify(failure(command, err))
		}
	}()
	return nil
}

func (t *Tracker) CreateProfile(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("profile name is required")
	}
	return t.dispatch("create profile", false, func(ctx context.Context) error {
		_, err := t.live.CreateProfile(ctx, name)
		return err
	})
}

// DeleteProfile removes a profile. Deleting the selected profile clears the
// selection.
func (t *Tracker) DeleteProfile(id int64) error {
	if id <= 0 {
		return invalid("profile id must be positive")
	}
	return t.dispatch("delete profile", false, func(ctx context.Context) error {
		if err := t.live.DeleteProfile(ctx, id); err != nil {
			return err
		}
		if t.selected.Get() == id {
			t.selectProfile(0)
		}
		return nil
	})
}

// SelectProfile switches the selection and clears the range sum. 0 selects
// nothing.
func (t *Tracker) SelectProfile(id int64) error {
	if id < 0 {
		return invalid("profile id must not be negative")
	}
	t.lifeMu.Lock()
	closed := t.closed
	t.lifeMu.Unlock()
	if closed {
		return ErrClosed
	}
	t.selectProfile(id)
	return nil
}

func (t *Tracker) selectProfile(id int64) {
	t.selMu.Lock()
	defer t.selMu.Unlock()

	t.generation++
	gen := t.generation
	if t.stopLogs != nil {
		t.stopLogs()
		t.stopLogs = nil
	}
	t.selected.Set(id)
	t.rangeSum.Set(nil)
	t.logs.Set(nil)

	if id == 0 {
		return
	}
	t.stopLogs = t.live.WatchLogs(t.ctx, id, func(list []models.LogEntry, err error) {
		t.selMu.Lock()
		defer t.selMu.Unlock()
		if t.generation != gen {
			return
		}
		if err != nil {
			t.notify(failure("load logs", err))
			return
		}
		t.logs.Set(list)
	})
}

func (t *Tracker) AddCount(profileID int64, count int64, date models.Date) error {
	if profileID <= 0 {
		return invalid("profile id must be positive")
	}
	if count <= 0 {
		return invalid("count must be positive, got %d", count)
	}
	if date.IsZero() {
		return invalid("date is required")
	}
	return t.dispatch("add count", false, func(ctx context.Context) error {
		_, err := t.agg.AddCount(ctx, profileID, date, count)
		return err
	})
}

func (t *Tracker) EditCount(logID int64, newCount int64) error {
	if logID <= 0 {
		return invalid("log id must be positive")
	}
	if newCount < 0 {
		return invalid("count must not be negative, got %d", newCount)
	}
	return t.dispatch("edit count", false, func(ctx context.Context) error {
		return t.agg.SetCount(ctx, logID, newCount)
	})
}

func (t *Tracker) DeleteLog(id int64) error {
	if id <= 0 {
		return invalid("log id must be positive")
	}
	return t.dispatch("delete log", false, func(ctx context.Context) error {
		return t.live.DeleteLog(ctx, id)
	})
}

// ComputeRangeSum publishes the sum to RangeSum unless the selection changed
// while it ran.
func (t *Tracker) ComputeRangeSum(profileID int64, start, end models.Date) error {
	if profileID <= 0 {
		return invalid("profile id must be positive")
	}
	if start.IsZero() || end.IsZero() {
		return invalid("start and end dates are required")
	}
	if end.Before(start) {
		return invalid("range end %s is before start %s", end, start)
	}

	t.selMu.Lock()
	gen := t.generation
	t.selMu.Unlock()

	return t.dispatch("range sum", false, func(ctx context.Context) error {
		sum, err := t.agg.RangeSum(ctx, profileID, start, end)
		if err != nil {
			return err
		}
		t.selMu.Lock()
		defer t.selMu.Unlock()
		if t.generation == gen {
			t.rangeSum.Set(&sum)
		}
		return nil
	})
}

// Export writes a backup document to sink and reports the outcome as a notice.
func (t *Tracker) Export(sink io.Writer) error {
	if sink == nil {
		return invalid("export destination is required")
	}
	return t.dispatch("export", false, func(ctx context.Context) error {
		if err := t.codec.Export(ctx, sink); err != nil {
			return err
		}
		t.notify(success("export", "Export complete"))
		return nil
	})
}

// Import replaces the dataset with the document read from source. It runs
// alone: no other command overlaps it.
func (t *Tracker) Import(source io.Reader) error {
	if source == nil {
		return invalid("import source is required")
	}
	return t.dispatch("import", true, func(ctx context.Context) error {
		report, err := t.codec.Import(ctx, source)
		if err != nil {
			return err
		}
		t.notify(success("import", "%s", report))
		return nil
	})
}

// PruneOrphans removes log entries whose profile no longer exists.
func (t *Tracker) PruneOrphans() error {
	return t.dispatch("prune", false, func(ctx context.Context) error {
		n, err := t.live.PruneOrphanLogs(ctx)
		if err != nil {
			return err
		}
		t.notify(success("prune", "Removed %d orphaned logs", n))
		return nil
	})
}

// Wait blocks until every dispatched command has finished.
func (t *Tracker) Wait() {
	t.tasks.Wait()
}

// Close waits for running commands, then stops subscriptions and closes the
// observables. The underlying store stays open.
func (t *Tracker) Close() {
	t.lifeMu.Lock()
	if t.closed {
		t.lifeMu.Unlock()
		return
	}
	t.closed = true
	t.lifeMu.Unlock()

	t.tasks.Wait()

	t.selMu.Lock()
	if t.stopLogs != nil {
		t.stopLogs()
		t.stopLogs = nil
	}
	t.selMu.Unlock()
	t.stopProfs()
	t.cancel()

	t.profiles.Close()
	t.selected.Close()
	t.logs.Close()
	t.rangeSum.Close()
	t.notices.Close()
}
