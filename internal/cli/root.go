package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/GitSaviour/jaaptracker/internal/backup"
	"github.com/GitSaviour/jaaptracker/internal/config"
	"github.com/GitSaviour/jaaptracker/internal/lock"
	"github.com/GitSaviour/jaaptracker/internal/models"
	"github.com/GitSaviour/jaaptracker/internal/storage"
	"github.com/GitSaviour/jaaptracker/internal/storage/postgres"
	"github.com/GitSaviour/jaaptracker/internal/storage/sqlite"
	"github.com/GitSaviour/jaaptracker/internal/tracker"
	"github.com/GitSaviour/jaaptracker/internal/watch"
)

var errSnapshotTimeout = errors.New("timed out waiting for data")

// snapshotTimeout bounds how long a command waits for a live query.
var snapshotTimeout = 10 * time.Second

type Context struct {
	Config   *config.Config
	Provider storage.Provider
	Backups  *backup.Manager

	// Set by Open.
	Store   *storage.Live
	Tracker *tracker.Tracker

	Out io.Writer
	In  io.Reader

	base context.Context
}

// NewProvider returns the store backend cfg points at.
func NewProvider(cfg *config.Config) storage.Provider {
	if cfg.Backend == config.BackendPostgres {
		return postgres.New(cfg.Location, cfg.Integrity)
	}
	return sqlite.NewStore(cfg.Location, cfg.Integrity)
}

func NewContext(ctx context.Context, cfg *config.Config) *Context {
	return &Context{
		base:     ctx,
		Config:   cfg,
		Provider: NewProvider(cfg),
		Backups:  backup.NewManager(cfg.BackupDir, cfg.MaxBackups),
		Out:      os.Stdout,
		In:       os.Stdin,
	}
}

// Open loads the store and starts the tracker on top of it.
func (c *Context) Open() error {
	if err := c.Provider.Load(c.context()); err != nil {
		return err
	}
	c.Store = storage.NewLive(c.Provider)
	c.Tracker = tracker.New(c.Store, tracker.WithContext(c.context()))
	return nil
}

func (c *Context) Close() error {
	if c.Tracker != nil {
		c.Tracker.Close()
	}
	if c.Store != nil {
		return c.Store.Close()
	}
	return c.Provider.Close()
}

// context returns the context commands run under.
func (c *Context) context() context.Context {
	if c.base == nil {
		return context.Background()
	}
	return c.base
}

// guard fails while another process holds the data lock.
func (c *Context) guard() error {
	return lock.Check(c.Config.DataDir)
}

// run dispatches a tracker command and waits for it. A failure notice raised
// by the command becomes its error; otherwise the new notices are returned.
func (c *Context) run(dispatch func(t *tracker.Tracker) error) ([]tracker.Notice, error) {
	before := len(c.Tracker.Notices().Get())
	if err := dispatch(c.Tracker); err != nil {
		return nil, err
	}
	c.Tracker.Wait()

	all := c.Tracker.Notices().Get()
	if before > len(all) {
		before = 0
	}
	fresh := all[before:]
	for _, n := range fresh {
		if n.Kind == tracker.NoticeFailure {
			return fresh, n.Err
		}
	}
	return fresh, nil
}

// lastMessage returns the message of the newest notice, or fallback.
func lastMessage(notices []tracker.Notice, fallback string) string {
	if len(notices) == 0 {
		return fallback
	}
	return notices[len(notices)-1].Message
}

// await blocks until v holds a value accepted by ready.
func await[T any](v *watch.Value[T], ready func(T) bool) (T, error) {
	ch := make(chan T, 1)
	cancel := v.Subscribe(func(val T) {
		if !ready(val) {
			return
		}
		select {
		case ch <- val:
		default:
		}
	})
	defer cancel()

	select {
	case val := <-ch:
		return val, nil
	case <-time.After(snapshotTimeout):
		var zero T
		return zero, errSnapshotTimeout
	}
}

func (c *Context) profiles() ([]models.Profile, error) {
	return await(c.Tracker.Profiles(), func(list []models.Profile) bool { return list != nil })
}

// logsFor selects the profile and returns its log entries.
func (c *Context) logsFor(profileID int64) ([]models.LogEntry, error) {
	if err := c.Tracker.SelectProfile(profileID); err != nil {
		return nil, err
	}
	return await(c.Tracker.Logs(), func(list []models.LogEntry) bool { return list != nil })
}

// resolveProfile accepts a numeric id or an exact profile name.
func (c *Context) resolveProfile(ref string) (models.Profile, error) {
	list, err := c.profiles()
	if err != nil {
		return models.Profile{}, err
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for _, p := range list {
			if p.ID == id {
				return p, nil
			}
		}
		return models.Profile{}, fmt.Errorf("profile %d: %w", id, storage.ErrNotFound)
	}

	var matches []models.Profile
	for _, p := range list {
		if p.Name == ref {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return models.Profile{}, fmt.Errorf("profile %q: %w", ref, storage.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return models.Profile{}, fmt.Errorf("%d profiles are named %q, use the id instead", len(matches), ref)
	}
}

// parseDateOr parses s, or returns fallback when s is empty.
func parseDateOr(s string, fallback models.Date) (models.Date, error) {
	if s == "" {
		return fallback, nil
	}
	return models.ParseDate(s)
}

// confirm asks a yes/no question; anything but y or yes declines.
func (c *Context) confirm(question string) bool {
	fmt.Fprintf(c.Out, "%s [y/N]: ", question)
	reader := bufio.NewReader(c.In)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
