package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/GitSaviour/jaaptracker/internal/config"
	"github.com/GitSaviour/jaaptracker/internal/constants"
	"github.com/GitSaviour/jaaptracker/internal/keyring"
	"github.com/GitSaviour/jaaptracker/internal/lock"
	"github.com/GitSaviour/jaaptracker/internal/storage"
)

// errWarning marks a check that should be looked at but does not fail doctor.
var errWarning = errors.New("warning")

type check struct {
	name string
	// needsStore skips the check when the database could not be loaded.
	needsStore bool
	run        func(ctx *Context) error
}

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *Context) error {
	fmt.Fprintln(ctx.Out, "Running diagnostics...")
	fmt.Fprintln(ctx.Out)

	checks := []check{
		{name: "Configuration", run: checkConfig},
		{name: "Database reachable", run: checkDBReachable},
		{name: "Schema version", run: checkSchemaVersion},
		{name: "Log integrity", needsStore: true, run: checkOrphans},
		{name: "Backups present", run: checkBackupsPresent},
		{name: "Data lock", run: checkLock},
		{name: "Keyring", run: checkKeyring},
		{name: "Clock/timezone", run: checkClockTimezone},
	}

	failed := false
	reachable := false
	for _, c := range checks {
		if c.needsStore && !reachable {
			fmt.Fprintf(ctx.Out, "⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		switch {
		case err == nil:
			fmt.Fprintf(ctx.Out, "✓ %s: OK\n", c.name)
			if c.name == "Database reachable" {
				reachable = true
			}
		case errors.Is(err, errWarning):
			fmt.Fprintf(ctx.Out, "⚠ %s: WARNING\n", c.name)
			fmt.Fprintf(ctx.Out, "   %v\n", err)
		default:
			fmt.Fprintf(ctx.Out, "❌ %s: FAIL\n", c.name)
			fmt.Fprintf(ctx.Out, "   Error: %v\n", err)
			failed = true
		}
	}

	fmt.Fprintln(ctx.Out)
	if failed {
		fmt.Fprintln(ctx.Out, "Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	fmt.Fprintln(ctx.Out, "All diagnostics passed!")
	return nil
}

func warn(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errWarning, fmt.Sprintf(format, args...))
}

func checkConfig(ctx *Context) error {
	if err := ctx.Config.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "   %s store at %s (from %s)\n", ctx.Config.Backend, ctx.Config.Describe(), ctx.Config.Source)
	return nil
}

func checkDBReachable(ctx *Context) error {
	if ctx.Store != nil {
		return nil
	}
	if err := ctx.Provider.Load(ctx.context()); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	return nil
}

func checkSchemaVersion(ctx *Context) error {
	v, ok := ctx.Provider.(versioned)
	if !ok {
		return nil
	}
	current, latest, err := v.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	switch {
	case current == 0:
		return storage.ErrNotInitialized
	case current > latest:
		return fmt.Errorf("%w: version %d, supported up to %d", storage.ErrSchemaTooNew, current, latest)
	case current < latest:
		return fmt.Errorf("%w: version %d, latest is %d", storage.ErrSchemaOutdated, current, latest)
	}
	return nil
}

// checkOrphans counts log entries whose profile is gone.
func checkOrphans(ctx *Context) error {
	profiles, err := ctx.Provider.ListAllProfilesRaw(ctx.context())
	if err != nil {
		return err
	}
	logs, err := ctx.Provider.ListAllLogsRaw(ctx.context())
	if err != nil {
		return err
	}

	known := make(map[int64]bool, len(profiles))
	for _, p := range profiles {
		known[p.ID] = true
	}
	orphans := 0
	for _, l := range logs {
		if !known[l.ProfileID] {
			orphans++
		}
	}
	if orphans == 0 {
		return nil
	}

	msg := fmt.Sprintf("%d log entries reference missing profiles, run 'jaaptracker prune'", orphans)
	if ctx.Provider.IntegrityMode() == storage.IntegritySoft {
		return warn("%s", msg)
	}
	return errors.New(msg)
}

func checkBackupsPresent(ctx *Context) error {
	backups, err := ctx.Backups.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return warn("no backups found - consider creating one with 'jaaptracker export'")
	}
	return nil
}

func checkLock(ctx *Context) error {
	if err := lock.Check(ctx.Config.DataDir); err != nil {
		return warn("%v", err)
	}
	return nil
}

func checkKeyring(ctx *Context) error {
	if !keyring.Available() {
		if ctx.Config.Source == config.SourceKeyring {
			return errors.New("connection is configured in the keyring but the keyring is unavailable")
		}
		return warn("OS keyring is not available; use %s for PostgreSQL passwords", constants.EnvDBConnection)
	}
	return nil
}

func checkClockTimezone(ctx *Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	// logs are keyed by the local calendar day
	if now.Location() == time.UTC {
		fmt.Fprintln(ctx.Out, "   Note: timezone is UTC, days roll over at UTC midnight")
	}
	return nil
}
