package cli

import (
	"fmt"

	"github.com/GitSaviour/jaaptracker/internal/models"
	"github.com/GitSaviour/jaaptracker/internal/tracker"
)

type LogAddCmd struct {
	Profile string `arg:"" help:"Profile id or name."`
	Count   int64  `arg:"" help:"Amount to add."`
	Date    string `help:"Day to log (YYYY-MM-DD). Defaults to today."`
}

func (cmd *LogAddCmd) Run(ctx *Context) error {
	if err := ctx.guard(); err != nil {
		return err
	}
	date, err := parseDateOr(cmd.Date, models.Today())
	if err != nil {
		return err
	}
	p, err := ctx.resolveProfile(cmd.Profile)
	if err != nil {
		return err
	}
	if _, err := ctx.run(func(t *tracker.Tracker) error { return t.AddCount(p.ID, cmd.Count, date) }); err != nil {
		return err
	}

	entry, err := ctx.Store.GetLogForDate(ctx.context(), p.ID, date)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Added %d to %s on %s (total %d)\n", cmd.Count, p.Name, date, entry.Count)
	return nil
}

type LogEditCmd struct {
	ID    int64 `arg:"" help:"Log entry id."`
	Count int64 `arg:"" help:"New count."`
}

func (cmd *LogEditCmd) Run(ctx *Context) error {
	if err := ctx.guard(); err != nil {
		return err
	}
	if _, err := ctx.run(func(t *tracker.Tracker) error { return t.EditCount(cmd.ID, cmd.Count) }); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Set log %d to %d\n", cmd.ID, cmd.Count)
	return nil
}

type LogDeleteCmd struct {
	ID int64 `arg:"" help:"Log entry id."`
}

func (cmd *LogDeleteCmd) Run(ctx *Context) error {
	if err := ctx.guard(); err != nil {
		return err
	}
	if _, err := ctx.run(func(t *tracker.Tracker) error { return t.DeleteLog(cmd.ID) }); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Deleted log %d\n", cmd.ID)
	return nil
}

type LogListCmd struct {
	Profile string `arg:"" help:"Profile id or name."`
}

func (cmd *LogListCmd) Run(ctx *Context) error {
	p, err := ctx.resolveProfile(cmd.Profile)
	if err != nil {
		return err
	}
	entries, err := ctx.logsFor(p.ID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(ctx.Out, "No logs for %s.\n", p.Name)
		return nil
	}

	fmt.Fprintf(ctx.Out, "Logs for %s:\n", p.Name)
	for _, e := range entries {
		fmt.Fprintf(ctx.Out, "%6d  %s  %d\n", e.ID, e.Date, e.Count)
	}
	return nil
}

type SumCmd struct {
	Profile string `arg:"" help:"Profile id or name."`
	From    string `help:"First day (YYYY-MM-DD). Defaults to the first of this month."`
	To      string `help:"Last day (YYYY-MM-DD). Defaults to today."`
}

func (cmd *SumCmd) Run(ctx *Context) error {
	today := models.Today()
	from, err := parseDateOr(cmd.From, models.NewDate(today.Year, today.Month, 1))
	if err != nil {
		return err
	}
	to, err := parseDateOr(cmd.To, today)
	if err != nil {
		return err
	}
	p, err := ctx.resolveProfile(cmd.Profile)
	if err != nil {
		return err
	}

	if err := ctx.Tracker.SelectProfile(p.ID); err != nil {
		return err
	}
	if _, err := ctx.run(func(t *tracker.Tracker) error { return t.ComputeRangeSum(p.ID, from, to) }); err != nil {
		return err
	}
	sum := ctx.Tracker.RangeSum().Get()
	if sum == nil {
		return errSnapshotTimeout
	}
	fmt.Fprintf(ctx.Out, "%s: %d from %s to %s\n", p.Name, *sum, from, to)
	return nil
}
