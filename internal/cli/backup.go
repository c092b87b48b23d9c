package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/GitSaviour/jaaptracker/internal/backup"
	"github.com/GitSaviour/jaaptracker/internal/lock"
	"github.com/GitSaviour/jaaptracker/internal/logger"
	"github.com/GitSaviour/jaaptracker/internal/tracker"
)

// trackerExporter lets the backup manager export through the tracker.
type trackerExporter struct {
	ctx *Context
}

func (e trackerExporter) Export(_ context.Context, w io.Writer) error {
	_, err := e.ctx.run(func(t *tracker.Tracker) error { return t.Export(w) })
	return err
}

type ExportCmd struct {
	Out string `short:"o" help:"Write the backup to this file ('-' for stdout) instead of the backup directory."`
}

func (cmd *ExportCmd) Run(ctx *Context) error {
	exp := trackerExporter{ctx: ctx}

	switch cmd.Out {
	case "":
		path, err := ctx.Backups.Create(ctx.context(), exp)
		if err != nil {
			return err
		}
		fmt.Fprintf(ctx.Out, "Backup written to: %s\n", path)
		return nil
	case "-":
		return exp.Export(ctx.context(), ctx.Out)
	}

	f, err := os.Create(cmd.Out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", cmd.Out, err)
	}
	exportErr := exp.Export(ctx.context(), f)
	closeErr := f.Close()
	if err := errors.Join(exportErr, closeErr); err != nil {
		_ = os.Remove(cmd.Out)
		return err
	}
	fmt.Fprintf(ctx.Out, "Backup written to: %s\n", cmd.Out)
	return nil
}

type ImportCmd struct {
	Backup string `arg:"" help:"Backup file path, managed backup name, or 'latest'."`
	Yes    bool   `short:"y" help:"Skip confirmation."`
}

func (cmd *ImportCmd) Run(ctx *Context) error {
	path, err := ctx.Backups.Resolve(cmd.Backup)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "Importing from: %s\n", path)
	fmt.Fprintln(ctx.Out, "WARNING: this replaces every profile and log in the current database.")
	if !cmd.Yes && !ctx.confirm("Continue?") {
		fmt.Fprintln(ctx.Out, "Import cancelled.")
		return nil
	}

	l, err := lock.Acquire(ctx.Config.DataDir, "import")
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Release(); err != nil {
			logger.Warn("Failed to release lock", "error", err)
		}
	}()

	safety, err := ctx.Backups.CreateSafety(ctx.context(), trackerExporter{ctx: ctx})
	switch {
	case errors.Is(err, backup.ErrEmptyDataset):
		logger.Debug("Nothing to back up before import")
	case err != nil:
		return fmt.Errorf("failed to back up current data: %w", err)
	default:
		fmt.Fprintf(ctx.Out, "Current data saved to: %s\n", safety)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	notices, err := ctx.run(func(t *tracker.Tracker) error { return t.Import(f) })
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, lastMessage(notices, "Import complete"))
	return nil
}

type BackupListCmd struct{}

func (cmd *BackupListCmd) Run(ctx *Context) error {
	backups, err := ctx.Backups.ListBackups()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		fmt.Fprintln(ctx.Out, "No backups found.")
		return nil
	}

	fmt.Fprintf(ctx.Out, "Backups in %s:\n", ctx.Backups.GetBackupDir())
	for _, b := range backups {
		fmt.Fprintf(ctx.Out, "  %s  %s (%.1f KB)\n", b.Timestamp.Format("2006-01-02 15:04:05"), b.Name, float64(b.Size)/1024)
	}
	return nil
}

type PruneCmd struct{}

func (cmd *PruneCmd) Run(ctx *Context) error {
	if err := ctx.guard(); err != nil {
		return err
	}
	notices, err := ctx.run(func(t *tracker.Tracker) error { return t.PruneOrphans() })
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, lastMessage(notices, "Prune complete"))
	return nil
}
