package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/GitSaviour/jaaptracker/internal/cli"
	"github.com/GitSaviour/jaaptracker/internal/config"
	"github.com/GitSaviour/jaaptracker/internal/constants"
	"github.com/GitSaviour/jaaptracker/internal/errors"
	"github.com/GitSaviour/jaaptracker/internal/logger"
)

var CLI struct {
	Version   kong.VersionFlag
	Config    string `help:"SQLite database path or PostgreSQL connection string (no password)."`
	Integrity string `help:"Referential integrity mode: enforced or soft."`
	Debug     bool   `help:"Log debug output to stderr."`
	EnvFile   string `help:"Dotenv file to read settings from." name:"env-file" type:"path"`

	Init    cli.InitCmd    `cmd:"" help:"Initialize jaaptracker storage."`
	Migrate cli.MigrateCmd `cmd:"" help:"Apply pending database migrations."`
	Doctor  cli.DoctorCmd  `cmd:"" help:"Run health checks."`

	Profile struct {
		Add    cli.ProfileAddCmd    `cmd:"" help:"Create a profile."`
		List   cli.ProfileListCmd   `cmd:"" help:"List profiles."`
		Delete cli.ProfileDeleteCmd `cmd:"" help:"Delete a profile and its logs."`
	} `cmd:"" help:"Manage profiles."`

	Log struct {
		Add    cli.LogAddCmd    `cmd:"" help:"Add to a profile's count for a day."`
		Edit   cli.LogEditCmd   `cmd:"" help:"Overwrite a log entry's count."`
		Delete cli.LogDeleteCmd `cmd:"" help:"Delete a log entry."`
		List   cli.LogListCmd   `cmd:"" help:"List a profile's logs, newest first."`
	} `cmd:"" help:"Manage daily logs."`

	Sum cli.SumCmd `cmd:"" help:"Sum a profile's counts over a date range."`

	Export cli.ExportCmd `cmd:"" help:"Export all data to a JSON backup."`
	Import cli.ImportCmd `cmd:"" help:"Replace all data with a JSON backup."`
	Backup struct {
		List cli.BackupListCmd `cmd:"" help:"List managed backups."`
	} `cmd:"" help:"Inspect managed backups."`
	Prune cli.PruneCmd `cmd:"" help:"Remove logs whose profile no longer exists."`

	Settings struct {
		Show            cli.ConfigShowCmd            `cmd:"" help:"Show the resolved configuration."`
		SetConnection   cli.ConfigSetConnectionCmd   `cmd:"" help:"Store a PostgreSQL connection string in the OS keyring."`
		ClearConnection cli.ConfigClearConnectionCmd `cmd:"" help:"Remove the stored connection string."`
	} `cmd:"" name:"config" help:"Manage configuration."`
}

// storeless commands run without loading the database.
var storeless = []string{"init", "migrate", "doctor", "config", "backup"}

func needsStore(command string) bool {
	for _, prefix := range storeless {
		if command == prefix || strings.HasPrefix(command, prefix+" ") {
			return false
		}
	}
	return true
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Count things per day, per profile."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	cfg, err := config.Load(config.Overrides{
		Location:  CLI.Config,
		Integrity: CLI.Integrity,
		Debug:     CLI.Debug,
		EnvFile:   CLI.EnvFile,
	})
	if err != nil {
		errors.Fatal(err)
	}

	if err := logger.Init(logger.Config{
		Debug: cfg.Debug,
		Dir:   filepath.Join(cfg.DataDir, constants.LogDirName),
	}); err != nil {
		errors.Fatalf("failed to initialize logger: %v", err)
	}

	command := kctx.Command()
	// doctor reports configuration problems itself
	if command != "doctor" {
		if err := cfg.Validate(); err != nil {
			errors.Fatal(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	appCtx := cli.NewContext(ctx, cfg)
	if needsStore(command) {
		if err := appCtx.Open(); err != nil {
			errors.Fatal(err)
		}
	}
	logger.Debug("Running command", "command", command, "backend", cfg.Backend, "store", cfg.Describe())

	err = kctx.Run(appCtx)
	if cerr := appCtx.Close(); cerr != nil {
		logger.Warn("Failed to close store", "error", cerr)
	}
	if err != nil {
		errors.Fatal(err)
	}
}
