package cli

import (
	"errors"
	"fmt"

	"github.com/GitSaviour/jaaptracker/internal/config"
	"github.com/GitSaviour/jaaptracker/internal/keyring"
	"github.com/GitSaviour/jaaptracker/internal/storage/postgres"
)

type ConfigShowCmd struct{}

func (cmd *ConfigShowCmd) Run(ctx *Context) error {
	c := ctx.Config
	fmt.Fprintf(ctx.Out, "Backend:     %s\n", c.Backend)
	fmt.Fprintf(ctx.Out, "Location:    %s\n", c.Describe())
	fmt.Fprintf(ctx.Out, "Source:      %s\n", c.Source)
	fmt.Fprintf(ctx.Out, "Integrity:   %s\n", c.Integrity)
	fmt.Fprintf(ctx.Out, "Data dir:    %s\n", c.DataDir)
	fmt.Fprintf(ctx.Out, "Backup dir:  %s (keeping %d)\n", c.BackupDir, c.MaxBackups)
	return nil
}

type ConfigSetConnectionCmd struct {
	Connection string `arg:"" help:"PostgreSQL connection string, password included."`
}

func (cmd *ConfigSetConnectionCmd) Run(ctx *Context) error {
	if !config.IsPostgres(cmd.Connection) {
		return fmt.Errorf("not a PostgreSQL connection string")
	}
	// the keyring is where a password belongs, so only structural errors count here
	if err := postgres.ValidateConnString(cmd.Connection); err != nil && !errors.Is(err, postgres.ErrEmbeddedCredentials) {
		return err
	}
	if err := keyring.Connection.Set(cmd.Connection); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Stored connection for %s in the OS keyring\n", postgres.Redact(cmd.Connection))
	return nil
}

type ConfigClearConnectionCmd struct{}

func (cmd *ConfigClearConnectionCmd) Run(ctx *Context) error {
	err := keyring.Connection.Delete()
	if errors.Is(err, keyring.ErrNotFound) {
		fmt.Fprintln(ctx.Out, "No connection stored in the OS keyring")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, "Removed connection from the OS keyring")
	return nil
}
