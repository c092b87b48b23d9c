package cli

import (
	"fmt"
)

// versioned is implemented by stores that track their schema version.
type versioned interface {
	SchemaVersion() (current, latest uint, err error)
}

type InitCmd struct{}

func (cmd *InitCmd) Run(ctx *Context) error {
	if err := ctx.guard(); err != nil {
		return err
	}
	if err := ctx.Provider.Init(ctx.context()); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	fmt.Fprintf(ctx.Out, "Initialized %s storage at: %s\n", ctx.Config.Backend, ctx.Config.Describe())
	return nil
}

type MigrateCmd struct{}

func (cmd *MigrateCmd) Run(ctx *Context) error {
	if err := ctx.guard(); err != nil {
		return err
	}
	v, ok := ctx.Provider.(versioned)
	if !ok {
		return fmt.Errorf("%s storage does not support migrations", ctx.Config.Backend)
	}

	before, _, err := v.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if err := ctx.Provider.Init(ctx.context()); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	after, _, err := v.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if before == after {
		fmt.Fprintf(ctx.Out, "Database schema is up to date (version %d)\n", after)
		return nil
	}
	fmt.Fprintf(ctx.Out, "Migrated database schema from version %d to %d\n", before, after)
	return nil
}
