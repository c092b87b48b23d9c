package cli

import (
	"fmt"

	"github.com/GitSaviour/jaaptracker/internal/tracker"
)

type ProfileAddCmd struct {
	Name string `arg:"" help:"Profile name."`
}

func (cmd *ProfileAddCmd) Run(ctx *Context) error {
	if err := ctx.guard(); err != nil {
		return err
	}
	if _, err := ctx.run(func(t *tracker.Tracker) error { return t.CreateProfile(cmd.Name) }); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Created profile %q\n", cmd.Name)
	return nil
}

type ProfileListCmd struct{}

func (cmd *ProfileListCmd) Run(ctx *Context) error {
	list, err := ctx.profiles()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(ctx.Out, "No profiles yet. Add one with 'jaaptracker profile add <name>'.")
		return nil
	}
	for _, p := range list {
		fmt.Fprintf(ctx.Out, "%4d  %s\n", p.ID, p.Name)
	}
	return nil
}

type ProfileDeleteCmd struct {
	Profile string `arg:"" help:"Profile id or name."`
	Yes     bool   `short:"y" help:"Skip confirmation."`
}

func (cmd *ProfileDeleteCmd) Run(ctx *Context) error {
	if err := ctx.guard(); err != nil {
		return err
	}
	p, err := ctx.resolveProfile(cmd.Profile)
	if err != nil {
		return err
	}
	if !cmd.Yes && !ctx.confirm(fmt.Sprintf("Delete profile %q and its logs?", p.Name)) {
		fmt.Fprintln(ctx.Out, "Cancelled.")
		return nil
	}
	if _, err := ctx.run(func(t *tracker.Tracker) error { return t.DeleteProfile(p.ID) }); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Deleted profile %q\n", p.Name)
	return nil
}
