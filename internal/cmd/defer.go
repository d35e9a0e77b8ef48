package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDeferCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defer <id> <duration>",
		Short: "Hide an issue from ready/blocked until the given duration has elapsed",
		Long: `defer sets defer_until to now + duration (e.g. "24h", "72h"); the issue
is excluded from ready() and blocked() until that time passes.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			d, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("parsing duration %q: %w", args[1], err)
			}
			until := app.Now() + int64(d/time.Second)
			updated, err := app.Store().Defer(args[0], until, nil)
			if err != nil {
				return fmt.Errorf("deferring %s: %w", args[0], err)
			}
			fmt.Fprintf(app.Out, "%s Deferred %s until %s\n", app.SuccessColor("*"), updated.ID, time.Unix(until, 0).UTC().Format(time.RFC3339))
			return nil
		},
	}
	return cmd
}

func newUndeferCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undefer <id>",
		Short: "Clear an issue's defer_until, making it immediately eligible again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			updated, err := app.Store().Undefer(args[0], nil)
			if err != nil {
				return fmt.Errorf("undeferring %s: %w", args[0], err)
			}
			fmt.Fprintf(app.Out, "%s Undeferred %s\n", app.SuccessColor("*"), updated.ID)
			return nil
		},
	}
	return cmd
}
