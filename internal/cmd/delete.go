package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(provider *AppProvider) *cobra.Command {
	var (
		hard    bool
		cascade bool
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an issue (soft tombstone by default)",
		Long: `Delete an issue. By default the issue is tombstoned: it stays in the
snapshot but disappears from listings until a compact. --hard removes the
record outright; --cascade extends the delete to everything that depends on
it via blocks or parent_child edges.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			if err := app.Store().Delete(args[0], cascade, hard); err != nil {
				return fmt.Errorf("deleting %s: %w", args[0], err)
			}
			verb := "Tombstoned"
			if hard {
				verb = "Deleted"
			}
			fmt.Fprintf(app.Out, "%s %s %s\n", app.SuccessColor("-"), verb, args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&hard, "hard", false, "Remove the record outright instead of tombstoning")
	cmd.Flags().BoolVar(&cascade, "cascade", false, "Also delete issues depending on this one")
	return cmd
}
