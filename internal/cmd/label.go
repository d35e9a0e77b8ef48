package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLabelCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Manage labels on an issue",
	}
	cmd.AddCommand(newLabelAddCmd(provider))
	cmd.AddCommand(newLabelRemoveCmd(provider))
	return cmd
}

func newLabelAddCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "add <id> <label>",
		Short: "Add a label to an issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			updated, err := app.Store().LabelAdd(args[0], args[1])
			if err != nil {
				return fmt.Errorf("adding label to %s: %w", args[0], err)
			}
			fmt.Fprintf(app.Out, "%s Added label %q to %s\n", app.SuccessColor("+"), args[1], updated.ID)
			return nil
		},
	}
}

func newLabelRemoveCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id> <label>",
		Short: "Remove a label from an issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			updated, err := app.Store().LabelRemove(args[0], args[1])
			if err != nil {
				return fmt.Errorf("removing label from %s: %w", args[0], err)
			}
			fmt.Fprintf(app.Out, "%s Removed label %q from %s\n", app.SuccessColor("-"), args[1], updated.ID)
			return nil
		},
	}
}
