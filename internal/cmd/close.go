package cmd

import (
	"fmt"

	"beads/internal/issue"

	"github.com/spf13/cobra"
)

func newCloseCmd(provider *AppProvider) *cobra.Command {
	var (
		reason  string
		version uint64
	)

	cmd := &cobra.Command{
		Use:   "close <id>...",
		Short: "Close one or more issues",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			var expectedVersion *uint64
			if cmd.Flags().Changed("version") {
				if len(args) > 1 {
					return fmt.Errorf("--version only applies when closing a single issue")
				}
				expectedVersion = &version
			}

			for _, id := range args {
				updated, err := app.Store().Update(id, expectedVersion, func(iss *issue.Issue) error {
					iss.Status = issue.StatusClosed
					if reason != "" {
						iss.CloseReason = reason
					}
					return nil
				})
				if err != nil {
					return fmt.Errorf("closing %s: %w", id, err)
				}
				fmt.Fprintf(app.Out, "%s Closed %s\n", app.SuccessColor("*"), updated.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded on the closed issue")
	cmd.Flags().Uint64Var(&version, "version", 0, "Expected current version, for optimistic concurrency")
	return cmd
}

func newReopenCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <id>",
		Short: "Reopen a closed issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			updated, err := app.Store().Update(args[0], nil, func(iss *issue.Issue) error {
				iss.Status = issue.StatusOpen
				iss.CloseReason = ""
				return nil
			})
			if err != nil {
				return fmt.Errorf("reopening %s: %w", args[0], err)
			}
			fmt.Fprintf(app.Out, "%s Reopened %s\n", app.SuccessColor("*"), updated.ID)
			return nil
		},
	}
}
