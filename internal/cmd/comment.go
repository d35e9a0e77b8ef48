package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCommentCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Manage comments on an issue",
	}
	cmd.AddCommand(newCommentAddCmd(provider))
	return cmd
}

func newCommentAddCmd(provider *AppProvider) *cobra.Command {
	var authorFlag string
	cmd := &cobra.Command{
		Use:   "add <id> <text>",
		Short: "Add a comment to an issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			author := authorFlag
			if author == "" {
				author = resolveActor(app)
			}
			updated, err := app.Store().CommentAdd(args[0], author, args[1], app.Now())
			if err != nil {
				return fmt.Errorf("commenting on %s: %w", args[0], err)
			}
			fmt.Fprintf(app.Out, "%s Added comment to %s\n", app.SuccessColor("+"), updated.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&authorFlag, "author", "", "Override comment author")
	return cmd
}
