package cmd

import (
	"fmt"

	"beads/internal/issue"

	"github.com/spf13/cobra"
)

func newUpdateCmd(provider *AppProvider) *cobra.Command {
	var (
		title       string
		description string
		design      string
		acceptance  string
		status      string
		priority    string
		assignee    string
		notes       string
		dueAt       string
		estimate    int32
		version     uint64
		closeReason string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields on an existing issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			id := args[0]

			var expectedVersion *uint64
			if cmd.Flags().Changed("version") {
				expectedVersion = &version
			}

			updated, err := app.Store().Update(id, expectedVersion, func(iss *issue.Issue) error {
				if cmd.Flags().Changed("title") {
					iss.Title = title
				}
				if cmd.Flags().Changed("description") {
					iss.Description = description
				}
				if cmd.Flags().Changed("status") {
					iss.Status = issue.ParseStatus(status)
				}
				if cmd.Flags().Changed("priority") {
					p, err := parsePriorityArg(priority)
					if err != nil {
						return err
					}
					iss.Priority = p
				}
				if cmd.Flags().Changed("assignee") {
					iss.Assignee = assignee
				}
				if cmd.Flags().Changed("notes") {
					iss.Notes = notes
				}
				if cmd.Flags().Changed("design") {
					iss.Design = design
				}
				if cmd.Flags().Changed("acceptance") {
					iss.AcceptanceCrit = acceptance
				}
				if cmd.Flags().Changed("due-at") {
					due, err := parsePtrInt64(dueAt)
					if err != nil {
						return err
					}
					iss.DueAt = due
				}
				if cmd.Flags().Changed("estimate") {
					iss.EstimatedMin = &estimate
				}
				if cmd.Flags().Changed("close-reason") {
					iss.CloseReason = closeReason
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("updating %s: %w", id, err)
			}

			fmt.Fprintf(app.Out, "%s Updated issue %s (version %d)\n", app.SuccessColor("*"), updated.ID, updated.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&status, "status", "", "New status (open, in_progress, blocked, deferred, closed, or a custom name)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "New priority (0-4)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "New assignee")
	cmd.Flags().StringVar(&notes, "notes", "", "New notes")
	cmd.Flags().StringVar(&design, "design", "", "New design notes")
	cmd.Flags().StringVar(&acceptance, "acceptance", "", "New acceptance criteria")
	cmd.Flags().StringVar(&dueAt, "due-at", "", "Due timestamp, unix seconds (empty to clear)")
	cmd.Flags().Int32Var(&estimate, "estimate", 0, "Estimated minutes")
	cmd.Flags().StringVar(&closeReason, "close-reason", "", "Reason recorded when closing")
	cmd.Flags().Uint64Var(&version, "version", 0, "Expected current version, for optimistic concurrency")

	return cmd
}
