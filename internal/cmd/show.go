package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newShowCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the full detail of an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			iss, err := app.Store().Get(args[0])
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(iss)
			}

			fmt.Fprintf(app.Out, "%s  %s\n", iss.ID, iss.Title)
			fmt.Fprintf(app.Out, "  Status:      %s\n", iss.Status)
			fmt.Fprintf(app.Out, "  Priority:    %d\n", iss.Priority)
			fmt.Fprintf(app.Out, "  Type:        %s\n", iss.IssueType)
			if iss.Assignee != "" {
				fmt.Fprintf(app.Out, "  Assignee:    %s\n", iss.Assignee)
			}
			if iss.Description != "" {
				fmt.Fprintf(app.Out, "  Description: %s\n", iss.Description)
			}
			if len(iss.Labels) > 0 {
				fmt.Fprintf(app.Out, "  Labels:      %v\n", iss.Labels)
			}
			for _, dep := range iss.Dependencies {
				fmt.Fprintf(app.Out, "  %s -> %s (%s)\n", iss.ID, dep.DependsOnID, dep.DepType)
			}
			fmt.Fprintf(app.Out, "  Version:     %d\n", iss.Version)
			return nil
		},
	}
	return cmd
}
