package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newReadyCmd(provider *AppProvider) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ready",
		Short: "List issues that are ready to work on",
		Long: `List open (or in-progress) issues with no unresolved "blocks" or
"parent_child" dependency — the work that can start right now.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ready := app.Graph().Ready()
			if limit > 0 && len(ready) > limit {
				ready = ready[:limit]
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(ready)
			}
			if len(ready) == 0 {
				fmt.Fprintln(app.Out, "No ready issues found.")
				return nil
			}
			fmt.Fprintf(app.Out, "Ready issues (%d):\n\n", len(ready))
			for _, iss := range ready {
				fmt.Fprintf(app.Out, "  %s  [%d] %s\n", iss.ID, iss.Priority, iss.Title)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of issues to show")
	return cmd
}
