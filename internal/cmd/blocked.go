package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newBlockedCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocked",
		Short: "List open issues with at least one unresolved blocking dependency",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			blocked := app.Graph().Blocked()

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(blocked)
			}
			if len(blocked) == 0 {
				fmt.Fprintln(app.Out, "No blocked issues found.")
				return nil
			}
			fmt.Fprintf(app.Out, "Blocked issues (%d):\n\n", len(blocked))
			for _, iss := range blocked {
				deps := app.Graph().Dependencies(iss.ID)
				fmt.Fprintf(app.Out, "  %s  [%d] %s  (blocked by %v)\n", iss.ID, iss.Priority, iss.Title, deps)
			}
			return nil
		},
	}
	return cmd
}
