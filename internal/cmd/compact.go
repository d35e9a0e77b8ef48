package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCompactCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Rewrite the snapshot, dropping tombstoned issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			count, err := app.WS.Compact()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s Compacted workspace: %d live issues remain\n", app.SuccessColor("*"), count)
			return nil
		},
	}
	return cmd
}
