package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newCountCmd(provider *AppProvider) *cobra.Command {
	var groupBy string

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count issues, optionally grouped by a field",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			if groupBy == "" {
				if app.JSON {
					fmt.Fprintf(app.Out, "{\"count\":%d}\n", app.Store().Count())
					return nil
				}
				fmt.Fprintln(app.Out, app.Store().Count())
				return nil
			}

			counts, err := app.Store().CountBy(groupBy)
			if err != nil {
				return err
			}
			if app.JSON {
				return json.NewEncoder(app.Out).Encode(counts)
			}
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				label := k
				if label == "" {
					label = "(none)"
				}
				fmt.Fprintf(app.Out, "%s\t%d\n", label, counts[k])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&groupBy, "by", "", "Group by field: status, priority, issue_type, assignee")
	return cmd
}
