package cmd

import (
	"encoding/json"
	"fmt"

	"beads/internal/queries"

	"github.com/spf13/cobra"
)

func newQueryCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Manage the saved-query catalog (queries.jsonl)",
	}
	cmd.AddCommand(newQuerySaveCmd(provider))
	cmd.AddCommand(newQueryListCmd(provider))
	cmd.AddCommand(newQueryRemoveCmd(provider))
	cmd.AddCommand(newQueryRunCmd(provider))
	return cmd
}

func newQuerySaveCmd(provider *AppProvider) *cobra.Command {
	var (
		status        string
		typeFlag      string
		assignee      string
		label         string
		parent        string
		titleContains string
		minPriority   int
		maxPriority   int
		limit         int
		sortField     string
		desc          bool
	)

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save the given filter flags as a named query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			catalog, err := queries.Load(app.WS.Paths().Queries)
			if err != nil {
				return err
			}

			q := &queries.SavedQuery{
				Name:           args[0],
				CreatedAt:      app.Now(),
				CreatedBy:      resolveActor(app),
				Status:         status,
				IssueType:      typeFlag,
				Assignee:       assignee,
				Label:          label,
				ParentID:       parent,
				TitleContains:  titleContains,
				Limit:          limit,
				SortField:      sortField,
				SortDescending: desc,
			}
			if cmd.Flags().Changed("priority-min") {
				q.MinPriority = &minPriority
			}
			if cmd.Flags().Changed("priority-max") {
				q.MaxPriority = &maxPriority
			}

			catalog.Put(q)
			if err := catalog.Save(app.WS.Paths().Queries); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s Saved query %q\n", app.SuccessColor("+"), q.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Status clause")
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Issue type clause")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Assignee clause")
	cmd.Flags().StringVarP(&label, "label", "l", "", "Label clause")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent issue clause")
	cmd.Flags().StringVar(&titleContains, "title-contains", "", "Title substring clause")
	cmd.Flags().IntVar(&minPriority, "priority-min", 0, "Minimum priority clause")
	cmd.Flags().IntVar(&maxPriority, "priority-max", 4, "Maximum priority clause")
	cmd.Flags().IntVar(&limit, "limit", 0, "Result limit")
	cmd.Flags().StringVar(&sortField, "sort", "", "Sort field (created_at, updated_at, priority)")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")

	return cmd
}

func newQueryListCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the saved queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			catalog, err := queries.Load(app.WS.Paths().Queries)
			if err != nil {
				return err
			}
			names := catalog.Names()
			if app.JSON {
				all := make([]*queries.SavedQuery, 0, len(names))
				for _, name := range names {
					all = append(all, catalog.Get(name))
				}
				return json.NewEncoder(app.Out).Encode(all)
			}
			if len(names) == 0 {
				fmt.Fprintln(app.Out, "No saved queries.")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(app.Out, name)
			}
			return nil
		},
	}
}

func newQueryRemoveCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a saved query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			catalog, err := queries.Load(app.WS.Paths().Queries)
			if err != nil {
				return err
			}
			if !catalog.Delete(args[0]) {
				return fmt.Errorf("no saved query named %q", args[0])
			}
			if err := catalog.Save(app.WS.Paths().Queries); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s Removed query %q\n", app.SuccessColor("-"), args[0])
			return nil
		},
	}
}

func newQueryRunCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "List the issues matching a saved query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			catalog, err := queries.Load(app.WS.Paths().Queries)
			if err != nil {
				return err
			}
			q := catalog.Get(args[0])
			if q == nil {
				return fmt.Errorf("no saved query named %q", args[0])
			}

			issues := app.Store().List(q.Filter(), app.Now())
			if app.JSON {
				return json.NewEncoder(app.Out).Encode(issues)
			}
			if len(issues) == 0 {
				fmt.Fprintln(app.Out, "No issues found.")
				return nil
			}
			for _, iss := range issues {
				fmt.Fprintf(app.Out, "%s  [%s] [%d] %s\n", iss.ID, iss.Status, iss.Priority, iss.Title)
			}
			return nil
		},
	}
}
