package cmd

import (
	"encoding/json"
	"fmt"

	"beads/internal/issue"
	"beads/internal/store"

	"github.com/spf13/cobra"
)

func newListCmd(provider *AppProvider) *cobra.Command {
	var (
		statusFlag  string
		typeFlag    string
		assignee    string
		label       string
		labelAny    []string
		parent      string
		titleSubstr string
		descSubstr  string
		notesSubstr string
		minPriority int
		maxPriority int
		overdue     bool
		limit       int
		includeTomb bool
		deferred    bool
		sortField   string
		sortDesc    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues matching a filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			filter := &store.Filter{
				Limit:             limit,
				IncludeTombstones: includeTomb,
				IncludeDeferred:   deferred,
				LabelAny:          labelAny,
				SortField:         sortField,
				SortDescending:    sortDesc,
			}
			if statusFlag != "" {
				st := issue.ParseStatus(statusFlag)
				filter.Status = &st
			}
			if typeFlag != "" {
				it := issue.IssueType(typeFlag)
				filter.IssueType = &it
			}
			if assignee != "" {
				filter.Assignee = &assignee
			}
			if label != "" {
				filter.Label = &label
			}
			if parent != "" {
				filter.ParentID = &parent
			}
			if titleSubstr != "" {
				filter.TitleContains = &titleSubstr
			}
			if descSubstr != "" {
				filter.DescriptionContains = &descSubstr
			}
			if notesSubstr != "" {
				filter.NotesContains = &notesSubstr
			}
			if cmd.Flags().Changed("priority-min") {
				p := issue.Priority(minPriority)
				filter.MinPriority = &p
			}
			if cmd.Flags().Changed("priority-max") {
				p := issue.Priority(maxPriority)
				filter.MaxPriority = &p
			}

			now := app.Now()
			if overdue {
				filter.OverdueAsOf = &now
			}

			issues := app.Store().List(filter, now)

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

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status")
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Filter by issue type")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Filter by assignee")
	cmd.Flags().StringVarP(&label, "label", "l", "", "Filter by label")
	cmd.Flags().StringSliceVar(&labelAny, "label-any", nil, "Match issues carrying any of these labels")
	cmd.Flags().StringVar(&parent, "parent", "", "Filter by parent issue id")
	cmd.Flags().StringVar(&titleSubstr, "title-contains", "", "Filter by title substring")
	cmd.Flags().StringVar(&descSubstr, "description-contains", "", "Filter by description substring")
	cmd.Flags().StringVar(&notesSubstr, "notes-contains", "", "Filter by notes substring")
	cmd.Flags().IntVar(&minPriority, "priority-min", 0, "Minimum priority (inclusive)")
	cmd.Flags().IntVar(&maxPriority, "priority-max", 4, "Maximum priority (inclusive)")
	cmd.Flags().BoolVar(&overdue, "overdue", false, "Only issues whose due date has passed")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of issues to show")
	cmd.Flags().BoolVar(&includeTomb, "include-tombstones", false, "Include tombstoned issues")
	cmd.Flags().BoolVar(&deferred, "include-deferred", false, "Include deferred issues")
	cmd.Flags().StringVar(&sortField, "sort", "created_at", "Sort field: created_at, updated_at, priority")
	cmd.Flags().BoolVar(&sortDesc, "desc", false, "Sort descending")

	return cmd
}
