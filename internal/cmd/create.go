package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"beads/internal/idgen"
	"beads/internal/issue"

	"github.com/spf13/cobra"
)

func newCreateCmd(provider *AppProvider) *cobra.Command {
	var (
		typeFlag    string
		priority    string
		parent      string
		deps        []string
		labels      []string
		assignee    string
		description string
		titleFlag   string
		actorFlag   string
	)

	cmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Create a new issue",
		Long: `Create a new issue with the specified title.

Examples:
  bd create "Fix login bug"
  bd create "Add OAuth support" --type feature --priority 1
  bd create "Implement caching" --parent bd-a1b2
  bd create "Write tests" --deps bd-e5f6`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			if len(args) > 1 {
				return fmt.Errorf("accepts at most 1 arg, received %d", len(args))
			}
			title := titleFlag
			if len(args) == 1 {
				title = args[0]
			}
			if strings.TrimSpace(title) == "" {
				return fmt.Errorf("title is required (provide as argument or --title)")
			}

			cfg := app.WS.Config()

			issueType := cfg.DefaultIssueType()
			if typeFlag != "" {
				t := issue.IssueType(typeFlag)
				if !issue.ValidTypes[t] {
					return fmt.Errorf("invalid issue type %q", typeFlag)
				}
				issueType = t
			}

			issuePriority := cfg.DefaultPriority()
			if priority != "" {
				p, err := parsePriorityArg(priority)
				if err != nil {
					return err
				}
				issuePriority = p
			}

			desc := description
			if description == "-" {
				data, err := io.ReadAll(bufio.NewReader(os.Stdin))
				if err != nil {
					return fmt.Errorf("reading description from stdin: %w", err)
				}
				desc = strings.TrimSpace(string(data))
			}

			actor := actorFlag
			if actor == "" {
				actor = resolveActor(app)
			}

			existing := make(map[string]bool)
			for _, id := range app.Store().IDs() {
				existing[id] = true
			}
			minLen, maxLen := cfg.HashLengthBounds()
			id, err := idgen.Generate(cfg.IDPrefix(), app.Store().Count(), existing, minLen, maxLen, time.Now)
			if err != nil {
				return fmt.Errorf("generating id: %w", err)
			}

			newIssue := &issue.Issue{
				ID:          id,
				Title:       title,
				Description: desc,
				Status:      issue.StatusOpen,
				Priority:    issuePriority,
				IssueType:   issueType,
				Assignee:    assignee,
				Owner:       resolveOwner(),
				CreatedBy:   actor,
				Labels:      labels,
			}

			now := app.Now()
			if err := app.Store().Insert(newIssue); err != nil {
				return fmt.Errorf("creating issue: %w", err)
			}

			if parent != "" {
				if err := app.Store().AddDependency(id, parent, issue.DepParentChild, nil, "", actor, now); err != nil {
					app.Store().Delete(id, false, true)
					return fmt.Errorf("setting parent %s: %w", parent, err)
				}
			}
			for _, dep := range deps {
				depType, depID, err := parseDepArg(dep)
				if err != nil {
					app.Store().Delete(id, false, true)
					return err
				}
				if err := app.Store().AddDependency(id, depID, depType, nil, "", actor, now); err != nil {
					app.Store().Delete(id, false, true)
					return fmt.Errorf("adding dependency on %s: %w", depID, err)
				}
			}

			if app.JSON {
				created, _ := app.Store().Get(id)
				return json.NewEncoder(app.Out).Encode(created)
			}

			fmt.Fprintf(app.Out, "%s Created issue: %s\n", app.SuccessColor("+"), id)
			fmt.Fprintf(app.Out, "  Title: %s\n", title)
			fmt.Fprintf(app.Out, "  Priority: %d\n", issuePriority)
			fmt.Fprintf(app.Out, "  Status: %s\n", issue.StatusOpen)
			return nil
		},
	}

	cmd.Flags().StringVar(&titleFlag, "title", "", "Issue title (required if no positional title is provided)")
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Issue type (task, bug, feature, epic, chore, docs, question)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Priority (0-4)")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent issue ID")
	cmd.Flags().StringSliceVarP(&deps, "deps", "d", nil, "Dependencies in format 'type:id' or 'id' (can repeat)")
	cmd.Flags().StringSliceVarP(&labels, "labels", "l", nil, "Labels (comma-separated or repeat flag)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Assign to user")
	cmd.Flags().StringVar(&description, "description", "", "Full description (use - for stdin)")
	cmd.Flags().StringVar(&actorFlag, "actor", "", "Override actor identity for created_by")

	return cmd
}
