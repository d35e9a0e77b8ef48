package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDepCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage dependency edges between issues",
	}
	cmd.AddCommand(newDepAddCmd(provider))
	cmd.AddCommand(newDepRemoveCmd(provider))
	cmd.AddCommand(newDepTreeCmd(provider))
	cmd.AddCommand(newDepCyclesCmd(provider))
	cmd.AddCommand(newDepOrphansCmd(provider))
	return cmd
}

func newDepAddCmd(provider *AppProvider) *cobra.Command {
	var (
		actorFlag  string
		threadFlag string
	)
	cmd := &cobra.Command{
		Use:   "add <from> <type:to|to>",
		Short: "Add a dependency edge from one issue to another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			depType, depID, err := parseDepArg(args[1])
			if err != nil {
				return err
			}
			actor := actorFlag
			if actor == "" {
				actor = resolveActor(app)
			}
			if err := app.Store().AddDependency(args[0], depID, depType, nil, threadFlag, actor, app.Now()); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s Added %s -> %s (%s)\n", app.SuccessColor("+"), args[0], depID, depType)
			return nil
		},
	}
	cmd.Flags().StringVar(&actorFlag, "actor", "", "Override actor identity")
	cmd.Flags().StringVar(&threadFlag, "thread", "", "Grouping key recorded on the edge")
	return cmd
}

func newDepRemoveCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <from> <type:to|to>",
		Short: "Remove a dependency edge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			depType, depID, err := parseDepArg(args[1])
			if err != nil {
				return err
			}
			if err := app.Store().RemoveDependency(args[0], depID, depType); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s Removed %s -> %s (%s)\n", app.SuccessColor("-"), args[0], depID, depType)
			return nil
		},
	}
	return cmd
}

func newDepTreeCmd(provider *AppProvider) *cobra.Command {
	var maxDepth int
	cmd := &cobra.Command{
		Use:   "tree <id>",
		Short: "Show the parent/child hierarchy below an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			nodes, err := app.Graph().Tree(args[0], maxDepth)
			if err != nil {
				return err
			}
			for _, n := range nodes {
				indent := strings.Repeat("  ", n.Depth)
				marker := ""
				if n.BackReference {
					marker = " (already shown)"
				}
				fmt.Fprintf(app.Out, "%s%s  %s%s\n", indent, n.Issue.ID, n.Issue.Title, marker)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxDepth, "depth", 0, "Maximum depth to descend (0 = unlimited)")
	return cmd
}

func newDepCyclesCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "cycles",
		Short: "Report dependency cycles among blocks/parent_child edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			cycles := app.Graph().DetectCycles()
			if len(cycles) == 0 {
				fmt.Fprintln(app.Out, "No cycles found.")
				return nil
			}
			for _, cycle := range cycles {
				fmt.Fprintf(app.Out, "%s %s\n", app.ErrorColor("cycle:"), strings.Join(cycle, " -> "))
			}
			return nil
		},
	}
}

func newDepOrphansCmd(provider *AppProvider) *cobra.Command {
	var (
		hierarchyOnly bool
		depsOnly      bool
	)
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List issues whose dependency edges reference unknown ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			orphans := app.Graph().Orphans(hierarchyOnly, depsOnly)
			if len(orphans) == 0 {
				fmt.Fprintln(app.Out, "No orphaned references found.")
				return nil
			}
			for _, iss := range orphans {
				fmt.Fprintf(app.Out, "%s  %s\n", iss.ID, iss.Title)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&hierarchyOnly, "hierarchy", false, "Check only parent_child edges")
	cmd.Flags().BoolVar(&depsOnly, "deps", false, "Check only non-hierarchy edges")
	return cmd
}
