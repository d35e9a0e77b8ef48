package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClaimCmd(provider *AppProvider) *cobra.Command {
	var (
		actorFlag string
		version   uint64
	)

	cmd := &cobra.Command{
		Use:   "claim <id>",
		Short: "Assign an open issue to yourself and mark it in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			actor := actorFlag
			if actor == "" {
				actor = resolveActor(app)
			}

			var expectedVersion *uint64
			if cmd.Flags().Changed("version") {
				expectedVersion = &version
			}

			updated, err := app.Store().Claim(args[0], actor, expectedVersion)
			if err != nil {
				return fmt.Errorf("claiming %s: %w", args[0], err)
			}
			fmt.Fprintf(app.Out, "%s Claimed %s for %s\n", app.SuccessColor("*"), updated.ID, actor)
			return nil
		},
	}

	cmd.Flags().StringVar(&actorFlag, "actor", "", "Claim on behalf of this actor")
	cmd.Flags().Uint64Var(&version, "version", 0, "Expected current version, for optimistic concurrency")
	return cmd
}
