package cmd

import (
	"os"
	"strings"

	"beads/internal/config"

	"github.com/spf13/cobra"
)

// Execute runs the CLI, returning the first command error encountered.
func Execute() error {
	provider := &AppProvider{
		Out: os.Stdout,
		Err: os.Stderr,
	}
	rootCmd := newRootCmd(provider)
	return rootCmd.Execute()
}

func newRootCmd(provider *AppProvider) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bd",
		Short: "A local-first issue tracker that lives in your repo",
		Long: `bd stores issues as line-delimited JSON in a workspace directory
(.beads/ by default), coordinating concurrent access with an advisory file
lock and a write-ahead log, so the tracked history stays diffable and the
working state stays safe under concurrent command invocations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			provider.ctx = cmd.Context()
			if !cmd.Flags().Changed("json") {
				if envJSON := strings.ToLower(os.Getenv(config.EnvJSON)); envJSON == "1" || envJSON == "true" {
					provider.JSONOutput = true
				}
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if provider.app != nil {
				return provider.app.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVar(&provider.JSONOutput, "json", false, "Output in JSON format (env: BD_JSON)")
	rootCmd.PersistentFlags().BoolVarP(&provider.Silent, "quiet", "q", false, "Suppress success output")

	rootCmd.AddCommand(newInitCmd(provider))
	rootCmd.AddCommand(newCreateCmd(provider))
	rootCmd.AddCommand(newShowCmd(provider))
	rootCmd.AddCommand(newUpdateCmd(provider))
	rootCmd.AddCommand(newCloseCmd(provider))
	rootCmd.AddCommand(newReopenCmd(provider))
	rootCmd.AddCommand(newClaimCmd(provider))
	rootCmd.AddCommand(newDeleteCmd(provider))
	rootCmd.AddCommand(newListCmd(provider))
	rootCmd.AddCommand(newCountCmd(provider))
	rootCmd.AddCommand(newDepCmd(provider))
	rootCmd.AddCommand(newReadyCmd(provider))
	rootCmd.AddCommand(newBlockedCmd(provider))
	rootCmd.AddCommand(newQueryCmd(provider))
	rootCmd.AddCommand(newSyncCmd(provider))
	rootCmd.AddCommand(newCompactCmd(provider))
	rootCmd.AddCommand(newLabelCmd(provider))
	rootCmd.AddCommand(newCommentCmd(provider))
	rootCmd.AddCommand(newDeferCmd(provider))
	rootCmd.AddCommand(newUndeferCmd(provider))

	// Cobra skips PersistentPostRunE after a failed RunE; close there too.
	var closeOnError func(c *cobra.Command)
	closeOnError = func(c *cobra.Command) {
		for _, sub := range c.Commands() {
			closeOnError(sub)
		}
		if run := c.RunE; run != nil {
			c.RunE = func(cmd *cobra.Command, args []string) error {
				err := run(cmd, args)
				if err != nil && provider.app != nil {
					provider.app.Close()
				}
				return err
			}
		}
	}
	closeOnError(rootCmd)

	return rootCmd
}
