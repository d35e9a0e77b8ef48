package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"beads/internal/workspace"

	"github.com/spf13/cobra"
)

func newInitCmd(provider *AppProvider) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new beads workspace",
		Long:  `Initialize a new beads workspace in .beads/ under the current directory (or BEADS_DIR, if set).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := provider.Out
			if out == nil {
				out = os.Stdout
			}

			root, err := resolveWorkspaceRoot()
			if err != nil {
				return err
			}

			if prefix == "" {
				cwd, err := os.Getwd()
				if err == nil {
					prefix = filepath.Base(cwd)
				}
			}

			now := func() int64 { return time.Now().Unix() }
			if err := workspace.Init(root, prefix, now); err != nil {
				if errors.Is(err, workspace.ErrNetworkFilesystem) {
					fmt.Fprintf(out, "%s\n", err)
				} else {
					return err
				}
			}

			fmt.Fprintf(out, "Initialized beads workspace at %s\n", root)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "ID prefix for issues (defaults to the directory name)")
	return cmd
}
