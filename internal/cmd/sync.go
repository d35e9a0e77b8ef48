package cmd

import (
	"fmt"

	syncpkg "beads/internal/sync"

	"github.com/spf13/cobra"
)

func newSyncCmd(provider *AppProvider) *cobra.Command {
	var (
		modeFlag     string
		manifestPath string
		errorPolicy  string
		orphanPolicy string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the in-memory store with the on-disk snapshot",
		Long: `Reconcile the in-memory store with the snapshot file. Modes:
flush_only, import_only, bidirectional (default), merge, status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			mode := syncpkg.Mode(modeFlag)
			if mode == "" {
				mode = syncpkg.ModeBidirectional
			}

			result, err := syncpkg.Run(app.Store(), mode, syncpkg.Options{
				SnapshotPath: app.WS.Paths().Snapshot,
				WAL:          app.WS.WAL(),
				ManifestPath: manifestPath,
				ErrorPolicy:  syncpkg.ErrorPolicy(errorPolicy),
				OrphanPolicy: syncpkg.OrphanPolicy(orphanPolicy),
				Now:          app.Now,
			})
			if err != nil {
				return err
			}

			if app.JSON {
				fmt.Fprintf(app.Out, `{"mode":%q,"store_count":%d,"snapshot_count":%d,"pending_export":%d,"imported":%d,"exported":%d}`+"\n",
					result.Mode, result.StoreCount, result.SnapshotCount, result.PendingExport, result.Imported, result.Exported)
				return nil
			}

			fmt.Fprintf(app.Out, "Sync (%s): store=%d snapshot=%d pending=%d imported=%d exported=%d\n",
				result.Mode, result.StoreCount, result.SnapshotCount, result.PendingExport, result.Imported, result.Exported)
			return nil
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "", "Sync mode: flush_only, import_only, bidirectional, merge, status")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Write an export manifest to this path whenever the sync flushes the snapshot")
	cmd.Flags().StringVar(&errorPolicy, "error-policy", "", "Import policy for bad records: strict, best_effort, partial")
	cmd.Flags().StringVar(&orphanPolicy, "orphan-policy", "", "Import policy for dangling dependencies: strict, resurrect, skip")
	return cmd
}
