package cmd

import (
	"errors"

	"beads/internal/depgraph"
	"beads/internal/filelock"
	"beads/internal/store"
	syncpkg "beads/internal/sync"
	"beads/internal/workspace"
)

// ExitCode maps a command error onto the process exit code contract:
// 0 success, 1 generic error, 2 not found, 3 version conflict, 4 lock
// timeout, 5 merge conflict detected, 6 workspace not initialized.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, store.ErrNotFound), errors.Is(err, depgraph.ErrIssueNotFound):
		return 2
	case errors.Is(err, store.ErrVersionConflict):
		return 3
	case errors.Is(err, filelock.ErrLockTimeout):
		return 4
	case errors.Is(err, syncpkg.ErrMergeConflictDetected):
		return 5
	case errors.Is(err, workspace.ErrNotInitialized):
		return 6
	}
	return 1
}
