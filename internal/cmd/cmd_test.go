package cmd

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"beads/internal/filelock"
	"beads/internal/store"
	syncpkg "beads/internal/sync"
	"beads/internal/workspace"
)

// runCLI executes one bd invocation against dir's workspace, mirroring how a
// single process invocation behaves (a fresh AppProvider per call).
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("BEADS_DIR", dir)
	var out bytes.Buffer
	provider := &AppProvider{Out: &out, Err: &out}
	root := newRootCmd(provider)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func mustRunCLI(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dir, args...)
	if err != nil {
		t.Fatalf("bd %v: %v\noutput: %s", args, err, out)
	}
	return out
}

func firstIssueID(t *testing.T, createOutput string) string {
	t.Helper()
	for _, line := range strings.Split(createOutput, "\n") {
		if strings.Contains(line, "Created issue:") {
			fields := strings.Fields(line)
			return fields[len(fields)-1]
		}
	}
	t.Fatalf("could not find created issue id in output: %q", createOutput)
	return ""
}

func TestCLIInitThenCreateThenShow(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")

	out := mustRunCLI(t, dir, "create", "Fix login bug", "--type", "bug", "--priority", "1")
	id := firstIssueID(t, out)

	out = mustRunCLI(t, dir, "show", id)
	if !strings.Contains(out, "Fix login bug") {
		t.Errorf("show output missing title: %q", out)
	}
	if !strings.Contains(out, "Priority:    1") {
		t.Errorf("show output missing priority: %q", out)
	}
}

func TestCLICreateRequiresTitle(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")

	if _, err := runCLI(t, dir, "create"); err == nil {
		t.Fatal("create with no title succeeded")
	}
}

func TestCLIUpdateWithOptimisticConcurrency(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")
	out := mustRunCLI(t, dir, "create", "Needs an update")
	id := firstIssueID(t, out)

	mustRunCLI(t, dir, "update", id, "--status", "in_progress", "--version", "1")

	if _, err := runCLI(t, dir, "update", id, "--status", "closed", "--version", "1"); err == nil {
		t.Fatal("update with stale version succeeded")
	}

	out = mustRunCLI(t, dir, "show", id)
	if !strings.Contains(out, "in_progress") {
		t.Errorf("show output missing updated status: %q", out)
	}
}

func TestCLIListFiltersByStatus(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")
	out1 := mustRunCLI(t, dir, "create", "First")
	id1 := firstIssueID(t, out1)
	out2 := mustRunCLI(t, dir, "create", "Second")
	id2 := firstIssueID(t, out2)

	mustRunCLI(t, dir, "update", id1, "--status", "closed")

	out := mustRunCLI(t, dir, "list", "--status", "open")
	if !strings.Contains(out, id2) {
		t.Errorf("list --status open missing %s: %q", id2, out)
	}
	if strings.Contains(out, id1) {
		t.Errorf("list --status open unexpectedly contains closed issue %s: %q", id1, out)
	}
}

func TestCLIDepAddCreatesBlockingRelationshipVisibleInReadyBlocked(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")
	blockerOut := mustRunCLI(t, dir, "create", "Blocker")
	blockerID := firstIssueID(t, blockerOut)
	blockedOut := mustRunCLI(t, dir, "create", "Blocked")
	blockedID := firstIssueID(t, blockedOut)

	mustRunCLI(t, dir, "dep", "add", blockedID, "blocks:"+blockerID)

	blocked := mustRunCLI(t, dir, "blocked")
	if !strings.Contains(blocked, blockedID) {
		t.Errorf("blocked output missing %s: %q", blockedID, blocked)
	}

	ready := mustRunCLI(t, dir, "ready")
	if strings.Contains(ready, blockedID) {
		t.Errorf("ready output unexpectedly contains blocked issue %s: %q", blockedID, ready)
	}
	if !strings.Contains(ready, blockerID) {
		t.Errorf("ready output missing unblocked issue %s: %q", blockerID, ready)
	}

	mustRunCLI(t, dir, "dep", "rm", blockedID, "blocks:"+blockerID)
	ready = mustRunCLI(t, dir, "ready")
	if !strings.Contains(ready, blockedID) {
		t.Errorf("ready output should include %s after removing the blocking dependency: %q", blockedID, ready)
	}
}

func TestCLILabelAddAndRemove(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")
	out := mustRunCLI(t, dir, "create", "Needs a label")
	id := firstIssueID(t, out)

	mustRunCLI(t, dir, "label", "add", id, "urgent")
	show := mustRunCLI(t, dir, "show", id)
	if !strings.Contains(show, "urgent") {
		t.Errorf("show output missing added label: %q", show)
	}

	mustRunCLI(t, dir, "label", "rm", id, "urgent")
	show = mustRunCLI(t, dir, "show", id)
	if strings.Contains(show, "urgent") {
		t.Errorf("show output still contains removed label: %q", show)
	}
}

func TestCLICommentAdd(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")
	out := mustRunCLI(t, dir, "create", "Needs a comment")
	id := firstIssueID(t, out)

	mustRunCLI(t, dir, "comment", "add", id, "looks good to me", "--author", "reviewer")
	show := mustRunCLI(t, dir, "show", id, "--json")
	if !strings.Contains(show, "looks good to me") || !strings.Contains(show, "reviewer") {
		t.Errorf("json show output missing added comment: %q", show)
	}
}

func TestCLIDeferHidesFromReadyUntilUndefer(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")
	out := mustRunCLI(t, dir, "create", "Wait a while")
	id := firstIssueID(t, out)

	mustRunCLI(t, dir, "defer", id, "720h")
	ready := mustRunCLI(t, dir, "ready")
	if strings.Contains(ready, id) {
		t.Errorf("ready output unexpectedly contains deferred issue %s: %q", id, ready)
	}

	mustRunCLI(t, dir, "undefer", id)
	ready = mustRunCLI(t, dir, "ready")
	if !strings.Contains(ready, id) {
		t.Errorf("ready output missing undeferred issue %s: %q", id, ready)
	}
}

func TestCLIListFiltersByParent(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")
	parentOut := mustRunCLI(t, dir, "create", "Epic")
	parentID := firstIssueID(t, parentOut)
	childOut := mustRunCLI(t, dir, "create", "Child")
	childID := firstIssueID(t, childOut)
	otherOut := mustRunCLI(t, dir, "create", "Unrelated")
	otherID := firstIssueID(t, otherOut)

	mustRunCLI(t, dir, "dep", "add", childID, "parent_child:"+parentID)

	out := mustRunCLI(t, dir, "list", "--parent", parentID)
	if !strings.Contains(out, childID) {
		t.Errorf("list --parent missing child %s: %q", childID, out)
	}
	if strings.Contains(out, otherID) {
		t.Errorf("list --parent unexpectedly contains unrelated issue %s: %q", otherID, out)
	}
}

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{fmt.Errorf("something else"), 1},
		{fmt.Errorf("showing: %w", store.ErrNotFound), 2},
		{fmt.Errorf("updating: %w", store.ErrVersionConflict), 3},
		{filelock.ErrLockTimeout, 4},
		{syncpkg.ErrMergeConflictDetected, 5},
		{workspace.ErrNotInitialized, 6},
	}
	for _, tc := range cases {
		if got := ExitCode(tc.err); got != tc.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestCLIClaimSetsAssigneeAndStatus(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")
	out := mustRunCLI(t, dir, "create", "Claim me")
	id := firstIssueID(t, out)

	mustRunCLI(t, dir, "claim", id, "--actor", "alice")

	show := mustRunCLI(t, dir, "show", id)
	if !strings.Contains(show, "alice") || !strings.Contains(show, "in_progress") {
		t.Errorf("show after claim = %q, want assignee alice and in_progress", show)
	}

	if _, err := runCLI(t, dir, "claim", id, "--actor", "bob"); err == nil {
		t.Fatal("claiming an already-claimed issue succeeded")
	}
}

func TestCLICloseAndReopen(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")
	out := mustRunCLI(t, dir, "create", "Close me")
	id := firstIssueID(t, out)

	mustRunCLI(t, dir, "close", id, "--reason", "fixed upstream")
	show := mustRunCLI(t, dir, "show", id)
	if !strings.Contains(show, "closed") {
		t.Errorf("show after close = %q, want closed status", show)
	}

	mustRunCLI(t, dir, "reopen", id)
	show = mustRunCLI(t, dir, "show", id)
	if !strings.Contains(show, "open") {
		t.Errorf("show after reopen = %q, want open status", show)
	}
}

func TestCLICountGroupsByStatus(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")
	mustRunCLI(t, dir, "create", "One")
	out := mustRunCLI(t, dir, "create", "Two")
	id := firstIssueID(t, out)
	mustRunCLI(t, dir, "close", id)

	total := mustRunCLI(t, dir, "count")
	if !strings.Contains(total, "2") {
		t.Errorf("count = %q, want 2", total)
	}

	grouped := mustRunCLI(t, dir, "count", "--by", "status")
	if !strings.Contains(grouped, "open\t1") || !strings.Contains(grouped, "closed\t1") {
		t.Errorf("count --by status = %q, want open:1 closed:1", grouped)
	}
}

func TestCLIDeleteTombstonesUntilCompact(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")
	out := mustRunCLI(t, dir, "create", "Doomed")
	id := firstIssueID(t, out)

	mustRunCLI(t, dir, "delete", id)

	list := mustRunCLI(t, dir, "list")
	if strings.Contains(list, id) {
		t.Errorf("list still shows tombstoned issue %s: %q", id, list)
	}
	list = mustRunCLI(t, dir, "list", "--include-tombstones")
	if !strings.Contains(list, id) {
		t.Errorf("list --include-tombstones missing %s: %q", id, list)
	}

	mustRunCLI(t, dir, "compact")
	if _, err := runCLI(t, dir, "show", id); err == nil {
		t.Fatal("tombstoned issue still present after compact")
	}
}

func TestCLIQuerySaveRunRemove(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")
	out := mustRunCLI(t, dir, "create", "A bug", "--type", "bug")
	bugID := firstIssueID(t, out)
	out = mustRunCLI(t, dir, "create", "A task", "--type", "task")
	taskID := firstIssueID(t, out)

	mustRunCLI(t, dir, "query", "save", "bugs", "--type", "bug")

	listed := mustRunCLI(t, dir, "query", "list")
	if !strings.Contains(listed, "bugs") {
		t.Errorf("query list = %q, want to contain bugs", listed)
	}

	ran := mustRunCLI(t, dir, "query", "run", "bugs")
	if !strings.Contains(ran, bugID) {
		t.Errorf("query run bugs missing %s: %q", bugID, ran)
	}
	if strings.Contains(ran, taskID) {
		t.Errorf("query run bugs unexpectedly contains %s: %q", taskID, ran)
	}

	mustRunCLI(t, dir, "query", "rm", "bugs")
	if _, err := runCLI(t, dir, "query", "run", "bugs"); err == nil {
		t.Fatal("running a removed query succeeded")
	}
}

func TestCLISyncFlushOnlyThenReopen(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")
	out := mustRunCLI(t, dir, "create", "Persist me")
	id := firstIssueID(t, out)

	mustRunCLI(t, dir, "sync", "--mode", "flush_only")

	showOut := mustRunCLI(t, dir, "show", id)
	if !strings.Contains(showOut, "Persist me") {
		t.Errorf("issue not recoverable after flush+reopen: %q", showOut)
	}
}

func TestCLICompactKeepsLiveIssues(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "init")
	out := mustRunCLI(t, dir, "create", "Temporary")
	id := firstIssueID(t, out)

	compactOut := mustRunCLI(t, dir, "compact")
	if !strings.Contains(compactOut, "1 live issues remain") {
		t.Errorf("compact output = %q, want to report 1 live issue", compactOut)
	}

	showOut := mustRunCLI(t, dir, "show", id)
	if !strings.Contains(showOut, "Temporary") {
		t.Errorf("issue lost after compact with no tombstones: %q", showOut)
	}
}
