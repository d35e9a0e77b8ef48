package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"beads/internal/issue"
	"beads/internal/store"
	"beads/internal/wal"
)

func fixedClock() func() int64 {
	tick := int64(1000)
	return func() int64 {
		tick++
		return tick
	}
}

func TestInitCreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	now := func() int64 { return 1000 }
	if err := Init(root, "bd", now); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for _, name := range []string{snapshotFile, configFile, metadataFile, gitignoreFile} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
}

func TestInitAlreadyInitialized(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	now := func() int64 { return 1000 }
	if err := Init(root, "bd", now); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Init(root, "bd", now); err != ErrAlreadyInitialized {
		t.Errorf("second Init = %v, want ErrAlreadyInitialized", err)
	}
}

func TestOpenNotInitialized(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	_, err := Open(context.Background(), root, fixedClock())
	if err != ErrNotInitialized {
		t.Errorf("Open on uninitialized dir = %v, want ErrNotInitialized", err)
	}
}

func TestOpenAfterInitIsEmpty(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	if err := Init(root, "bd", func() int64 { return 1000 }); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ws, err := Open(context.Background(), root, fixedClock())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ws.Close(nil)

	if ws.Store().Count() != 0 {
		t.Errorf("Count() = %d, want 0", ws.Store().Count())
	}
	if len(ws.ReplayAnomalies) != 0 {
		t.Errorf("ReplayAnomalies = %v, want none", ws.ReplayAnomalies)
	}
}

func TestOpenReplaysWAL(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	if err := Init(root, "bd", func() int64 { return 1000 }); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ws, err := Open(context.Background(), root, fixedClock())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := ws.Store().Insert(&issue.Issue{ID: "bd-1", Title: "from wal"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	// Close without flushing so the WAL record is the only record of bd-1.
	if err := ws.Close(nil); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ws2, err := Open(context.Background(), root, fixedClock())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ws2.Close(nil)

	if !ws2.Store().Exists("bd-1") {
		t.Error("bd-1 not recovered from WAL replay on reopen")
	}
}

func TestReplayWALSkipsInsertToExistingID(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	if err := Init(root, "bd", func() int64 { return 1000 }); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ws, err := Open(context.Background(), root, fixedClock())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ws.Store().Insert(&issue.Issue{ID: "bd-1", Title: "first"})
	if err := ws.Close(nil); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Manually write the snapshot to already contain bd-1 with a different
	// title, simulating a flush that raced ahead of the still-unreplayed WAL
	// insert record — the WAL's stale insert should be skipped on replay.
	paths := pathsFor(root)
	snapshotPath := paths.Snapshot
	content := `{"id":"bd-1","title":"snapshot title","created_at":1,"updated_at":1}` + "\n"
	if err := os.WriteFile(snapshotPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	ws2, err := Open(context.Background(), root, fixedClock())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ws2.Close(nil)

	got, err := ws2.Store().Get("bd-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "snapshot title" {
		t.Errorf("Title = %q, want snapshot title to win (insert to existing id skipped)", got.Title)
	}
}

func TestReplayWALRecordsAnomalyForUpdateToMissingIssue(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "beads.wal")
	w, err := wal.Open(walPath)
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	payload, _ := json.Marshal(struct {
		V int `json:"v"`
		*issue.Issue
	}{V: 1, Issue: &issue.Issue{ID: "bd-missing", Title: "update to nothing"}})
	if _, err := w.Append(wal.OpUpdate, payload); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s := store.New(w, fixedClock())
	anomalies, replayed, tailTruncated := replayWAL(s, w)
	if replayed != 1 || tailTruncated {
		t.Errorf("replayWAL = (replayed %d, truncated %v), want (1, false)", replayed, tailTruncated)
	}
	if s.Exists("bd-missing") {
		t.Error("update record should not materialize an issue that was never inserted")
	}
	if len(anomalies) != 1 {
		t.Fatalf("anomalies = %v, want exactly one", anomalies)
	}
}

func TestOpenRecoveryFlushesReplayedWAL(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	if err := Init(root, "bd", func() int64 { return 1000 }); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ws, err := Open(context.Background(), root, fixedClock())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ws.Store().Insert(&issue.Issue{ID: "bd-1", Title: "unflushed"})
	if err := ws.Close(nil); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening finds a non-empty WAL: the new holder replays it, folds the
	// result into the snapshot, and truncates the log before proceeding.
	ws2, err := Open(context.Background(), root, fixedClock())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := ws2.Close(nil); err != nil {
		t.Fatalf("Close: %v", err)
	}

	paths := pathsFor(root)
	snap, err := os.ReadFile(paths.Snapshot)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if !bytes.Contains(snap, []byte("unflushed")) {
		t.Error("snapshot missing issue recovered from WAL")
	}
	walData, err := os.ReadFile(paths.WAL)
	if err != nil {
		t.Fatalf("read wal: %v", err)
	}
	if len(walData) != 0 {
		t.Errorf("WAL holds %d bytes after recovery flush, want 0", len(walData))
	}
}

func TestOpenToleratesTruncatedWALTail(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	if err := Init(root, "bd", func() int64 { return 1000 }); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ws, err := Open(context.Background(), root, fixedClock())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("bd-%d", i)
		if err := ws.Store().Insert(&issue.Issue{ID: id, Title: id}); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}
	if err := ws.Close(nil); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Chop the tail mid-record, simulating a crash during the last append.
	paths := pathsFor(root)
	info, err := os.Stat(paths.WAL)
	if err != nil {
		t.Fatalf("stat wal: %v", err)
	}
	if err := os.Truncate(paths.WAL, info.Size()-17); err != nil {
		t.Fatalf("truncate wal: %v", err)
	}

	ws2, err := Open(context.Background(), root, fixedClock())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ws2.Close(nil)

	if !ws2.WALTailTruncated {
		t.Error("WALTailTruncated = false, want true after chopped tail")
	}
	count := ws2.Store().Count()
	if count < 9 || count > 10 {
		t.Errorf("recovered %d issues, want 9 or 10 (at most the final record lost)", count)
	}
}

func TestCloseAutoFlushesWhenDirty(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	if err := Init(root, "bd", func() int64 { return 1000 }); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ws, err := Open(context.Background(), root, fixedClock())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ws.Store().Insert(&issue.Issue{ID: "bd-1", Title: "one"})

	flushed := false
	flush := func() error {
		flushed = true
		ws.Store().ClearAllDirty()
		return nil
	}
	if err := ws.Close(flush); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !flushed {
		t.Error("Close did not invoke auto-flush despite dirty issues")
	}
}

func TestCloseSkipsFlushWhenClean(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	if err := Init(root, "bd", func() int64 { return 1000 }); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ws, err := Open(context.Background(), root, fixedClock())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	called := false
	flush := func() error {
		called = true
		return nil
	}
	if err := ws.Close(flush); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if called {
		t.Error("Close invoked flush on a clean store")
	}
}

func TestCompactDropsTombstones(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	if err := Init(root, "bd", func() int64 { return 1000 }); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ws, err := Open(context.Background(), root, fixedClock())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ws.Store().Insert(&issue.Issue{ID: "bd-1", Title: "keep"})
	ws.Store().Insert(&issue.Issue{ID: "bd-2", Title: "gone"})
	ws.Store().Delete("bd-2", false, false)

	n, err := ws.Compact()
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if n != 1 {
		t.Errorf("Compact returned %d, want 1", n)
	}
	if ws.Store().Exists("bd-2") {
		t.Error("tombstoned issue survived Compact")
	}
	if !ws.Store().Exists("bd-1") {
		t.Error("live issue removed by Compact")
	}
	if err := ws.Close(nil); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestMigrateRejectsNewerSchema(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	if err := Init(root, "bd", func() int64 { return 1000 }); err != nil {
		t.Fatalf("Init: %v", err)
	}
	paths := pathsFor(root)
	meta := Metadata{SchemaVersion: CurrentSchemaVersion + 1, CreatedAt: time.Now().Unix()}
	data, _ := json.Marshal(meta)
	if err := os.WriteFile(paths.Metadata, data, 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(context.Background(), root, fixedClock())
	if !errors.Is(err, ErrSchemaTooNew) {
		t.Errorf("Open with newer schema = %v, want ErrSchemaTooNew", err)
	}
}
