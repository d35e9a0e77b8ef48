// Package workspace is the top-level manager: it owns the on-disk layout
// under a workspace directory, the lock acquired around every mutating
// session, and the load/replay sequence that turns a snapshot plus WAL into
// a live store.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"beads/internal/config"
	"beads/internal/depgraph"
	"beads/internal/filelock"
	"beads/internal/issue"
	"beads/internal/snapshot"
	"beads/internal/store"
	"beads/internal/wal"
)

// CurrentSchemaVersion is the schema version this build understands.
// Metadata files naming a newer version are a hard failure (SchemaTooNew);
// older versions are migrated forward in place.
const CurrentSchemaVersion = 1

const (
	snapshotFile  = "issues.jsonl"
	walFile       = "beads.wal"
	lockFile      = "beads.lock"
	configFile    = "config.yaml"
	metadataFile  = "metadata.json"
	queriesFile   = "queries.jsonl"
	gitignoreFile = ".gitignore"
)

var (
	ErrAlreadyInitialized = errors.New("workspace: already initialized")
	ErrNotInitialized     = errors.New("workspace: not initialized")
	ErrSchemaTooNew       = errors.New("workspace: schema version is newer than this build supports")
)

// Metadata is the contents of metadata.json.
type Metadata struct {
	SchemaVersion int   `json:"schema_version"`
	CreatedAt     int64 `json:"created_at"`
	IssueCount    int   `json:"issue_count"`
}

// Paths collects the absolute paths of every file the workspace owns.
type Paths struct {
	Root     string
	Snapshot string
	WAL      string
	Lock     string
	Config   string
	Metadata string
	Queries  string
}

func pathsFor(root string) Paths {
	return Paths{
		Root:     root,
		Snapshot: filepath.Join(root, snapshotFile),
		WAL:      filepath.Join(root, walFile),
		Lock:     filepath.Join(root, lockFile),
		Config:   filepath.Join(root, configFile),
		Metadata: filepath.Join(root, metadataFile),
		Queries:  filepath.Join(root, queriesFile),
	}
}

// Workspace is an opened, lock-held session bound to one directory.
type Workspace struct {
	paths    Paths
	lock     *filelock.Guard
	config   *config.File
	store    *store.Store
	wal      *wal.WAL
	metadata Metadata
	clock    func() int64

	// CorruptSnapshotLines and ReplayAnomalies surface the tolerated
	// integrity issues found while opening. WALTailTruncated is set when
	// the WAL ended in a partial or CRC-failed record that was discarded
	// as a crash artifact.
	CorruptSnapshotLines int
	ReplayAnomalies      []string
	WALTailTruncated     bool
}

// Init creates a new workspace at root: directory, empty snapshot, config,
// metadata, and a .gitignore covering the WAL/lock/metadata files. Fails
// ErrAlreadyInitialized if a snapshot already exists there.
func Init(root, idPrefix string, now func() int64) error {
	paths := pathsFor(root)

	if _, err := os.Stat(paths.Snapshot); err == nil {
		return ErrAlreadyInitialized
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("workspace: checking snapshot: %w", err)
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("workspace: creating directory: %w", err)
	}

	if err := snapshot.Write(paths.Snapshot, nil); err != nil {
		return fmt.Errorf("workspace: writing empty snapshot: %w", err)
	}

	cfgStore, err := config.Open(paths.Config)
	if err != nil {
		return fmt.Errorf("workspace: creating config store: %w", err)
	}
	if err := config.ApplyDefaults(cfgStore); err != nil {
		return fmt.Errorf("workspace: applying defaults: %w", err)
	}
	if idPrefix != "" {
		if err := cfgStore.Set(config.KeyIDPrefix, idPrefix); err != nil {
			return fmt.Errorf("workspace: setting id prefix: %w", err)
		}
	}

	meta := Metadata{
		SchemaVersion: CurrentSchemaVersion,
		CreatedAt:     now(),
		IssueCount:    0,
	}
	if err := writeMetadata(paths.Metadata, &meta); err != nil {
		return err
	}

	gitignore := "issues.jsonl.tmp\nbeads.wal\nbeads.lock\nmetadata.json\n"
	if err := os.WriteFile(filepath.Join(root, gitignoreFile), []byte(gitignore), 0644); err != nil {
		return fmt.Errorf("workspace: writing .gitignore: %w", err)
	}

	if err := os.WriteFile(paths.Queries, nil, 0644); err != nil {
		return fmt.Errorf("workspace: writing empty query catalog: %w", err)
	}

	if unsupported, err := detectNetworkFilesystem(root); err == nil && unsupported {
		// Signaled via a dedicated sentinel so the rendering collaborator
		// can warn the user about lock safety on network filesystems; the
		// init call itself still succeeds.
		return fmt.Errorf("%w: %s", ErrNetworkFilesystem, root)
	}
	return nil
}

// ErrNetworkFilesystem signals (non-fatally, from the CLI's point of view)
// that root appears to live on a network filesystem where advisory locks
// may not be reliable.
var ErrNetworkFilesystem = errors.New("workspace: directory may be on a network filesystem; lock safety is not guaranteed")

// Open acquires the workspace lock, loads the snapshot, replays the WAL in
// seq_no order, and returns a ready-to-use Workspace. The returned
// Workspace must be Closed to release the lock.
func Open(ctx context.Context, root string, clock func() int64) (*Workspace, error) {
	paths := pathsFor(root)

	if _, err := os.Stat(paths.Snapshot); os.IsNotExist(err) {
		return nil, ErrNotInitialized
	}

	guard, err := filelock.Acquire(ctx, paths.Lock)
	if err != nil {
		return nil, err
	}

	ws, err := openLocked(paths, guard, clock)
	if err != nil {
		guard.Release()
		return nil, err
	}
	return ws, nil
}

func openLocked(paths Paths, guard *filelock.Guard, clock func() int64) (*Workspace, error) {
	meta, err := readMetadata(paths.Metadata)
	if err != nil {
		return nil, err
	}
	if err := migrate(paths, meta); err != nil {
		return nil, err
	}

	cfgStore, err := config.Open(paths.Config)
	if err != nil {
		return nil, fmt.Errorf("workspace: opening config store: %w", err)
	}
	config.ApplyEnvOverrides(cfgStore)

	w, err := wal.Open(paths.WAL)
	if err != nil {
		return nil, err
	}

	loaded, err := snapshot.Load(paths.Snapshot)
	if err != nil {
		return nil, err
	}

	s := store.New(w, clock)
	for _, iss := range loaded.Issues {
		s.LoadIssue(iss)
	}

	anomalies, replayed, tailTruncated := replayWAL(s, w)

	// The state now matches disk: the snapshot was just loaded and any WAL
	// records have been folded in, but neither constitutes an unflushed
	// local edit, so nothing should be marked dirty yet.
	s.ClearAllDirty()

	// A non-empty WAL means the previous holder exited before flushing.
	// Fold the replayed state into the snapshot now and truncate, so this
	// session starts with an empty log and fresh sequence numbers.
	if replayed > 0 || tailTruncated {
		if err := snapshot.Write(paths.Snapshot, s.AllIssues()); err != nil {
			return nil, fmt.Errorf("workspace: recovery flush: %w", err)
		}
		if err := w.Truncate(); err != nil {
			return nil, fmt.Errorf("workspace: recovery truncate: %w", err)
		}
	}

	ws := &Workspace{
		paths:                paths,
		lock:                 guard,
		config:               cfgStore,
		store:                s,
		wal:                  w,
		metadata:             *meta,
		clock:                clock,
		CorruptSnapshotLines: loaded.CorruptLines,
		ReplayAnomalies:      anomalies,
		WALTailTruncated:     tailTruncated,
	}
	return ws, nil
}

// replayWAL applies every WAL record onto s in seq_no order. INSERTs whose
// id is already present are skipped (the snapshot is newer); UPDATEs to
// missing ids are skipped and recorded as anomalies. It returns
// the anomaly list, the number of records replayed, and whether the WAL
// ended in a discarded partial record.
func replayWAL(s *store.Store, w *wal.WAL) ([]string, int, bool) {
	records, tailTruncated, err := w.ReadAll()
	if err != nil {
		return []string{fmt.Sprintf("wal read error: %v", err)}, 0, false
	}
	var anomalies []string
	for _, rec := range records {
		var envelope struct {
			V int             `json:"v"`
			D json.RawMessage `json:"data"`
		}
		var asIssue struct {
			V int `json:"v"`
			*issue.Issue
		}
		switch rec.Op {
		case wal.OpInsert:
			if err := json.Unmarshal(rec.Payload, &asIssue); err != nil || asIssue.Issue == nil {
				anomalies = append(anomalies, fmt.Sprintf("seq %d: bad insert payload", rec.SeqNo))
				continue
			}
			if s.Exists(asIssue.Issue.ID) {
				continue // snapshot already reflects this or a later write
			}
			s.LoadIssue(asIssue.Issue)
		case wal.OpUpdate, wal.OpDepAdd, wal.OpDepRemove, wal.OpLabelAdd, wal.OpLabelRemove, wal.OpCommentAdd:
			// All of these carry a full-issue payload (the store logs the
			// post-mutation record either way); they replay identically to
			// a plain update.
			if err := json.Unmarshal(rec.Payload, &asIssue); err != nil || asIssue.Issue == nil {
				anomalies = append(anomalies, fmt.Sprintf("seq %d: bad update payload", rec.SeqNo))
				continue
			}
			if !s.Exists(asIssue.Issue.ID) {
				anomalies = append(anomalies, fmt.Sprintf("seq %d: update to missing issue %s", rec.SeqNo, asIssue.Issue.ID))
				continue
			}
			s.LoadIssue(asIssue.Issue)
		case wal.OpDelete:
			if err := json.Unmarshal(rec.Payload, &envelope); err != nil {
				anomalies = append(anomalies, fmt.Sprintf("seq %d: bad delete payload", rec.SeqNo))
				continue
			}
			var data map[string]string
			if err := json.Unmarshal(envelope.D, &data); err == nil {
				s.Delete(data["id"], false, true)
			}
		default:
			// Unrecognized future op codes are tolerated.
		}
	}
	return anomalies, len(records), tailTruncated
}

// Store returns the live, replayed issue store.
func (w *Workspace) Store() *store.Store { return w.store }

// Config returns the workspace's configuration file.
func (w *Workspace) Config() *config.File { return w.config }

// Graph builds a fresh dependency graph view over the current store state,
// as of the workspace's clock (used to decide which issues are currently
// deferred).
func (w *Workspace) Graph() *depgraph.Graph {
	return depgraph.New(w.store.AllIssues(), w.clock())
}

// Paths exposes the resolved file paths, e.g. for the sync engine.
func (w *Workspace) Paths() Paths { return w.paths }

// WAL exposes the workspace's write-ahead log, so the sync engine can
// truncate it after a successful flush.
func (w *Workspace) WAL() *wal.WAL { return w.wal }

// Close flushes the store if dirty and auto-flush is enabled, then releases
// the lock. flush is a caller-supplied callback (typically sync.Run bound
// to flush_only) so workspace stays independent of the sync package.
func (w *Workspace) Close(flush func() error) error {
	defer w.lock.Release()

	if w.config.AutoFlush() && len(w.store.GetDirtyIDs()) > 0 && flush != nil {
		if err := flush(); err != nil {
			return fmt.Errorf("workspace: auto-flush on close: %w", err)
		}
	}
	return nil
}

// Compact rewrites the snapshot omitting tombstoned issues, under the same
// atomic-write discipline as a flush, and updates metadata.json's issue
// count. It resolves Open Question 2 of the original specification by
// making compaction a workspace operation rather than a separate tool.
func (w *Workspace) Compact() (int, error) {
	conflicted, err := snapshot.HasMergeConflictMarkers(w.paths.Snapshot)
	if err != nil {
		return 0, err
	}
	if conflicted {
		return 0, fmt.Errorf("workspace: compact: unresolved merge conflict markers")
	}

	var live []*issue.Issue
	for _, iss := range w.store.AllIssues() {
		if iss.Status == issue.StatusTombstone {
			w.store.Delete(iss.ID, false, true)
			continue
		}
		live = append(live, iss)
	}

	if err := snapshot.Write(w.paths.Snapshot, live); err != nil {
		return 0, err
	}
	w.store.ClearAllDirty()
	if w.wal != nil {
		if err := w.wal.Truncate(); err != nil {
			return 0, err
		}
	}

	w.metadata.IssueCount = len(live)
	if err := writeMetadata(w.paths.Metadata, &w.metadata); err != nil {
		return 0, err
	}
	return len(live), nil
}

func writeMetadata(path string, m *Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("workspace: encode metadata: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("workspace: write metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("workspace: rename metadata into place: %w", err)
	}
	return nil
}

func readMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Metadata{SchemaVersion: CurrentSchemaVersion, CreatedAt: time.Now().Unix()}, nil
		}
		return nil, fmt.Errorf("workspace: read metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("workspace: parse metadata: %w", err)
	}
	return &m, nil
}

// migrate runs forward-only schema migrations. A metadata file naming a
// version newer than CurrentSchemaVersion is a hard failure; this build
// has no migrations to apply yet because schema version 1 is the only one
// that has ever shipped.
func migrate(paths Paths, meta *Metadata) error {
	if meta.SchemaVersion > CurrentSchemaVersion {
		return fmt.Errorf("%w: found %d, support up to %d", ErrSchemaTooNew, meta.SchemaVersion, CurrentSchemaVersion)
	}
	if meta.SchemaVersion < CurrentSchemaVersion {
		meta.SchemaVersion = CurrentSchemaVersion
		return writeMetadata(paths.Metadata, meta)
	}
	return nil
}
