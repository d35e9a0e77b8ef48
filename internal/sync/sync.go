// Package sync reconciles the in-memory store with the on-disk snapshot:
// flush, import, bidirectional, merge, and status modes, a manifest
// sidecar, and configurable error/orphan handling for import.
package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"beads/internal/issue"
	"beads/internal/snapshot"
	"beads/internal/store"
	"beads/internal/wal"
)

// ErrMergeConflictDetected is returned by any mode other than Status when
// the snapshot contains literal VCS conflict markers.
var ErrMergeConflictDetected = errors.New("sync: unresolved merge conflict markers in snapshot")

// Mode selects one of the five reconciliation strategies.
type Mode string

const (
	ModeFlushOnly     Mode = "flush_only"
	ModeImportOnly    Mode = "import_only"
	ModeBidirectional Mode = "bidirectional"
	ModeMerge         Mode = "merge"
	ModeStatus        Mode = "status"
)

// ErrorPolicy controls how the importer reacts to a single bad record.
type ErrorPolicy string

const (
	PolicyStrict     ErrorPolicy = "strict"
	PolicyBestEffort ErrorPolicy = "best_effort"
	PolicyPartial    ErrorPolicy = "partial"
)

// OrphanPolicy controls how the importer reacts to a dependency edge that
// names an id the store doesn't know about.
type OrphanPolicy string

const (
	OrphanStrict    OrphanPolicy = "strict"
	OrphanResurrect OrphanPolicy = "resurrect"
	OrphanSkip      OrphanPolicy = "skip"
)

// Manifest is the sidecar JSON document written alongside a flush when the
// caller requests one, recording what was exported and when for downstream
// consumers.
type Manifest struct {
	ExportedAt  time.Time   `json:"exported_at"`
	IssueCount  int         `json:"issue_count"`
	Version     string      `json:"version"`
	ErrorPolicy ErrorPolicy `json:"error_policy,omitempty"`
	Complete    bool        `json:"complete"`
}

// Options configures a Run call.
type Options struct {
	SnapshotPath string
	WAL          *wal.WAL
	ManifestPath string // if non-empty, every snapshot flush also writes a manifest here
	ErrorPolicy  ErrorPolicy
	OrphanPolicy OrphanPolicy
	Now          func() int64
}

// Result reports what a Run call did, for the CLI collaborator to render.
type Result struct {
	Mode             Mode
	StoreCount       int
	SnapshotCount    int
	PendingExport    int
	Imported         int
	Exported         int
	SkippedCorrupt   int
	SkippedOrphan    int
	Complete         bool
}

// Run performs one reconciliation pass against s using the given options.
func Run(s *store.Store, mode Mode, opts Options) (*Result, error) {
	if opts.ErrorPolicy == "" {
		opts.ErrorPolicy = PolicyStrict
	}
	if opts.OrphanPolicy == "" {
		opts.OrphanPolicy = OrphanStrict
	}
	if opts.Now == nil {
		opts.Now = func() int64 { return time.Now().Unix() }
	}

	if mode != ModeStatus {
		conflicted, err := snapshot.HasMergeConflictMarkers(opts.SnapshotPath)
		if err != nil {
			return nil, err
		}
		if conflicted {
			return nil, ErrMergeConflictDetected
		}
	}

	switch mode {
	case ModeFlushOnly:
		return runFlush(s, opts)
	case ModeImportOnly:
		return runImport(s, opts)
	case ModeBidirectional:
		return runBidirectional(s, opts)
	case ModeMerge:
		return runMerge(s, opts)
	case ModeStatus:
		return runStatus(s, opts)
	default:
		return nil, fmt.Errorf("sync: unknown mode %q", mode)
	}
}

func runFlush(s *store.Store, opts Options) (*Result, error) {
	issues := s.AllIssues()
	if err := snapshot.Write(opts.SnapshotPath, issues); err != nil {
		return nil, err
	}
	for _, iss := range issues {
		s.ClearDirty(iss.ID)
	}
	if opts.WAL != nil {
		if err := opts.WAL.Truncate(); err != nil {
			return nil, err
		}
	}
	if opts.ManifestPath != "" {
		m := &Manifest{
			ExportedAt:  time.Unix(opts.Now(), 0).UTC(),
			IssueCount:  len(issues),
			Version:     "1",
			ErrorPolicy: opts.ErrorPolicy,
			Complete:    true,
		}
		if err := writeManifest(opts.ManifestPath, m); err != nil {
			return nil, err
		}
	}
	return &Result{
		Mode:       ModeFlushOnly,
		StoreCount: len(issues),
		Exported:   len(issues),
		Complete:   true,
	}, nil
}

func runImport(s *store.Store, opts Options) (*Result, error) {
	loaded, err := snapshot.Load(opts.SnapshotPath)
	if err != nil {
		return nil, err
	}
	result := &Result{Mode: ModeImportOnly, SkippedCorrupt: loaded.CorruptLines, Complete: true}
	if loaded.CorruptLines > 0 && opts.ErrorPolicy == PolicyStrict {
		return nil, fmt.Errorf("sync: %d corrupt snapshot lines under strict error policy", loaded.CorruptLines)
	}
	if loaded.CorruptLines > 0 && opts.ErrorPolicy == PolicyBestEffort {
		result.Complete = false
	}

	known := make(map[string]bool, len(loaded.Issues)+s.Count())
	for _, iss := range loaded.Issues {
		known[iss.ID] = true
	}
	for _, id := range s.IDs() {
		known[id] = true
	}

	for _, remote := range loaded.Issues {
		if err := applyOrphanPolicy(s, remote, known, opts.OrphanPolicy, opts.Now(), &result.SkippedOrphan); err != nil {
			return nil, err
		}
		if s.Exists(remote.ID) {
			local, _ := s.Get(remote.ID)
			if remote.UpdatedAt > local.UpdatedAt {
				if err := overwrite(s, remote); err != nil {
					return nil, err
				}
				result.Imported++
			}
		} else {
			if err := s.InsertImported(remote.Clone()); err != nil {
				return nil, err
			}
			result.Imported++
		}
	}
	result.StoreCount = s.Count()
	result.SnapshotCount = len(loaded.Issues)
	return result, nil
}

func runBidirectional(s *store.Store, opts Options) (*Result, error) {
	if len(s.GetDirtyIDs()) == 0 {
		return &Result{Mode: ModeBidirectional, StoreCount: s.Count(), Complete: true}, nil
	}
	res, err := runFlush(s, opts)
	if err != nil {
		return nil, err
	}
	res.Mode = ModeBidirectional
	return res, nil
}

func runMerge(s *store.Store, opts Options) (*Result, error) {
	loaded, err := snapshot.Load(opts.SnapshotPath)
	if err != nil {
		return nil, err
	}
	remoteByID := make(map[string]*issue.Issue, len(loaded.Issues))
	for _, iss := range loaded.Issues {
		remoteByID[iss.ID] = iss
	}

	result := &Result{Mode: ModeMerge, SkippedCorrupt: loaded.CorruptLines, Complete: true}

	for _, local := range s.AllIssues() {
		remote, ok := remoteByID[local.ID]
		if !ok {
			continue // local-only, preserved as-is
		}
		if remote.UpdatedAt > local.UpdatedAt {
			if err := overwrite(s, remote); err != nil {
				return nil, err
			}
		}
		delete(remoteByID, local.ID)
	}

	// Whatever's left in remoteByID exists only in the snapshot.
	known := make(map[string]bool, len(remoteByID)+s.Count())
	for _, id := range s.IDs() {
		known[id] = true
	}
	for id := range remoteByID {
		known[id] = true
	}
	for _, remote := range remoteByID {
		if err := applyOrphanPolicy(s, remote, known, opts.OrphanPolicy, opts.Now(), &result.SkippedOrphan); err != nil {
			return nil, err
		}
		if err := s.InsertImported(remote.Clone()); err != nil {
			return nil, err
		}
	}

	flushed, err := runFlush(s, opts)
	if err != nil {
		return nil, err
	}
	result.StoreCount = flushed.StoreCount
	result.Exported = flushed.Exported
	return result, nil
}

func runStatus(s *store.Store, opts Options) (*Result, error) {
	loaded, err := snapshot.Load(opts.SnapshotPath)
	if err != nil {
		return nil, err
	}
	return &Result{
		Mode:          ModeStatus,
		StoreCount:    s.Count(),
		SnapshotCount: len(loaded.Issues),
		PendingExport: len(s.GetDirtyIDs()),
		Complete:      true,
	}, nil
}

func overwrite(s *store.Store, remote *issue.Issue) error {
	_, err := s.Update(remote.ID, nil, func(iss *issue.Issue) error {
		applyRemoteFields(iss, remote)
		return nil
	})
	return err
}

// applyRemoteFields overwrites dst's content fields with src's, leaving
// dst's identity (id) and version bookkeeping to the caller (store.Update
// owns version/updated_at).
func applyRemoteFields(dst, src *issue.Issue) {
	contentHash := dst.ContentHash
	*dst = *src
	dst.ContentHash = contentHash
	if dst.Status == (issue.Status{}) {
		dst.Status = issue.StatusOpen
	}
	dst.Dependencies = append([]issue.Dependency(nil), src.Dependencies...)
	dst.Labels = append([]string(nil), src.Labels...)
	dst.Comments = append([]issue.Comment(nil), src.Comments...)
}

// applyOrphanPolicy checks remote's dependencies against known (every id the
// store will end up holding) and reconciles any that point nowhere,
// per the import policy. OrphanResurrect inserts a placeholder tombstone
// issue for each dangling target, so the edge has somewhere real to point;
// known is updated in place so a later remote issue referencing the same
// missing id finds it already resolved instead of resurrecting it twice.
func applyOrphanPolicy(s *store.Store, remote *issue.Issue, known map[string]bool, policy OrphanPolicy, now int64, skipped *int) error {
	var dangling []issue.Dependency
	for _, dep := range remote.Dependencies {
		if known != nil && !known[dep.DependsOnID] {
			dangling = append(dangling, dep)
		}
	}
	if len(dangling) == 0 {
		return nil
	}
	switch policy {
	case OrphanStrict:
		return fmt.Errorf("sync: %s references unknown dependency %s", remote.ID, dangling[0].DependsOnID)
	case OrphanSkip:
		filtered := remote.Dependencies[:0]
		for _, dep := range remote.Dependencies {
			if known == nil || known[dep.DependsOnID] {
				filtered = append(filtered, dep)
			}
		}
		remote.Dependencies = filtered
		*skipped += len(dangling)
	case OrphanResurrect:
		for _, dep := range dangling {
			if !s.Exists(dep.DependsOnID) {
				placeholder := &issue.Issue{
					ID:        dep.DependsOnID,
					Title:     fmt.Sprintf("placeholder for missing dependency %s", dep.DependsOnID),
					Status:    issue.StatusTombstone,
					CreatedAt: now,
				}
				if err := s.Insert(placeholder); err != nil {
					return fmt.Errorf("sync: resurrecting placeholder for %s: %w", dep.DependsOnID, err)
				}
			}
			if known != nil {
				known[dep.DependsOnID] = true
			}
		}
		*skipped += len(dangling)
	}
	return nil
}

func writeManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("sync: marshal manifest: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("sync: create temp manifest: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("sync: write manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync: fsync manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sync: close manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("sync: rename manifest into place: %w", err)
	}
	return nil
}
