// Package store implements the in-memory authoritative issue collection:
// insert/update/delete, filtered listing, counting, claiming, and dirty
// tracking, backed by an ordered sequence of ids plus an id-to-record map
// so iteration order is stable while lookup by id stays O(1).
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"beads/internal/contenthash"
	"beads/internal/issue"
	"beads/internal/wal"
)

// Clock supplies the current unix-seconds timestamp used for created_at,
// updated_at, and closed_at, injected so tests can control time instead of
// the store calling time.Now() itself.
type Clock func() int64

// Store is the in-memory issue collection for one open workspace.
type Store struct {
	order []string // issue ids, insertion order
	byID  map[string]*issue.Issue
	dirty map[string]bool
	wal   *wal.WAL // may be nil, in which case nothing is logged
	clock Clock
}

// New creates an empty store. wal may be nil to skip WAL logging.
func New(w *wal.WAL, clock Clock) *Store {
	return &Store{
		byID:  make(map[string]*issue.Issue),
		dirty: make(map[string]bool),
		wal:   w,
		clock: clock,
	}
}

func (s *Store) now() int64 {
	if s.clock == nil {
		return 0
	}
	return s.clock()
}

// LoadIssue inserts an issue into the store without marking it dirty and
// without writing a WAL record — used when replaying the snapshot or WAL
// during workspace Open, where the on-disk state is already authoritative.
func (s *Store) LoadIssue(iss *issue.Issue) {
	if _, exists := s.byID[iss.ID]; !exists {
		s.order = append(s.order, iss.ID)
	}
	s.byID[iss.ID] = iss
}

// Insert adds a new issue, assigning version=1, appending a WAL INSERT
// record, and marking it dirty. Fails ErrDuplicateId if the id is taken.
func (s *Store) Insert(iss *issue.Issue) error {
	if _, exists := s.byID[iss.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateId, iss.ID)
	}
	if iss.Status == (issue.Status{}) {
		iss.Status = issue.StatusOpen
	}
	if err := iss.Validate(); err != nil {
		return err
	}
	now := s.now()
	if iss.CreatedAt == 0 {
		iss.CreatedAt = now
	}
	iss.UpdatedAt = iss.CreatedAt
	iss.Version = 1
	iss.ContentHash = contenthash.HashString(iss)

	if err := s.appendWAL(wal.OpInsert, iss); err != nil {
		return err
	}
	s.order = append(s.order, iss.ID)
	s.byID[iss.ID] = iss
	s.dirty[iss.ID] = true
	iss.Dirty = true
	return nil
}

// InsertImported adds an issue that already has a history elsewhere (a
// snapshot from another machine, typically): unlike Insert it keeps the
// record's version and timestamps rather than restarting them, so the
// version counter never regresses when the issue is re-exported. It still
// appends a WAL INSERT and marks the issue dirty.
func (s *Store) InsertImported(iss *issue.Issue) error {
	if _, exists := s.byID[iss.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateId, iss.ID)
	}
	if iss.Status == (issue.Status{}) {
		iss.Status = issue.StatusOpen
	}
	if err := iss.Validate(); err != nil {
		return err
	}
	if iss.Version == 0 {
		iss.Version = 1
	}
	iss.ContentHash = contenthash.HashString(iss)

	if err := s.appendWAL(wal.OpInsert, iss); err != nil {
		return err
	}
	s.order = append(s.order, iss.ID)
	s.byID[iss.ID] = iss
	s.dirty[iss.ID] = true
	iss.Dirty = true
	return nil
}

// Update applies fn to a clone of the stored issue, enforces optimistic
// concurrency against expectedVersion when non-nil, bumps version and
// updated_at, appends a WAL UPDATE record, and marks the issue dirty.
func (s *Store) Update(id string, expectedVersion *uint64, fn func(*issue.Issue) error) (*issue.Issue, error) {
	return s.updateOp(wal.OpUpdate, id, expectedVersion, fn)
}

// updateOp is Update's implementation, parameterized on the WAL op code so
// that dependency, label, and comment mutations can share the same
// version-bumping, validation, and dirty-tracking logic while logging
// their own op code instead of a generic UPDATE.
func (s *Store) updateOp(op wal.OpCode, id string, expectedVersion *uint64, fn func(*issue.Issue) error) (*issue.Issue, error) {
	current, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if expectedVersion != nil && *expectedVersion != current.Version {
		return nil, fmt.Errorf("%w: %s expected version %d, got %d", ErrVersionConflict, id, *expectedVersion, current.Version)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.ContentHash = contenthash.HashString(next)

	now := s.now()
	next.UpdatedAt = now
	if next.Status.IsClosed() && next.ClosedAt == nil {
		next.ClosedAt = &now
	}
	if !next.Status.IsClosed() {
		next.ClosedAt = nil
	}
	next.Version = current.Version + 1

	if err := s.appendWAL(op, next); err != nil {
		return nil, err
	}
	s.byID[id] = next
	s.dirty[id] = true
	next.Dirty = true
	return next, nil
}

// Claim atomically sets assignee=actor and status=in_progress, but only if
// the issue is currently open.
func (s *Store) Claim(id, actor string, expectedVersion *uint64) (*issue.Issue, error) {
	return s.Update(id, expectedVersion, func(iss *issue.Issue) error {
		if iss.Status != issue.StatusOpen {
			return fmt.Errorf("cannot claim issue %s: status is %s, not open", id, iss.Status)
		}
		iss.Assignee = actor
		iss.Status = issue.StatusInProgress
		return nil
	})
}

// Defer sets defer_until on id, hiding it from default listings until the
// given timestamp passes.
func (s *Store) Defer(id string, until int64, expectedVersion *uint64) (*issue.Issue, error) {
	return s.Update(id, expectedVersion, func(iss *issue.Issue) error {
		iss.DeferUntil = &until
		return nil
	})
}

// Undefer clears defer_until on id, making it immediately eligible for
// default listings again regardless of the timestamp it carried.
func (s *Store) Undefer(id string, expectedVersion *uint64) (*issue.Issue, error) {
	return s.Update(id, expectedVersion, func(iss *issue.Issue) error {
		iss.DeferUntil = nil
		return nil
	})
}

// LabelAdd adds label to id, logging a LABEL_ADD WAL record. Adding a
// label the issue already carries is a true no-op: no version bump, no WAL
// record, no dirty flag.
func (s *Store) LabelAdd(id, label string) (*issue.Issue, error) {
	if iss, ok := s.byID[id]; ok && iss.HasLabel(label) {
		return iss, nil
	}
	return s.updateOp(wal.OpLabelAdd, id, nil, func(iss *issue.Issue) error {
		iss.Labels = append(iss.Labels, label)
		return nil
	})
}

// LabelRemove removes label from id, logging a LABEL_REMOVE WAL record.
// Removing a label the issue doesn't carry is a true no-op: no version
// bump, no WAL record, no dirty flag.
func (s *Store) LabelRemove(id, label string) (*issue.Issue, error) {
	if iss, ok := s.byID[id]; ok && !iss.HasLabel(label) {
		return iss, nil
	}
	return s.updateOp(wal.OpLabelRemove, id, nil, func(iss *issue.Issue) error {
		for i, l := range iss.Labels {
			if l == label {
				iss.Labels = append(iss.Labels[:i], iss.Labels[i+1:]...)
				break
			}
		}
		return nil
	})
}

// CommentAdd appends a timestamped comment to id, logging a COMMENT_ADD
// WAL record.
func (s *Store) CommentAdd(id, author, text string, createdAt int64) (*issue.Issue, error) {
	return s.updateOp(wal.OpCommentAdd, id, nil, func(iss *issue.Issue) error {
		iss.Comments = append(iss.Comments, issue.Comment{
			Author:    author,
			CreatedAt: createdAt,
			Text:      text,
		})
		return nil
	})
}

// Delete removes id. Soft-delete (hard=false) sets status=tombstone, which
// leaves the record in the store (and snapshot) but hidden from default
// listings. Hard-delete removes the entry outright. cascade additionally
// applies the same operation to every issue that depends on id, directly or
// transitively, via parent_child or blocks edges.
func (s *Store) Delete(id string, cascade, hard bool) error {
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	targets := []string{id}
	if cascade {
		targets = append(targets, s.cascadeTargets(id)...)
	}

	for _, tid := range targets {
		if err := s.deleteOne(tid, hard); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) cascadeTargets(root string) []string {
	visited := map[string]bool{root: true}
	var result []string
	queue := []string{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, candidate := range s.order {
			iss := s.byID[candidate]
			if visited[candidate] {
				continue
			}
			for _, dep := range iss.Dependencies {
				if dep.DependsOnID == id && (dep.DepType == issue.DepParentChild || dep.DepType == issue.DepBlocks) {
					visited[candidate] = true
					result = append(result, candidate)
					queue = append(queue, candidate)
					break
				}
			}
		}
	}
	return result
}

func (s *Store) deleteOne(id string, hard bool) error {
	if hard {
		delete(s.byID, id)
		delete(s.dirty, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return s.appendWALRaw(wal.OpDelete, map[string]string{"id": id})
	}

	_, err := s.Update(id, nil, func(iss *issue.Issue) error {
		iss.Status = issue.StatusTombstone
		return nil
	})
	return err
}

// Get returns the issue with id, or ErrNotFound.
func (s *Store) Get(id string) (*issue.Issue, error) {
	iss, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return iss, nil
}

// Exists reports whether id is present (including tombstones).
func (s *Store) Exists(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// IDs returns every known id, in insertion order, used by id generators and
// orphan checks that need the full collision set.
func (s *Store) IDs() []string {
	return append([]string(nil), s.order...)
}

// Count returns the total number of records in the store, tombstones
// included. Use List to count only what a default listing would show.
func (s *Store) Count() int {
	return len(s.order)
}

// CountBy groups every record by the given field ("status", "priority",
// "issue_type", or "assignee") and returns per-group counts. Like Count it
// covers tombstones too (they surface under their own status bucket), so
// the grouped counts always sum to Count(). Issues with an empty value for
// the field land under the "" key.
func (s *Store) CountBy(groupBy string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, id := range s.order {
		iss := s.byID[id]
		var key string
		switch groupBy {
		case "status":
			key = iss.Status.String()
		case "priority":
			key = strconv.Itoa(int(iss.Priority))
		case "issue_type":
			key = string(iss.IssueType)
		case "assignee":
			key = iss.Assignee
		default:
			return nil, fmt.Errorf("store: cannot group by %q", groupBy)
		}
		counts[key]++
	}
	return counts, nil
}

// GetDirtyIDs returns the ids whose dirty flag is set.
func (s *Store) GetDirtyIDs() []string {
	ids := make([]string, 0, len(s.dirty))
	for id, d := range s.dirty {
		if d {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ClearDirty clears the dirty flag for id, called after a successful flush.
func (s *Store) ClearDirty(id string) {
	delete(s.dirty, id)
	if iss, ok := s.byID[id]; ok {
		iss.Dirty = false
	}
}

// ClearAllDirty clears every dirty flag, used after a full flush.
func (s *Store) ClearAllDirty() {
	for id := range s.dirty {
		s.ClearDirty(id)
	}
}

// AllIssues returns every issue, including tombstones, in store order — the
// set the sync engine flushes to the snapshot.
func (s *Store) AllIssues() []*issue.Issue {
	out := make([]*issue.Issue, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *Store) appendWAL(op wal.OpCode, iss *issue.Issue) error {
	if s.wal == nil {
		return nil
	}
	payload, err := json.Marshal(struct {
		V int `json:"v"`
		*issue.Issue
	}{V: 1, Issue: iss})
	if err != nil {
		return fmt.Errorf("store: encode wal payload: %w", err)
	}
	_, err = s.wal.Append(op, payload)
	return err
}

func (s *Store) appendWALRaw(op wal.OpCode, v any) error {
	if s.wal == nil {
		return nil
	}
	payload, err := json.Marshal(struct {
		V int `json:"v"`
		D any `json:"data"`
	}{V: 1, D: v})
	if err != nil {
		return fmt.Errorf("store: encode wal payload: %w", err)
	}
	_, err = s.wal.Append(op, payload)
	return err
}

// Filter is the listing predicate: a conjunction of optional clauses, all
// of which must match for an issue to be listed.
type Filter struct {
	Status              *issue.Status
	MinPriority         *issue.Priority
	MaxPriority         *issue.Priority
	IssueType           *issue.IssueType
	Assignee            *string
	Label               *string
	LabelAny            []string
	ParentID            *string
	TitleContains       *string
	DescriptionContains *string
	NotesContains       *string
	OverdueAsOf         *int64 // due_at < this value
	IncludeDeferred     bool   // include issues with defer_until > now
	IncludeTombstones   bool
	Limit               int
	SortField           string // "created_at", "updated_at", "priority"
	SortDescending      bool
}

// List returns issues matching filter as of now (used to decide overdue and
// deferred clauses), sorted per SortField with id as the ascending
// tie-break, and truncated to Limit when positive.
func (s *Store) List(f *Filter, now int64) []*issue.Issue {
	if f == nil {
		f = &Filter{}
	}
	var result []*issue.Issue
	for _, id := range s.order {
		iss := s.byID[id]
		if matches(iss, f, now) {
			result = append(result, iss)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		less := compareBy(a, b, f.SortField)
		if f.SortDescending {
			less = -less
		}
		if less != 0 {
			return less < 0
		}
		return a.ID < b.ID
	})

	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result
}

func compareBy(a, b *issue.Issue, field string) int {
	switch field {
	case "updated_at":
		return cmpInt64(a.UpdatedAt, b.UpdatedAt)
	case "priority":
		return int(a.Priority) - int(b.Priority)
	default: // "created_at" and unspecified
		return cmpInt64(a.CreatedAt, b.CreatedAt)
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func matches(iss *issue.Issue, f *Filter, now int64) bool {
	if !f.IncludeTombstones && iss.Status == issue.StatusTombstone {
		return false
	}
	if f.Status != nil && iss.Status != *f.Status {
		return false
	}
	if f.MinPriority != nil && iss.Priority < *f.MinPriority {
		return false
	}
	if f.MaxPriority != nil && iss.Priority > *f.MaxPriority {
		return false
	}
	if f.IssueType != nil && iss.IssueType != *f.IssueType {
		return false
	}
	if f.Assignee != nil && iss.Assignee != *f.Assignee {
		return false
	}
	if f.Label != nil && !iss.HasLabel(*f.Label) {
		return false
	}
	if len(f.LabelAny) > 0 {
		any := false
		for _, l := range f.LabelAny {
			if iss.HasLabel(l) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	if f.TitleContains != nil && !containsFold(iss.Title, *f.TitleContains) {
		return false
	}
	if f.DescriptionContains != nil && !containsFold(iss.Description, *f.DescriptionContains) {
		return false
	}
	if f.NotesContains != nil && !containsFold(iss.Notes, *f.NotesContains) {
		return false
	}
	if f.ParentID != nil {
		hasParent := false
		for _, dep := range iss.Dependencies {
			if dep.DepType == issue.DepParentChild && dep.DependsOnID == *f.ParentID {
				hasParent = true
				break
			}
		}
		if !hasParent {
			return false
		}
	}
	if f.OverdueAsOf != nil {
		if iss.DueAt == nil || *iss.DueAt >= *f.OverdueAsOf {
			return false
		}
	}
	if !f.IncludeDeferred && iss.DeferUntil != nil && *iss.DeferUntil > now {
		// Deferred issues are excluded from default listings unless the
		// caller explicitly opts in.
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// Cursor is a restartable iterator over a filtered listing. It holds its own
// copy of the matching slice, so callers never touch the store's internal
// containers and a Reset replays the same result set.
type Cursor struct {
	items []*issue.Issue
	pos   int
}

// Cursor returns an iterator over the issues matching f as of now, in the
// same order List would return them.
func (s *Store) Cursor(f *Filter, now int64) *Cursor {
	return &Cursor{items: s.List(f, now)}
}

// Next returns the next issue and true, or nil and false once exhausted.
func (c *Cursor) Next() (*issue.Issue, bool) {
	if c.pos >= len(c.items) {
		return nil, false
	}
	iss := c.items[c.pos]
	c.pos++
	return iss, true
}

// Reset rewinds the cursor to the start of its result set.
func (c *Cursor) Reset() { c.pos = 0 }

// Len reports how many issues the cursor iterates over in total.
func (c *Cursor) Len() int { return len(c.items) }
