// Package issue defines the core data model: issues, dependency edges,
// statuses, priorities, and the comment records attached to an issue.
package issue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Status represents the current state of an issue. The builtin values cover
// the standard lifecycle; Custom carries an open-ended variant so a
// workspace can record statuses this codebase doesn't know about by name
// (e.g. imported from another tool) without losing them on round-trip.
type Status struct {
	builtin builtinStatus
	custom  string
}

type builtinStatus int

const (
	statusInvalid builtinStatus = iota
	statusOpen
	statusInProgress
	statusBlocked
	statusDeferred
	statusClosed
	statusTombstone
	statusCustom
)

var (
	StatusOpen       = Status{builtin: statusOpen}
	StatusInProgress = Status{builtin: statusInProgress}
	StatusBlocked    = Status{builtin: statusBlocked}
	StatusDeferred   = Status{builtin: statusDeferred}
	StatusClosed     = Status{builtin: statusClosed}
	StatusTombstone  = Status{builtin: statusTombstone}
)

// CustomStatus builds a Status carrying an application-defined name.
func CustomStatus(name string) Status {
	return Status{builtin: statusCustom, custom: name}
}

// String returns the wire/display form of the status.
func (s Status) String() string {
	switch s.builtin {
	case statusOpen:
		return "open"
	case statusInProgress:
		return "in_progress"
	case statusBlocked:
		return "blocked"
	case statusDeferred:
		return "deferred"
	case statusClosed:
		return "closed"
	case statusTombstone:
		return "tombstone"
	case statusCustom:
		return s.custom
	default:
		return ""
	}
}

// IsClosed reports whether the status is closed or tombstone.
func (s Status) IsClosed() bool {
	return s.builtin == statusClosed || s.builtin == statusTombstone
}

// ParseStatus parses a wire status string, falling back to a Custom variant
// for anything that isn't one of the builtin names.
func ParseStatus(s string) Status {
	switch s {
	case "open":
		return StatusOpen
	case "in_progress":
		return StatusInProgress
	case "blocked":
		return StatusBlocked
	case "deferred":
		return StatusDeferred
	case "closed":
		return StatusClosed
	case "tombstone":
		return StatusTombstone
	case "":
		return Status{}
	default:
		return CustomStatus(s)
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("status must be a string, got %s", string(data))
	}
	*s = ParseStatus(str)
	return nil
}

// Priority is an integer 0 (critical) through 4 (backlog).
type Priority int

const (
	PriorityCritical Priority = 0
	PriorityHigh     Priority = 1
	PriorityMedium   Priority = 2
	PriorityLow      Priority = 3
	PriorityBacklog  Priority = 4
)

// Valid reports whether p is within the documented 0-4 range.
func (p Priority) Valid() bool {
	return p >= PriorityCritical && p <= PriorityBacklog
}

// ParsePriority accepts a numeric string ("0"-"4") or the legacy word forms.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "critical":
		return PriorityCritical, nil
	case "1", "high":
		return PriorityHigh, nil
	case "2", "medium", "":
		return PriorityMedium, nil
	case "3", "low":
		return PriorityLow, nil
	case "4", "backlog":
		return PriorityBacklog, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		p := Priority(n)
		if p.Valid() {
			return p, nil
		}
	}
	return 0, fmt.Errorf("invalid priority %q", s)
}

// IssueType categorizes the kind of work an issue tracks.
type IssueType string

const (
	TypeTask     IssueType = "task"
	TypeBug      IssueType = "bug"
	TypeFeature  IssueType = "feature"
	TypeEpic     IssueType = "epic"
	TypeChore    IssueType = "chore"
	TypeDocs     IssueType = "docs"
	TypeQuestion IssueType = "question"
)

// ValidTypes is the set of recognized issue types.
var ValidTypes = map[IssueType]bool{
	TypeTask: true, TypeBug: true, TypeFeature: true, TypeEpic: true,
	TypeChore: true, TypeDocs: true, TypeQuestion: true,
}

// DepType is the relationship a Dependency edge expresses.
type DepType string

const (
	DepBlocks      DepType = "blocks"
	DepRelated     DepType = "related"
	DepParentChild DepType = "parent_child"
	DepDuplicateOf DepType = "duplicate_of"
)

// ValidDepTypes is the set of recognized dependency types.
var ValidDepTypes = map[DepType]bool{
	DepBlocks: true, DepRelated: true, DepParentChild: true, DepDuplicateOf: true,
}

// CyclicDepTypes are the edge types considered by cycle detection and by
// ready/blocked computation; related and duplicate_of edges are
// informational only.
var CyclicDepTypes = map[DepType]bool{
	DepBlocks: true, DepParentChild: true,
}

// Dependency is a typed, directed edge from the owning issue to another.
type Dependency struct {
	DependsOnID string         `json:"depends_on_id"`
	DepType     DepType        `json:"dep_type"`
	CreatedAt   int64          `json:"created_at"`
	CreatedBy   string         `json:"created_by,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ThreadID    string         `json:"thread_id,omitempty"`
}

// Comment is a single timestamped note attached to an issue.
type Comment struct {
	Author    string `json:"author"`
	CreatedAt int64  `json:"created_at"`
	Text      string `json:"text"`
}

// Issue is the primary entity tracked by the workspace.
type Issue struct {
	ID              string       `json:"id"`
	ContentHash     string       `json:"content_hash"`
	Title           string       `json:"title"`
	Description     string       `json:"description,omitempty"`
	Design          string       `json:"design,omitempty"`
	AcceptanceCrit  string       `json:"acceptance_criteria,omitempty"`
	Notes           string       `json:"notes,omitempty"`
	CloseReason     string       `json:"close_reason,omitempty"`
	Status          Status       `json:"status"`
	Priority        Priority     `json:"priority"`
	IssueType       IssueType    `json:"issue_type"`
	Assignee        string       `json:"assignee,omitempty"`
	Owner           string       `json:"owner,omitempty"`
	CreatedBy       string       `json:"created_by,omitempty"`
	ExternalRef     string       `json:"external_ref,omitempty"`
	SourceSystem    string       `json:"source_system,omitempty"`
	CreatedAt       int64        `json:"created_at"`
	UpdatedAt       int64        `json:"updated_at"`
	ClosedAt        *int64       `json:"closed_at,omitempty"`
	DueAt           *int64       `json:"due_at,omitempty"`
	DeferUntil      *int64       `json:"defer_until,omitempty"`
	EstimatedMin    *int32       `json:"estimated_minutes,omitempty"`
	Version         uint64       `json:"version"`
	Pinned          bool         `json:"pinned,omitempty"`
	IsTemplate      bool         `json:"is_template,omitempty"`
	Labels          []string     `json:"labels,omitempty"`
	Dependencies    []Dependency `json:"dependencies,omitempty"`
	Comments        []Comment    `json:"comments,omitempty"`

	// Dirty is transient and never persisted in the snapshot.
	Dirty bool `json:"-"`
}

// Clone returns a deep copy, so callers can mutate the copy without
// aliasing slices/maps/pointers shared with the stored issue.
func (i *Issue) Clone() *Issue {
	c := *i
	if i.Labels != nil {
		c.Labels = append([]string(nil), i.Labels...)
	}
	if i.Dependencies != nil {
		c.Dependencies = append([]Dependency(nil), i.Dependencies...)
		for j, d := range c.Dependencies {
			if d.Metadata != nil {
				meta := make(map[string]any, len(d.Metadata))
				for k, v := range d.Metadata {
					meta[k] = v
				}
				c.Dependencies[j].Metadata = meta
			}
		}
	}
	if i.Comments != nil {
		c.Comments = append([]Comment(nil), i.Comments...)
	}
	if i.ClosedAt != nil {
		v := *i.ClosedAt
		c.ClosedAt = &v
	}
	if i.DueAt != nil {
		v := *i.DueAt
		c.DueAt = &v
	}
	if i.DeferUntil != nil {
		v := *i.DeferUntil
		c.DeferUntil = &v
	}
	if i.EstimatedMin != nil {
		v := *i.EstimatedMin
		c.EstimatedMin = &v
	}
	return &c
}

// HasLabel reports whether the issue carries the given label.
func (i *Issue) HasLabel(label string) bool {
	for _, l := range i.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// DependencyIDs returns the target ids of outgoing edges, optionally
// filtered to a single dep type.
func (i *Issue) DependencyIDs(filterType *DepType) []string {
	var ids []string
	for _, d := range i.Dependencies {
		if filterType == nil || d.DepType == *filterType {
			ids = append(ids, d.DependsOnID)
		}
	}
	return ids
}

// Validate checks the issue-level field invariants: a non-empty title of
// at most 500 bytes, a priority in range, a parseable status, and a known
// issue type when one is set.
func (i *Issue) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return ErrEmptyTitle
	}
	if len(i.Title) > 500 {
		return ErrTitleTooLong
	}
	if !i.Priority.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, i.Priority)
	}
	if i.Status.builtin == statusInvalid {
		return ErrInvalidStatus
	}
	if i.IssueType != "" && !ValidTypes[i.IssueType] {
		return fmt.Errorf("%w: %q", ErrInvalidIssueType, i.IssueType)
	}
	return nil
}
