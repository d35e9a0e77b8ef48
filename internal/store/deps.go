package store

import (
	"fmt"

	"beads/internal/depgraph"
	"beads/internal/issue"
	"beads/internal/wal"
)

// AddDependency adds a typed edge from->to. It fails
// ErrSelfDependency if from==to, ErrIssueNotFound if either endpoint is
// absent, ErrInvalidDepType for an unrecognized type, and ErrCycleDetected
// if the edge would close a cycle among {blocks, parent_child} edges — in
// which case the store is left unchanged.
func (s *Store) AddDependency(from, to string, depType issue.DepType, meta map[string]any, threadID, actor string, now int64) error {
	if from == to {
		return fmt.Errorf("%w: %s", depgraph.ErrSelfDependency, from)
	}
	if !issue.ValidDepTypes[depType] {
		return fmt.Errorf("%w: %s", issue.ErrInvalidDepType, depType)
	}
	if !s.Exists(from) {
		return fmt.Errorf("%w: %s", depgraph.ErrIssueNotFound, from)
	}
	if !s.Exists(to) {
		return fmt.Errorf("%w: %s", depgraph.ErrIssueNotFound, to)
	}

	if issue.CyclicDepTypes[depType] {
		g := depgraph.New(s.AllIssues(), now)
		if g.WouldCycle(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrCycleDetected, from, to)
		}
	}

	_, err := s.updateOp(wal.OpDepAdd, from, nil, func(iss *issue.Issue) error {
		iss.Dependencies = append(iss.Dependencies, issue.Dependency{
			DependsOnID: to,
			DepType:     depType,
			CreatedAt:   now,
			CreatedBy:   actor,
			Metadata:    meta,
			ThreadID:    threadID,
		})
		return nil
	})
	return err
}

// RemoveDependency removes the first from->to edge of depType. Removing an
// edge that doesn't exist is a true no-op, not an error: no version bump,
// no WAL record, no dirty flag.
func (s *Store) RemoveDependency(from, to string, depType issue.DepType) error {
	iss, ok := s.byID[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, from)
	}
	present := false
	for _, dep := range iss.Dependencies {
		if dep.DependsOnID == to && dep.DepType == depType {
			present = true
			break
		}
	}
	if !present {
		return nil
	}

	_, err := s.updateOp(wal.OpDepRemove, from, nil, func(next *issue.Issue) error {
		for i, dep := range next.Dependencies {
			if dep.DependsOnID == to && dep.DepType == depType {
				next.Dependencies = append(next.Dependencies[:i], next.Dependencies[i+1:]...)
				break
			}
		}
		return nil
	})
	return err
}
