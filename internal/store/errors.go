package store

import "errors"

// Concurrency and not-found sentinels, matched with errors.Is at the
// command boundary.
var (
	ErrNotFound        = errors.New("issue not found")
	ErrDuplicateId     = errors.New("issue id already exists")
	ErrVersionConflict = errors.New("version conflict")
	ErrCycleDetected   = errors.New("dependency cycle detected")
)
