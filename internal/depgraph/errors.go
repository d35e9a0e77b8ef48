package depgraph

import "errors"

// Graph-level sentinels, matched with errors.Is at the command boundary.
var (
	ErrSelfDependency = errors.New("depgraph: self dependency")
	ErrIssueNotFound  = errors.New("depgraph: issue not found")
)
