package issue

import "errors"

// Field validation sentinels returned by Issue.Validate.
var (
	ErrEmptyTitle       = errors.New("title is required")
	ErrTitleTooLong     = errors.New("title must be 500 bytes or less")
	ErrInvalidPriority  = errors.New("priority must be between 0 and 4")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidIssueType = errors.New("invalid issue type")
	ErrInvalidDepType   = errors.New("invalid dependency type")
)
