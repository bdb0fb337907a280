package store

import "errors"

// Domain errors
var (
	ErrInvalidProjectID = errors.New("invalid project ID")
	ErrInvalidTaskID    = errors.New("invalid task ID")
	ErrNilRecord        = errors.New("rule record cannot be nil")
	ErrNilRule          = errors.New("rule cannot be nil")
	ErrRuleNotFound     = errors.New("rule not found")

	ErrInvalidLimit     = errors.New("limit cannot be negative")
	ErrInvalidOffset    = errors.New("offset cannot be negative")
	ErrInvalidTimeRange = errors.New("invalid time range: since is after before")
)
