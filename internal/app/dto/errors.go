package dto

import "errors"

// Request errors
var (
	ErrMissingProjectID = errors.New("project ID is required")
	ErrMissingTaskID    = errors.New("task ID is required")
	ErrMissingRule      = errors.New("rule is required")
	ErrSaveFailed       = errors.New("rule save failed")
)
