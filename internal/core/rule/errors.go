// Package rule defines domain-specific errors
package rule

import (
	"errors"
	"strings"
)

// Domain errors
var (
	// Node errors
	ErrNilNode        = errors.New("node cannot be nil")
	ErrInvalidNodeID  = errors.New("invalid node ID")
	ErrNodeNotFound   = errors.New("node not found")
	ErrDuplicateNode  = errors.New("duplicate node ID")
	ErrInvalidEdgeID  = errors.New("invalid edge ID")
	ErrPortOutOfRange = errors.New("port index out of range")

	// Graph validation errors
	ErrMultipleRoots = errors.New("rule has more than one root node")
	ErrCycle         = errors.New("rule contains cycles")
	ErrNotConnected  = errors.New("node is not connected to the root node")
	ErrUnknownInput  = errors.New("node input references an unknown node")
)

// NodeError attaches a message to a single offending node
type NodeError struct {
	NodeID  string `json:"nodeId"`
	Message string `json:"message,omitempty"`
}

// ValidationError is returned when a rule graph violates a structural
// invariant. It unwraps to one or more of the graph validation sentinels.
type ValidationError struct {
	Message    string
	NodeErrors []NodeError
	errs       []error
}

// NewValidationError creates a validation error unwrapping to errs.
func NewValidationError(message string, nodeErrors []NodeError, errs ...error) *ValidationError {
	return &ValidationError{Message: message, NodeErrors: nodeErrors, errs: errs}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap returns the sentinel errors describing the violation.
func (e *ValidationError) Unwrap() []error {
	return e.errs
}

// NodeIDs returns the IDs of all offending nodes.
func (e *ValidationError) NodeIDs() []string {
	ids := make([]string, 0, len(e.NodeErrors))
	for _, ne := range e.NodeErrors {
		ids = append(ids, ne.NodeID)
	}
	return ids
}

func quoteJoin(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "'" + id + "'"
	}
	return strings.Join(quoted, ", ")
}
