package editor

import (
	"errors"

	"github.com/flowgraph/ruleeditor/internal/core/change"
	"github.com/flowgraph/ruleeditor/internal/core/rule"
	"github.com/flowgraph/ruleeditor/pkg/validation"
)

// Mutation errors. Some alias lower layer sentinels so errors.Is matches
// regardless of where the failure was detected.
var (
	ErrNotEditable       = errors.New("rule is not editable")
	ErrSelfLoop          = errors.New("node cannot be connected to itself")
	ErrNoFreePort        = errors.New("target node has no free input port")
	ErrUnknownParameter  = errors.New("unknown parameter")
	ErrUnknownOperator   = errors.New("unknown operator")
	ErrInvalidConnection = validation.ErrInvalidConnection
	ErrNodeNotFound      = rule.ErrNodeNotFound
	ErrEdgeNotFound      = change.ErrEdgeNotFound
	ErrPortOccupied      = change.ErrPortOccupied
	ErrPortOutOfRange    = rule.ErrPortOutOfRange
)

// reason maps a rejection to a short metric label.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrNotEditable):
		return "not_editable"
	case errors.Is(err, ErrInvalidConnection):
		return "invalid_connection"
	case errors.Is(err, ErrSelfLoop):
		return "self_loop"
	case errors.Is(err, ErrNoFreePort):
		return "no_free_port"
	case errors.Is(err, ErrPortOccupied):
		return "port_occupied"
	case errors.Is(err, ErrPortOutOfRange):
		return "port_out_of_range"
	case errors.Is(err, ErrNodeNotFound):
		return "node_not_found"
	case errors.Is(err, ErrEdgeNotFound), errors.Is(err, rule.ErrInvalidEdgeID):
		return "edge_not_found"
	case errors.Is(err, ErrUnknownParameter):
		return "unknown_parameter"
	case errors.Is(err, ErrUnknownOperator):
		return "unknown_operator"
	default:
		return "other"
	}
}
