// Package validation provides the connection rules, pre-save graph checks
// and struct validation of the rule editor.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrTooManyInputs     = errors.New("node has more inputs than its operator allows")
	ErrInvalidConnection = errors.New("invalid connection")
	ErrInvalidParameter  = errors.New("invalid parameter value")
	ErrInvalidNode       = errors.New("invalid rule node")
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value"`
	Message string      `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
