// Package ruletree converts between the flat rule graph and the nested
// operator tree exchanged with the backend. The tree has no shared
// sub-expressions: every use of a value input is a separate copy.
package ruletree

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flowgraph/ruleeditor/internal/core/rule"
)

// Domain errors
var (
	ErrUnknownOperatorType  = errors.New("unknown operator type")
	ErrInvalidOperator      = errors.New("invalid operator")
	ErrIncompatibleOperator = errors.New("node cannot be converted to an operator")
	ErrNilRule              = errors.New("rule cannot be nil")
)

// OperatorType is the type discriminator of a tree operator
type OperatorType string

const (
	TypePathInput      OperatorType = "pathInput"
	TypeTransformInput OperatorType = "transformInput"
	TypeComparison     OperatorType = "comparison"
	TypeAggregation    OperatorType = "aggregation"
)

// Operator is one node of the external rule tree. Which fields are used
// depends on Type:
//
//	pathInput       ID, Path
//	transformInput  ID, Function, Inputs, Parameters
//	comparison      ID, Metric, Inputs (source, target; either may be null), Parameters
//	aggregation     ID, Aggregator, Inputs, Parameters
type Operator struct {
	Type       OperatorType      `json:"type" msgpack:"type"`
	ID         string            `json:"id" msgpack:"id"`
	Path       string            `json:"path,omitempty" msgpack:"path,omitempty"`
	Function   string            `json:"function,omitempty" msgpack:"function,omitempty"`
	Metric     string            `json:"metric,omitempty" msgpack:"metric,omitempty"`
	Aggregator string            `json:"aggregator,omitempty" msgpack:"aggregator,omitempty"`
	Inputs     []*Operator       `json:"inputs,omitempty" msgpack:"inputs,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty" msgpack:"parameters,omitempty"`
}

// Validate checks the operator and all of its inputs.
func (o *Operator) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: operator is null", ErrInvalidOperator)
	}
	switch o.Type {
	case TypePathInput:
		if len(o.Inputs) > 0 {
			return fmt.Errorf("%w: path input '%s' cannot have inputs", ErrInvalidOperator, o.ID)
		}
		return nil
	case TypeTransformInput:
		if o.Function == "" {
			return fmt.Errorf("%w: transform '%s' has no function", ErrInvalidOperator, o.ID)
		}
	case TypeComparison:
		if o.Metric == "" {
			return fmt.Errorf("%w: comparison '%s' has no metric", ErrInvalidOperator, o.ID)
		}
		if len(o.Inputs) > 2 {
			return fmt.Errorf("%w: comparison '%s' has %d inputs", ErrInvalidOperator, o.ID, len(o.Inputs))
		}
		for _, in := range o.Inputs {
			if in != nil {
				if err := in.Validate(); err != nil {
					return err
				}
			}
		}
		return nil
	case TypeAggregation:
		if o.Aggregator == "" {
			return fmt.Errorf("%w: aggregation '%s' has no aggregator", ErrInvalidOperator, o.ID)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperatorType, o.Type)
	}
	for _, in := range o.Inputs {
		if err := in.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Rule is a rule tree together with its editor layout
type Rule struct {
	Operator *Operator  `json:"operator" msgpack:"operator"`
	Layout   rule.Layout `json:"layout" msgpack:"layout"`
}

// Marshal encodes a rule as backend JSON.
func Marshal(r *Rule) ([]byte, error) {
	if r == nil {
		return nil, ErrNilRule
	}
	return json.Marshal(r)
}

// Unmarshal decodes and validates backend JSON.
func Unmarshal(data []byte) (*Rule, error) {
	var r Rule
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	if r.Operator != nil {
		if err := r.Operator.Validate(); err != nil {
			return nil, err
		}
	}
	return &r, nil
}
