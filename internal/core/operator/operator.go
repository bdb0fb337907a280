// Package operator provides the rule operator catalog: the typed definitions of
// every operator that can be placed into a rule, converted from the plugin
// descriptors delivered by the backend.
package operator

import "sort"

// PluginType represents the kind of a rule operator
type PluginType string

const (
	// PluginTypePathInput reads a value path from the source or target entity
	PluginTypePathInput PluginType = "PathInputOperator"
	// PluginTypeTransform transforms one or more input values
	PluginTypeTransform PluginType = "TransformOperator"
	// PluginTypeComparison compares a source value with a target value
	PluginTypeComparison PluginType = "ComparisonOperator"
	// PluginTypeAggregation aggregates comparison or aggregation results
	PluginTypeAggregation PluginType = "AggregationOperator"
	// PluginTypeUnknown is used for every plugin type the editor does not know
	PluginTypeUnknown PluginType = "unknown"
)

// ParsePluginType maps a raw plugin type string onto a PluginType.
// Unrecognized values yield PluginTypeUnknown.
func ParsePluginType(s string) PluginType {
	switch PluginType(s) {
	case PluginTypePathInput, PluginTypeTransform, PluginTypeComparison, PluginTypeAggregation:
		return PluginType(s)
	default:
		return PluginTypeUnknown
	}
}

// Plugin IDs of the two built-in path input operators. The plugin ID is the only
// place where a path input records whether it reads the source or the target.
const (
	SourcePathInputID = "sourcePathInput"
	TargetPathInputID = "targetPathInput"
)

// ParameterType is the UI parameter kind of an operator parameter
type ParameterType string

const (
	ParameterTypeBoolean   ParameterType = "boolean"
	ParameterTypeInt       ParameterType = "int"
	ParameterTypeFloat     ParameterType = "float"
	ParameterTypeTextField ParameterType = "textField"
	ParameterTypeCode      ParameterType = "code"
	ParameterTypePassword  ParameterType = "password"
	ParameterTypeResource  ParameterType = "resource"
	ParameterTypeTextArea  ParameterType = "textArea"
	ParameterTypePathInput ParameterType = "pathInput"
)

// PortSpecification describes the number of input ports of an operator.
// A nil MaxInputPorts means the operator accepts any number of inputs.
type PortSpecification struct {
	MinInputPorts int  `json:"minInputPorts" msgpack:"min_input_ports"`
	MaxInputPorts *int `json:"maxInputPorts,omitempty" msgpack:"max_input_ports,omitempty"`
}

// FixedPorts returns a port specification with exactly n ports.
func FixedPorts(n int) PortSpecification {
	return PortSpecification{MinInputPorts: n, MaxInputPorts: &n}
}

// AtLeastPorts returns a port specification with n or more ports.
func AtLeastPorts(n int) PortSpecification {
	return PortSpecification{MinInputPorts: n}
}

// Unbounded reports whether there is no upper limit on input ports.
func (p PortSpecification) Unbounded() bool {
	return p.MaxInputPorts == nil
}

// Allows reports whether a node may have n input ports.
func (p PortSpecification) Allows(n int) bool {
	if n < p.MinInputPorts {
		return false
	}
	return p.MaxInputPorts == nil || n <= *p.MaxInputPorts
}

// ParameterValidationResult is returned by custom parameter validators
type ParameterValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
	// Intent is one of primary, success, warning, danger
	Intent string `json:"intent,omitempty"`
}

// ParameterValidator validates a single parameter value
type ParameterValidator func(value string) ParameterValidationResult

// AutoCompletion describes the auto-completion support of a parameter
type AutoCompletion struct {
	AutoCompleteValueWithLabels       bool     `json:"autoCompleteValueWithLabels" yaml:"autoCompleteValueWithLabels"`
	AllowOnlyAutoCompletedValues      bool     `json:"allowOnlyAutoCompletedValues" yaml:"allowOnlyAutoCompletedValues"`
	AutoCompletionDependsOnParameters []string `json:"autoCompletionDependsOnParameters,omitempty" yaml:"autoCompletionDependsOnParameters,omitempty"`
}

// ParameterSpecification describes one operator parameter
type ParameterSpecification struct {
	Label            string             `json:"label"`
	Description      string             `json:"description,omitempty"`
	Type             ParameterType      `json:"type"`
	Required         bool               `json:"required"`
	Advanced         bool               `json:"advanced"`
	DefaultValue     string             `json:"defaultValue"`
	AutoCompletion   *AutoCompletion    `json:"autoCompletion,omitempty"`
	CustomValidation ParameterValidator `json:"-"`
}

// NewParameterSpecification returns a required text field parameter with an
// empty default value. Callers adjust the remaining fields as needed.
func NewParameterSpecification(label string) ParameterSpecification {
	return ParameterSpecification{
		Label:    label,
		Type:     ParameterTypeTextField,
		Required: true,
	}
}

// RuleOperator is a catalog entry. It is immutable once loaded.
// PRINCIPLES:
// - SRP: Only describes an operator, never a placed node
type RuleOperator struct {
	PluginType             PluginType                        `json:"pluginType"`
	PluginID               string                            `json:"pluginId"`
	Label                  string                            `json:"label"`
	Description            string                            `json:"description,omitempty"`
	Categories             []string                          `json:"categories,omitempty"`
	ParameterSpecification map[string]ParameterSpecification `json:"parameterSpecification"`
	PortSpecification      PortSpecification                 `json:"portSpecification"`
	Tags                   []string                          `json:"tags"`
}

// ParameterIDs returns the parameter keys in sorted order.
func (o RuleOperator) ParameterIDs() []string {
	ids := make([]string, 0, len(o.ParameterSpecification))
	for id := range o.ParameterSpecification {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultParameters returns the default value of every parameter.
func (o RuleOperator) DefaultParameters() map[string]string {
	params := make(map[string]string, len(o.ParameterSpecification))
	for id, spec := range o.ParameterSpecification {
		params[id] = spec.DefaultValue
	}
	return params
}
