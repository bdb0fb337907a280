package rule

import (
	"github.com/flowgraph/ruleeditor/internal/core/operator"
)

// ParameterValue is the current value of a node parameter. Label is set for
// auto-completed values that display differently from the stored value.
type ParameterValue struct {
	Value string `json:"value" msgpack:"value"`
	Label string `json:"label,omitempty" msgpack:"label,omitempty"`
}

// Position is the layout position of a node
type Position struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Add returns p shifted by offset.
func (p Position) Add(offset Position) Position {
	return Position{X: p.X + offset.X, Y: p.Y + offset.Y}
}

// Node is a placed operator in a rule graph.
// Inputs is indexed by target port; an empty string is an empty port.
// PRINCIPLES:
// - KISS: Edges are derived from Inputs, never stored twice
type Node struct {
	ID                string                     `json:"id" msgpack:"id"`
	PluginType        operator.PluginType        `json:"pluginType" msgpack:"plugin_type"`
	PluginID          string                     `json:"pluginId" msgpack:"plugin_id"`
	Label             string                     `json:"label,omitempty" msgpack:"label,omitempty"`
	Description       string                     `json:"description,omitempty" msgpack:"description,omitempty"`
	Parameters        map[string]ParameterValue  `json:"parameters" msgpack:"parameters"`
	Inputs            []string                   `json:"inputs" msgpack:"inputs"`
	Position          *Position                  `json:"position,omitempty" msgpack:"position,omitempty"`
	PortSpecification operator.PortSpecification `json:"portSpecification" msgpack:"port_specification"`
	Tags              []string                   `json:"tags,omitempty" msgpack:"tags,omitempty"`
}

// NewNode creates a node for the operator with default parameter values and
// MinInputPorts empty input ports.
func NewNode(id string, op operator.RuleOperator, pos *Position) *Node {
	params := make(map[string]ParameterValue, len(op.ParameterSpecification))
	for key, value := range op.DefaultParameters() {
		params[key] = ParameterValue{Value: value}
	}
	n := &Node{
		ID:                id,
		PluginType:        op.PluginType,
		PluginID:          op.PluginID,
		Label:             op.Label,
		Description:       op.Description,
		Parameters:        params,
		Inputs:            make([]string, op.PortSpecification.MinInputPorts),
		PortSpecification: op.PortSpecification,
		Tags:              append([]string(nil), op.Tags...),
	}
	if pos != nil {
		p := *pos
		n.Position = &p
	}
	return n
}

// Validate ensures node integrity
func (n *Node) Validate() error {
	if n == nil {
		return ErrNilNode
	}
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	return nil
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Parameters = make(map[string]ParameterValue, len(n.Parameters))
	for k, v := range n.Parameters {
		c.Parameters[k] = v
	}
	c.Inputs = append([]string(nil), n.Inputs...)
	if c.Inputs == nil {
		c.Inputs = []string{}
	}
	if n.Position != nil {
		p := *n.Position
		c.Position = &p
	}
	if n.PortSpecification.MaxInputPorts != nil {
		m := *n.PortSpecification.MaxInputPorts
		c.PortSpecification.MaxInputPorts = &m
	}
	c.Tags = append([]string(nil), n.Tags...)
	return &c
}

// Parameter returns the value of a parameter, or "" when unset.
func (n *Node) Parameter(key string) string {
	return n.Parameters[key].Value
}

// IsPathInput reports whether the node reads an entity path.
func (n *Node) IsPathInput() bool {
	return n.PluginType == operator.PluginTypePathInput
}

// IsSourcePath reports whether the node reads a path of the source entity.
func (n *Node) IsSourcePath() bool {
	return n.IsPathInput() && n.PluginID == operator.SourcePathInputID
}

// IsTargetPath reports whether the node reads a path of the target entity.
func (n *Node) IsTargetPath() bool {
	return n.IsPathInput() && n.PluginID == operator.TargetPathInputID
}

// ConnectedInputs returns the non-empty input references in port order.
func (n *Node) ConnectedInputs() []string {
	var ids []string
	for _, id := range n.Inputs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// FirstFreePort returns the index of the first empty input port, or -1.
func (n *Node) FirstFreePort() int {
	for i, id := range n.Inputs {
		if id == "" {
			return i
		}
	}
	return -1
}

// CanGrow reports whether one more input port may be added.
func (n *Node) CanGrow() bool {
	limit := n.PortSpecification.MaxInputPorts
	return limit == nil || len(n.Inputs) < *limit
}
