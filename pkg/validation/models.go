package validation

import (
	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/core/rule"
)

// NodeModel is the validated view of a rule node
type NodeModel struct {
	ID         string   `json:"id" validate:"required,node_id"`
	PluginType string   `json:"pluginType" validate:"required,plugin_type"`
	PluginID   string   `json:"pluginId" validate:"required"`
	Inputs     []string `json:"inputs" validate:"dive,omitempty,node_id"`
	MinPorts   int      `json:"minInputPorts" validate:"min=0"`
}

// EdgeModel is the validated view of a derived edge
type EdgeModel struct {
	ID     string `json:"id" validate:"required,edge_id"`
	Source string `json:"source" validate:"required,node_id"`
	Target string `json:"target" validate:"required,node_id"`
	Port   int    `json:"targetPort" validate:"min=0"`
}

// RuleModel is the validated view of a whole rule graph
type RuleModel struct {
	Nodes []NodeModel `json:"nodes" validate:"dive"`
	Edges []EdgeModel `json:"edges" validate:"dive"`
}

// ModelFromGraph builds the validation model of a graph.
func ModelFromGraph(g *rule.Graph) RuleModel {
	var m RuleModel
	for _, n := range g.Nodes() {
		m.Nodes = append(m.Nodes, NodeModel{
			ID:         n.ID,
			PluginType: string(n.PluginType),
			PluginID:   n.PluginID,
			Inputs:     n.Inputs,
			MinPorts:   n.PortSpecification.MinInputPorts,
		})
	}
	for _, e := range g.Edges() {
		m.Edges = append(m.Edges, EdgeModel{ID: e.ID(), Source: e.Source, Target: e.Target, Port: e.TargetPort})
	}
	return m
}

// ValidateDescriptor validates a backend plugin descriptor.
func ValidateDescriptor(d operator.PluginDescriptor) error {
	return ValidateWithPlayground(d)
}
