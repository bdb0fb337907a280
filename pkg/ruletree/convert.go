package ruletree

import (
	"fmt"

	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/core/rule"
	"github.com/flowgraph/ruleeditor/pkg/validation"
	"github.com/google/uuid"
)

// ToExternal validates the graph and converts it into a rule tree, starting
// at the root. An empty graph yields a rule without operator.
func ToExternal(g *rule.Graph) (*Rule, error) {
	root, err := rule.Root(g)
	if err != nil {
		return nil, err
	}
	r := &Rule{Layout: rule.LayoutOf(g)}
	if root == "" {
		return r, nil
	}
	r.Operator, err = toOperator(g, root)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func toOperator(g *rule.Graph, id string) (*Operator, error) {
	n, ok := g.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", rule.ErrNodeNotFound, id)
	}

	switch n.PluginType {
	case operator.PluginTypePathInput:
		return &Operator{Type: TypePathInput, ID: n.ID, Path: n.Parameter("path")}, nil
	case operator.PluginTypeComparison:
		inputs := make([]*Operator, len(n.Inputs))
		for i, in := range n.Inputs {
			if in == "" {
				continue
			}
			child, err := toOperator(g, in)
			if err != nil {
				return nil, err
			}
			inputs[i] = child
		}
		return &Operator{Type: TypeComparison, ID: n.ID, Metric: n.PluginID, Inputs: inputs, Parameters: parameters(n)}, nil
	case operator.PluginTypeTransform, operator.PluginTypeAggregation:
		var inputs []*Operator
		for _, in := range n.ConnectedInputs() {
			child, err := toOperator(g, in)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, child)
		}
		if n.PluginType == operator.PluginTypeTransform {
			return &Operator{Type: TypeTransformInput, ID: n.ID, Function: n.PluginID, Inputs: inputs, Parameters: parameters(n)}, nil
		}
		return &Operator{Type: TypeAggregation, ID: n.ID, Aggregator: n.PluginID, Inputs: inputs, Parameters: parameters(n)}, nil
	default:
		return nil, fmt.Errorf("%w: %s node '%s'", ErrIncompatibleOperator, n.PluginType, n.ID)
	}
}

func parameters(n *rule.Node) map[string]string {
	params := make(map[string]string, len(n.Parameters))
	for k, v := range n.Parameters {
		params[k] = v.Value
	}
	return params
}

// FromOption configures FromExternal
type FromOption func(*fromConfig)

type fromConfig struct {
	newID func() string
}

// WithIDGenerator sets the generator for node IDs that cannot be reused.
func WithIDGenerator(fn func() string) FromOption {
	return func(c *fromConfig) {
		c.newID = fn
	}
}

// FromExternal flattens a rule tree into a graph. Inputs are added before
// the operators consuming them, so the root is the last node. Operator IDs
// are reused unless they are empty, invalid or already taken, in which case
// a fresh ID is generated. The catalog, which may be nil, supplies labels,
// port specifications and default parameter values.
func FromExternal(r *Rule, catalog *operator.Catalog, opts ...FromOption) (*rule.Graph, error) {
	if r == nil {
		return nil, ErrNilRule
	}
	cfg := fromConfig{newID: uuid.NewString}
	for _, opt := range opts {
		opt(&cfg)
	}

	g := rule.NewGraph()
	if r.Operator == nil {
		return g, nil
	}
	if err := r.Operator.Validate(); err != nil {
		return nil, err
	}

	f := flattener{g: g, catalog: catalog, newID: cfg.newID}
	f.flatten(r.Operator, false)
	r.Layout.Apply(g)
	return g, nil
}

type flattener struct {
	g       *rule.Graph
	catalog *operator.Catalog
	newID   func() string
}

// flatten adds op and its inputs to the graph and returns the node ID.
// isTarget tells path inputs whether they read the target entity.
func (f *flattener) flatten(op *Operator, isTarget bool) string {
	var n *rule.Node
	switch op.Type {
	case TypePathInput:
		def := operator.SourcePathOperator()
		if isTarget {
			def = operator.TargetPathOperator()
		}
		if cat, ok := f.catalog.Lookup(def.PluginID, def.PluginType); ok {
			def = cat
		}
		n = rule.NewNode(f.id(op.ID), def, nil)
		n.Parameters["path"] = rule.ParameterValue{Value: op.Path}
		return f.put(n)
	case TypeComparison:
		inputs := make([]string, 2)
		for i, in := range op.Inputs {
			if in != nil {
				inputs[i] = f.flatten(in, i == 1)
			}
		}
		n = f.node(op, operator.PluginTypeComparison, op.Metric)
		n.Inputs = inputs
	case TypeTransformInput, TypeAggregation:
		pluginType, pluginID := operator.PluginTypeTransform, op.Function
		if op.Type == TypeAggregation {
			pluginType, pluginID = operator.PluginTypeAggregation, op.Aggregator
		}
		inputs := make([]string, 0, len(op.Inputs))
		for _, in := range op.Inputs {
			inputs = append(inputs, f.flatten(in, isTarget))
		}
		n = f.node(op, pluginType, pluginID)
		for len(inputs) < n.PortSpecification.MinInputPorts {
			inputs = append(inputs, "")
		}
		n.Inputs = inputs
	}
	return f.put(n)
}

func (f *flattener) node(op *Operator, pluginType operator.PluginType, pluginID string) *rule.Node {
	def, ok := f.catalog.Lookup(pluginID, pluginType)
	if !ok {
		def = operator.RuleOperator{
			PluginType:        pluginType,
			PluginID:          pluginID,
			Label:             pluginID,
			PortSpecification: operator.PortSpecificationFor(pluginType),
			Tags:              operator.TagsFor(pluginType),
		}
	}
	n := rule.NewNode(f.id(op.ID), def, nil)
	for k, v := range op.Parameters {
		n.Parameters[k] = rule.ParameterValue{Value: v}
	}
	return n
}

func (f *flattener) id(id string) string {
	if id == "" || f.g.Has(id) || !validation.IsNodeID(id) {
		return f.newID()
	}
	return id
}

func (f *flattener) put(n *rule.Node) string {
	f.g.Put(n)
	return n.ID
}
