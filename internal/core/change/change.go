// Package change provides the atomic rule graph changes recorded by the
// editor, their inverses and the undo/redo transaction log.
package change

import (
	"fmt"

	"github.com/flowgraph/ruleeditor/internal/core/rule"
)

// Kind discriminates change variants
type Kind string

const (
	KindAddNode                    Kind = "Add node"
	KindDeleteNode                 Kind = "Delete node"
	KindAddEdge                    Kind = "Add edge"
	KindDeleteEdge                 Kind = "Delete edge"
	KindChangeNodePosition         Kind = "Change node position"
	KindChangeNodeParameter        Kind = "Change node parameter"
	KindChangeNumberOfInputHandles Kind = "Change number of input handles"
)

// Change is one atomic mutation of a rule graph.
// Apply either changes the graph completely or leaves it untouched.
type Change interface {
	Kind() Kind
	Apply(g *rule.Graph) error
	Inverse() Change
}

// AddNode inserts a node
type AddNode struct {
	Node *rule.Node
}

func (c AddNode) Kind() Kind { return KindAddNode }

func (c AddNode) Apply(g *rule.Graph) error {
	if err := c.Node.Validate(); err != nil {
		return err
	}
	if g.Has(c.Node.ID) {
		return fmt.Errorf("%w: %s", rule.ErrDuplicateNode, c.Node.ID)
	}
	g.Put(c.Node.Clone())
	return nil
}

func (c AddNode) Inverse() Change { return DeleteNode{Node: c.Node} }

// DeleteNode removes a node. Node holds the full node so the deletion can be
// reverted; edges must be removed by separate DeleteEdge changes first.
type DeleteNode struct {
	Node *rule.Node
}

func (c DeleteNode) Kind() Kind { return KindDeleteNode }

func (c DeleteNode) Apply(g *rule.Graph) error {
	if !g.Remove(c.Node.ID) {
		return fmt.Errorf("%w: %s", rule.ErrNodeNotFound, c.Node.ID)
	}
	return nil
}

func (c DeleteNode) Inverse() Change { return AddNode{Node: c.Node} }

// AddEdge fills an empty input port of the target node
type AddEdge struct {
	Edge rule.Edge
}

func (c AddEdge) Kind() Kind { return KindAddEdge }

func (c AddEdge) Apply(g *rule.Graph) error {
	target, err := port(g, c.Edge)
	if err != nil {
		return err
	}
	if !g.Has(c.Edge.Source) {
		return fmt.Errorf("%w: %s", rule.ErrNodeNotFound, c.Edge.Source)
	}
	if occupant := target.Inputs[c.Edge.TargetPort]; occupant != "" {
		return fmt.Errorf("%w: %s is connected to %s", ErrPortOccupied, occupant, c.Edge.Target)
	}
	target.Inputs[c.Edge.TargetPort] = c.Edge.Source
	return nil
}

func (c AddEdge) Inverse() Change { return DeleteEdge(c) }

// DeleteEdge empties the input port holding the edge
type DeleteEdge struct {
	Edge rule.Edge
}

func (c DeleteEdge) Kind() Kind { return KindDeleteEdge }

func (c DeleteEdge) Apply(g *rule.Graph) error {
	target, err := port(g, c.Edge)
	if err != nil {
		return err
	}
	if target.Inputs[c.Edge.TargetPort] != c.Edge.Source {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, c.Edge.ID())
	}
	target.Inputs[c.Edge.TargetPort] = ""
	return nil
}

func (c DeleteEdge) Inverse() Change { return AddEdge(c) }

// ChangeNodePosition moves a node
type ChangeNodePosition struct {
	NodeID string
	From   *rule.Position
	To     *rule.Position
}

func (c ChangeNodePosition) Kind() Kind { return KindChangeNodePosition }

func (c ChangeNodePosition) Apply(g *rule.Graph) error {
	n, ok := g.Node(c.NodeID)
	if !ok {
		return fmt.Errorf("%w: %s", rule.ErrNodeNotFound, c.NodeID)
	}
	if c.To == nil {
		n.Position = nil
		return nil
	}
	p := *c.To
	n.Position = &p
	return nil
}

func (c ChangeNodePosition) Inverse() Change {
	return ChangeNodePosition{NodeID: c.NodeID, From: c.To, To: c.From}
}

// ChangeNodeParameter sets a parameter value
type ChangeNodeParameter struct {
	NodeID      string
	ParameterID string
	From        rule.ParameterValue
	To          rule.ParameterValue
}

func (c ChangeNodeParameter) Kind() Kind { return KindChangeNodeParameter }

func (c ChangeNodeParameter) Apply(g *rule.Graph) error {
	n, ok := g.Node(c.NodeID)
	if !ok {
		return fmt.Errorf("%w: %s", rule.ErrNodeNotFound, c.NodeID)
	}
	n.Parameters[c.ParameterID] = c.To
	return nil
}

func (c ChangeNodeParameter) Inverse() Change {
	return ChangeNodeParameter{NodeID: c.NodeID, ParameterID: c.ParameterID, From: c.To, To: c.From}
}

// ChangeNumberOfInputHandles resizes the input ports of a node. Ports may
// only be removed while they are empty.
type ChangeNumberOfInputHandles struct {
	NodeID string
	From   int
	To     int
}

func (c ChangeNumberOfInputHandles) Kind() Kind { return KindChangeNumberOfInputHandles }

func (c ChangeNumberOfInputHandles) Apply(g *rule.Graph) error {
	n, ok := g.Node(c.NodeID)
	if !ok {
		return fmt.Errorf("%w: %s", rule.ErrNodeNotFound, c.NodeID)
	}
	if len(n.Inputs) != c.From || c.To < 0 {
		return fmt.Errorf("%w: %s has %d ports, expected %d", ErrHandleCountMismatch, c.NodeID, len(n.Inputs), c.From)
	}
	if c.To >= c.From {
		n.Inputs = append(n.Inputs, make([]string, c.To-c.From)...)
		return nil
	}
	for i := c.To; i < c.From; i++ {
		if n.Inputs[i] != "" {
			return fmt.Errorf("%w: port %d of %s", ErrPortOccupied, i, c.NodeID)
		}
	}
	n.Inputs = n.Inputs[:c.To:c.To]
	return nil
}

func (c ChangeNumberOfInputHandles) Inverse() Change {
	return ChangeNumberOfInputHandles{NodeID: c.NodeID, From: c.To, To: c.From}
}

func port(g *rule.Graph, e rule.Edge) (*rule.Node, error) {
	target, ok := g.Node(e.Target)
	if !ok {
		return nil, fmt.Errorf("%w: %s", rule.ErrNodeNotFound, e.Target)
	}
	if e.TargetPort < 0 || e.TargetPort >= len(target.Inputs) {
		return nil, fmt.Errorf("%w: %d on %s", rule.ErrPortOutOfRange, e.TargetPort, e.Target)
	}
	return target, nil
}
