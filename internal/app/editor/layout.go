package editor

import (
	"fmt"

	"github.com/flowgraph/ruleeditor/internal/core/change"
	"github.com/flowgraph/ruleeditor/internal/core/rule"
)

// MoveNode sets the position of a node.
func (e *Editor) MoveNode(id string, pos rule.Position) error {
	const op = "moveNode"
	if err := e.editable(op); err != nil {
		return err
	}
	n, err := e.node(id)
	if err != nil {
		return e.reject(op, err)
	}
	if n.Position != nil && *n.Position == pos {
		return nil
	}
	return e.commit(op, change.ChangeNodePosition{NodeID: id, From: copyPosition(n.Position), To: &pos})
}

// MoveNodes shifts the given nodes by offset. Unplaced nodes are moved
// relative to the origin.
func (e *Editor) MoveNodes(ids []string, offset rule.Position) error {
	const op = "moveNodes"
	if err := e.editable(op); err != nil {
		return err
	}
	if offset == (rule.Position{}) {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	var changes []change.Change
	for _, id := range ids {
		n, err := e.node(id)
		if err != nil {
			return e.reject(op, err)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		to := positionOf(n).Add(offset)
		changes = append(changes, change.ChangeNodePosition{NodeID: id, From: copyPosition(n.Position), To: &to})
	}
	return e.commit(op, changes...)
}

// AutoLayout recomputes all node positions from the graph topology.
func (e *Editor) AutoLayout() error {
	const op = "autoLayout"
	if err := e.editable(op); err != nil {
		return err
	}
	positions := rule.AutoLayout(e.graph)
	var changes []change.Change
	for _, n := range e.graph.Nodes() {
		to := positions[n.ID]
		if n.Position != nil && *n.Position == to {
			continue
		}
		changes = append(changes, change.ChangeNodePosition{NodeID: n.ID, From: copyPosition(n.Position), To: &to})
	}
	return e.commit(op, changes...)
}

// ChangeNodeParameter sets a parameter to a plain value. See SetParameter.
func (e *Editor) ChangeNodeParameter(nodeID, parameterID, value string, autoStart bool) error {
	return e.SetParameter(nodeID, parameterID, rule.ParameterValue{Value: value}, autoStart)
}

// SetParameter changes a parameter value. With autoStart, consecutive
// changes of the same parameter inside the open transaction merge into one
// undo step, and any other change starts a new transaction. The parameter
// must exist on the node or in the node's catalog operator.
func (e *Editor) SetParameter(nodeID, parameterID string, value rule.ParameterValue, autoStart bool) error {
	const op = "changeNodeParameter"
	if err := e.editable(op); err != nil {
		return err
	}
	n, err := e.node(nodeID)
	if err != nil {
		return e.reject(op, err)
	}
	current, ok := n.Parameters[parameterID]
	if !ok && !e.knowsParameter(n, parameterID) {
		return e.reject(op, fmt.Errorf("%w: %s on %s", ErrUnknownParameter, parameterID, nodeID))
	}
	if ok && current == value {
		return nil
	}

	c := change.ChangeNodeParameter{NodeID: nodeID, ParameterID: parameterID, From: current, To: value}
	if err := c.Apply(e.graph); err != nil {
		return e.reject(op, err)
	}
	e.log.RecordParameterChange(c, autoStart)
	e.metrics.Mutation(string(c.Kind()))
	e.revision++
	return nil
}

func (e *Editor) knowsParameter(n *rule.Node, parameterID string) bool {
	def, ok := e.catalog.Lookup(n.PluginID, n.PluginType)
	if !ok {
		return false
	}
	_, ok = def.ParameterSpecification[parameterID]
	return ok
}

// CopyAndPasteNodes duplicates nodes under new IDs, shifted by offset, and
// returns the new IDs in the order given. Inputs pointing into the copied
// set are remapped to the copies; inputs from outside the set are dropped.
func (e *Editor) CopyAndPasteNodes(ids []string, offset rule.Position) ([]string, error) {
	const op = "copyAndPasteNodes"
	if err := e.editable(op); err != nil {
		return nil, err
	}
	mapping := make(map[string]string, len(ids))
	for _, id := range ids {
		if _, err := e.node(id); err != nil {
			return nil, e.reject(op, err)
		}
		if _, ok := mapping[id]; !ok {
			mapping[id] = e.newID()
		}
	}

	var changes []change.Change
	for _, n := range e.graph.Nodes() {
		newID, ok := mapping[n.ID]
		if !ok {
			continue
		}
		c := n.Clone()
		c.ID = newID
		for port, src := range c.Inputs {
			c.Inputs[port] = mapping[src]
		}
		pos := positionOf(n).Add(offset)
		c.Position = &pos
		changes = append(changes, change.AddNode{Node: c})
	}
	if err := e.commit(op, changes...); err != nil {
		return nil, err
	}

	pasted := make([]string, 0, len(mapping))
	seen := make(map[string]bool, len(mapping))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			pasted = append(pasted, mapping[id])
		}
	}
	return pasted, nil
}

func positionOf(n *rule.Node) rule.Position {
	if n.Position == nil {
		return rule.Position{}
	}
	return *n.Position
}

func copyPosition(p *rule.Position) *rule.Position {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
