package editor

import (
	"fmt"

	"github.com/flowgraph/ruleeditor/internal/core/change"
	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/core/rule"
	"github.com/flowgraph/ruleeditor/pkg/validation"
)

// AddNode places a new node for op and returns its ID. The node starts with
// default parameter values and MinInputPorts empty ports; it is not
// connected or validated.
func (e *Editor) AddNode(op operator.RuleOperator, pos *rule.Position) (string, error) {
	if err := e.editable("addNode"); err != nil {
		return "", err
	}
	n := rule.NewNode(e.newID(), op, pos)
	if err := e.commit("addNode", change.AddNode{Node: n}); err != nil {
		return "", err
	}
	return n.ID, nil
}

// AddOperator places a node for the catalog operator with the given plugin ID.
func (e *Editor) AddOperator(pluginID string, pos *rule.Position) (string, error) {
	op, ok := e.catalog.LookupID(pluginID)
	if !ok {
		return "", e.reject("addNode", fmt.Errorf("%w: %s", ErrUnknownOperator, pluginID))
	}
	return e.AddNode(op, pos)
}

// DeleteNode removes a node and every edge touching it.
func (e *Editor) DeleteNode(id string) error {
	return e.deleteNodes("deleteNode", []string{id})
}

// DeleteNodes removes nodes and every edge touching them. Ports that fed
// from a deleted node are emptied; trailing empty ports beyond the minimum
// are trimmed.
func (e *Editor) DeleteNodes(ids []string) error {
	return e.deleteNodes("deleteNodes", ids)
}

func (e *Editor) deleteNodes(op string, ids []string) error {
	if err := e.editable(op); err != nil {
		return err
	}
	deleted := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, err := e.node(id); err != nil {
			return e.reject(op, err)
		}
		deleted[id] = true
	}

	var changes []change.Change
	var removals []change.Change
	for _, n := range e.graph.Nodes() {
		if deleted[n.ID] {
			removals = append(removals, change.DeleteNode{Node: n.Clone()})
			continue
		}
		inputs := append([]string(nil), n.Inputs...)
		cleared := false
		for port, src := range n.Inputs {
			if deleted[src] {
				changes = append(changes, change.DeleteEdge{Edge: rule.Edge{Source: src, Target: n.ID, TargetPort: port}})
				inputs[port] = ""
				cleared = true
			}
		}
		if cleared {
			changes = append(changes, resize(n, inputs)...)
		}
	}
	return e.commit(op, append(changes, removals...)...)
}

// resize returns the change trimming trailing empty ports of n beyond its
// minimum, given its inputs after pending edge removals.
func resize(n *rule.Node, inputs []string) []change.Change {
	size := len(inputs)
	for size > n.PortSpecification.MinInputPorts && inputs[size-1] == "" {
		size--
	}
	if size == len(n.Inputs) {
		return nil
	}
	return []change.Change{change.ChangeNumberOfInputHandles{NodeID: n.ID, From: len(n.Inputs), To: size}}
}

// AddEdge connects source to a port of target and returns the new edge.
//
// targetPort may be AnyPort, in which case the first free port that accepts
// the source is used and the target grows by one port when none does and
// its specification allows more. An explicit port equal to the current port count grows the
// target the same way. previousTargetHandle, unless NoHandle, names a port
// of target whose current occupant is disconnected in the same transaction.
// The connection is checked before anything is applied; a rejected request
// changes nothing.
func (e *Editor) AddEdge(sourceID, targetID string, targetPort, previousTargetHandle int) (rule.Edge, error) {
	const op = "addEdge"
	if err := e.editable(op); err != nil {
		return rule.Edge{}, err
	}
	edge, changes, err := e.planEdge(sourceID, targetID, targetPort, previousTargetHandle)
	if err != nil {
		return rule.Edge{}, e.reject(op, err)
	}
	if err := e.commit(op, changes...); err != nil {
		return rule.Edge{}, err
	}
	return edge, nil
}

func (e *Editor) planEdge(sourceID, targetID string, targetPort, previousTargetHandle int) (rule.Edge, []change.Change, error) {
	if _, err := e.node(sourceID); err != nil {
		return rule.Edge{}, nil, err
	}
	target, err := e.node(targetID)
	if err != nil {
		return rule.Edge{}, nil, err
	}
	if sourceID == targetID {
		return rule.Edge{}, nil, fmt.Errorf("%w: %s", ErrSelfLoop, sourceID)
	}

	var changes []change.Change
	inputs := append([]string(nil), target.Inputs...)
	if previousTargetHandle != NoHandle {
		if previousTargetHandle < 0 || previousTargetHandle >= len(inputs) {
			return rule.Edge{}, nil, fmt.Errorf("%w: handle %d on %s", ErrPortOutOfRange, previousTargetHandle, targetID)
		}
		if occupant := inputs[previousTargetHandle]; occupant != "" {
			changes = append(changes, change.DeleteEdge{Edge: rule.Edge{Source: occupant, Target: targetID, TargetPort: previousTargetHandle}})
			inputs[previousTargetHandle] = ""
		}
	}

	port := targetPort
	grow, occupied := false, false
	switch {
	case port == AnyPort:
		if port, grow, err = e.pickPort(target, inputs, sourceID, changes); err != nil {
			return rule.Edge{}, nil, err
		}
	case port < 0 || port > len(inputs):
		return rule.Edge{}, nil, fmt.Errorf("%w: %d on %s", ErrPortOutOfRange, port, targetID)
	case port == len(inputs):
		if !target.CanGrow() {
			return rule.Edge{}, nil, fmt.Errorf("%w: %d on %s", ErrPortOutOfRange, port, targetID)
		}
		grow = true
	default:
		occupied = inputs[port] != ""
	}
	if grow {
		changes = append(changes, change.ChangeNumberOfInputHandles{NodeID: targetID, From: len(inputs), To: len(inputs) + 1})
	}

	// judge the connection against the graph as it will be once the
	// displacement and growth are applied
	scratch := e.graph.Clone()
	if err := (change.Transaction{Changes: changes}).Apply(scratch); err != nil {
		return rule.Edge{}, nil, err
	}
	if !validation.ValidateConnectionInGraph(scratch, sourceID, targetID, port) {
		return rule.Edge{}, nil, fmt.Errorf("%w: %s cannot feed port %d of %s", ErrInvalidConnection, sourceID, port, targetID)
	}
	if occupied {
		return rule.Edge{}, nil, fmt.Errorf("%w: port %d of %s holds %s", ErrPortOccupied, port, targetID, inputs[port])
	}

	edge := rule.Edge{Source: sourceID, Target: targetID, TargetPort: port}
	return edge, append(changes, change.AddEdge{Edge: edge}), nil
}

// pickPort returns the first free port of target that accepts sourceID, or
// a new port when none does and target may grow.
func (e *Editor) pickPort(target *rule.Node, inputs []string, sourceID string, changes []change.Change) (int, bool, error) {
	scratch := e.graph.Clone()
	if err := (change.Transaction{Changes: changes}).Apply(scratch); err != nil {
		return 0, false, err
	}
	free := false
	for i, in := range inputs {
		if in != "" {
			continue
		}
		free = true
		if validation.ValidateConnectionInGraph(scratch, sourceID, target.ID, i) {
			return i, false, nil
		}
	}
	switch {
	case target.CanGrow():
		return len(inputs), true, nil
	case free:
		return 0, false, fmt.Errorf("%w: %s cannot feed a free port of %s", ErrInvalidConnection, sourceID, target.ID)
	default:
		return 0, false, fmt.Errorf("%w: %s", ErrNoFreePort, target.ID)
	}
}

// DeleteEdge removes an edge. With updateHandles, trailing empty ports
// beyond the target's minimum are trimmed.
func (e *Editor) DeleteEdge(edgeID string, updateHandles bool) error {
	const op = "deleteEdge"
	if err := e.editable(op); err != nil {
		return err
	}
	edge, err := e.edge(edgeID)
	if err != nil {
		return e.reject(op, err)
	}
	changes := []change.Change{change.DeleteEdge{Edge: edge}}
	if updateHandles {
		target, _ := e.graph.Node(edge.Target)
		inputs := append([]string(nil), target.Inputs...)
		inputs[edge.TargetPort] = ""
		changes = append(changes, resize(target, inputs)...)
	}
	return e.commit(op, changes...)
}

// DeleteEdges removes several edges as one mutation. Port counts are kept.
func (e *Editor) DeleteEdges(edgeIDs []string) error {
	const op = "deleteEdges"
	if err := e.editable(op); err != nil {
		return err
	}
	seen := make(map[string]bool, len(edgeIDs))
	var changes []change.Change
	for _, id := range edgeIDs {
		edge, err := e.edge(id)
		if err != nil {
			return e.reject(op, err)
		}
		if seen[edge.ID()] {
			continue
		}
		seen[edge.ID()] = true
		changes = append(changes, change.DeleteEdge{Edge: edge})
	}
	return e.commit(op, changes...)
}

func (e *Editor) edge(id string) (rule.Edge, error) {
	edge, err := rule.ParseEdgeID(id)
	if err != nil {
		return rule.Edge{}, err
	}
	if !e.graph.HasEdge(edge) {
		return rule.Edge{}, fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}
	return edge, nil
}
