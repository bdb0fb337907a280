package change

import (
	"testing"

	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/core/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNode(id string, inputs ...string) *rule.Node {
	return &rule.Node{
		ID:                id,
		PluginType:        operator.PluginTypeTransform,
		PluginID:          "lowerCase",
		Parameters:        map[string]rule.ParameterValue{"p": {Value: "0"}},
		Inputs:            inputs,
		PortSpecification: operator.AtLeastPorts(1),
	}
}

func testGraph(t *testing.T) *rule.Graph {
	t.Helper()
	g, err := rule.FromNodes(testNode("a", ""), testNode("b", ""))
	require.NoError(t, err)
	return g
}

func TestChange_ApplyInverse(t *testing.T) {
	pos := &rule.Position{X: 1, Y: 1}
	tests := []struct {
		name   string
		change Change
	}{
		{name: "add node", change: AddNode{Node: testNode("c")}},
		{name: "delete node", change: DeleteNode{Node: testNode("b", "")}},
		{name: "add edge", change: AddEdge{Edge: rule.Edge{Source: "a", Target: "b"}}},
		{name: "move", change: ChangeNodePosition{NodeID: "a", To: pos}},
		{name: "parameter", change: ChangeNodeParameter{NodeID: "a", ParameterID: "p", From: rule.ParameterValue{Value: "0"}, To: rule.ParameterValue{Value: "1"}}},
		{name: "grow handles", change: ChangeNumberOfInputHandles{NodeID: "a", From: 1, To: 3}},
		{name: "shrink handles", change: ChangeNumberOfInputHandles{NodeID: "a", From: 1, To: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testGraph(t)
			before := g.Clone()

			require.NoError(t, tt.change.Apply(g))
			assert.NotEqual(t, before, g)
			require.NoError(t, tt.change.Inverse().Apply(g))
			assert.Equal(t, before, g)
		})
	}
}

func TestChange_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		change Change
		err    error
	}{
		{name: "duplicate node", change: AddNode{Node: testNode("a")}, err: rule.ErrDuplicateNode},
		{name: "delete missing node", change: DeleteNode{Node: testNode("x")}, err: rule.ErrNodeNotFound},
		{name: "edge to missing target", change: AddEdge{Edge: rule.Edge{Source: "a", Target: "x"}}, err: rule.ErrNodeNotFound},
		{name: "edge from missing source", change: AddEdge{Edge: rule.Edge{Source: "x", Target: "a"}}, err: rule.ErrNodeNotFound},
		{name: "edge port out of range", change: AddEdge{Edge: rule.Edge{Source: "a", Target: "b", TargetPort: 1}}, err: rule.ErrPortOutOfRange},
		{name: "delete missing edge", change: DeleteEdge{Edge: rule.Edge{Source: "a", Target: "b"}}, err: ErrEdgeNotFound},
		{name: "handle count mismatch", change: ChangeNumberOfInputHandles{NodeID: "a", From: 2, To: 3}, err: ErrHandleCountMismatch},
		{name: "move missing node", change: ChangeNodePosition{NodeID: "x"}, err: rule.ErrNodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testGraph(t)
			before := g.Clone()
			assert.ErrorIs(t, tt.change.Apply(g), tt.err)
			assert.Equal(t, before, g)
		})
	}
}

func TestChange_OccupiedPort(t *testing.T) {
	g := testGraph(t)
	require.NoError(t, AddEdge{Edge: rule.Edge{Source: "a", Target: "b"}}.Apply(g))

	assert.ErrorIs(t, AddEdge{Edge: rule.Edge{Source: "a", Target: "b"}}.Apply(g), ErrPortOccupied)
	assert.ErrorIs(t, ChangeNumberOfInputHandles{NodeID: "b", From: 1, To: 0}.Apply(g), ErrPortOccupied)
}

func TestTransaction_RollsBackOnFailure(t *testing.T) {
	g := testGraph(t)
	before := g.Clone()

	tx := Transaction{Changes: []Change{
		ChangeNumberOfInputHandles{NodeID: "b", From: 1, To: 2},
		AddEdge{Edge: rule.Edge{Source: "a", Target: "b", TargetPort: 1}},
		AddEdge{Edge: rule.Edge{Source: "x", Target: "b"}},
	}}

	err := tx.Apply(g)
	assert.ErrorIs(t, err, rule.ErrNodeNotFound)
	assert.Equal(t, before, g)
}

func TestTransaction_Inverse(t *testing.T) {
	tx := Transaction{Changes: []Change{
		AddNode{Node: testNode("c")},
		AddEdge{Edge: rule.Edge{Source: "c", Target: "a"}},
	}}

	inv := tx.Inverse()
	require.Equal(t, 2, inv.Len())
	assert.Equal(t, KindDeleteEdge, inv.Changes[0].Kind())
	assert.Equal(t, KindDeleteNode, inv.Changes[1].Kind())

	g := testGraph(t)
	before := g.Clone()
	require.NoError(t, tx.Apply(g))
	require.NoError(t, inv.Apply(g))
	assert.Equal(t, before, g)
}
