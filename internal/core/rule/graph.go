// Package rule provides the in-memory rule graph: operator nodes connected
// through their indexed input ports, plus the structural analysis run
// before a rule is saved.
package rule

import (
	"fmt"
	"strconv"
	"strings"
)

// Graph is a rule as a flat set of nodes. Insertion order is kept so that
// analysis results and serialized output are deterministic.
// PRINCIPLES:
// - SRP: Only holds structure, mutations are recorded elsewhere
type Graph struct {
	nodes map[string]*Node
	order []string
}

// NewGraph creates an empty rule graph
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// FromNodes builds a graph from the given nodes in order.
func FromNodes(nodes ...*Node) (*Graph, error) {
	g := NewGraph()
	for _, n := range nodes {
		if err := n.Validate(); err != nil {
			return nil, err
		}
		if g.Has(n.ID) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		g.Put(n)
	}
	return g, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Has reports whether a node exists.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the node with the given ID. The returned node is owned by
// the graph.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeIDs returns all node IDs in insertion order.
func (g *Graph) NodeIDs() []string {
	return append([]string(nil), g.order...)
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// Put inserts or replaces a node. A replaced node keeps its position in
// the insertion order.
func (g *Graph) Put(n *Node) {
	if n.Inputs == nil {
		n.Inputs = []string{}
	}
	if n.Parameters == nil {
		n.Parameters = map[string]ParameterValue{}
	}
	if _, exists := g.nodes[n.ID]; !exists {
		g.order = append(g.order, n.ID)
	}
	g.nodes[n.ID] = n
}

// Remove deletes a node. References to it from other nodes are left alone.
func (g *Graph) Remove(id string) bool {
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	delete(g.nodes, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := &Graph{nodes: make(map[string]*Node, len(g.nodes)), order: append([]string(nil), g.order...)}
	for id, n := range g.nodes {
		c.nodes[id] = n.Clone()
	}
	return c
}

// Edge is the derived connection from a source node into one input port of
// a target node. It exists iff target.Inputs[TargetPort] == Source.
type Edge struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	TargetPort int    `json:"targetPort"`
}

// ID returns the edge ID in the form source->target:port.
func (e Edge) ID() string {
	return e.Source + "->" + e.Target + ":" + strconv.Itoa(e.TargetPort)
}

// ParseEdgeID parses an ID produced by Edge.ID.
func ParseEdgeID(id string) (Edge, error) {
	source, rest, ok := strings.Cut(id, "->")
	if !ok || source == "" {
		return Edge{}, fmt.Errorf("%w: %s", ErrInvalidEdgeID, id)
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return Edge{}, fmt.Errorf("%w: %s", ErrInvalidEdgeID, id)
	}
	port, err := strconv.Atoi(rest[i+1:])
	if err != nil || port < 0 {
		return Edge{}, fmt.Errorf("%w: %s", ErrInvalidEdgeID, id)
	}
	return Edge{Source: source, Target: rest[:i], TargetPort: port}, nil
}

// Edges returns all edges, ordered by target insertion order then port.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, id := range g.order {
		for port, src := range g.nodes[id].Inputs {
			if src != "" {
				edges = append(edges, Edge{Source: src, Target: id, TargetPort: port})
			}
		}
	}
	return edges
}

// HasEdge reports whether the edge currently exists.
func (g *Graph) HasEdge(e Edge) bool {
	n, ok := g.nodes[e.Target]
	if !ok || e.TargetPort < 0 || e.TargetPort >= len(n.Inputs) {
		return false
	}
	return n.Inputs[e.TargetPort] == e.Source
}

// Parents returns the edges in which id is the source.
func (g *Graph) Parents(id string) []Edge {
	var edges []Edge
	for _, tid := range g.order {
		for port, src := range g.nodes[tid].Inputs {
			if src == id {
				edges = append(edges, Edge{Source: id, Target: tid, TargetPort: port})
			}
		}
	}
	return edges
}

// IncidentEdges returns the edges into and out of a node.
func (g *Graph) IncidentEdges(id string) []Edge {
	var edges []Edge
	if n, ok := g.nodes[id]; ok {
		for port, src := range n.Inputs {
			if src != "" {
				edges = append(edges, Edge{Source: src, Target: id, TargetPort: port})
			}
		}
	}
	for _, e := range g.Parents(id) {
		if e.Target != id {
			edges = append(edges, e)
		}
	}
	return edges
}
