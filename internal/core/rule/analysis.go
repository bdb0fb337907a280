package rule

import (
	"fmt"
)

// Report is the result of the root, cycle and connectivity analysis
type Report struct {
	// Roots are the nodes that are no other node's input.
	Roots []string
	// Cycle is the DFS path that re-entered a node, ending with that node.
	Cycle []string
	// Unreachable are the nodes that are not descendants of the primary root.
	Unreachable []string
	// UnknownInputs lists nodes whose inputs name missing nodes.
	UnknownInputs []NodeError
}

// PrimaryRoot returns the root that reaches the most nodes, or "" for an
// empty or rootless graph.
func (r Report) PrimaryRoot() string {
	if len(r.Roots) == 0 {
		return ""
	}
	return r.Roots[0]
}

// Inspect analyses the graph structure without failing. Roots are ordered
// with the primary root first, followed by the rest in insertion order.
func Inspect(g *Graph) Report {
	var report Report
	hasParent := make(map[string]bool, g.Len())
	for _, n := range g.Nodes() {
		for port, in := range n.Inputs {
			if in == "" {
				continue
			}
			if !g.Has(in) {
				report.UnknownInputs = append(report.UnknownInputs, NodeError{
					NodeID:  n.ID,
					Message: fmt.Sprintf("input '%s' on port %d does not exist", in, port),
				})
				continue
			}
			hasParent[in] = true
		}
	}

	var roots []string
	for _, id := range g.order {
		if !hasParent[id] {
			roots = append(roots, id)
		}
	}

	if len(roots) == 0 {
		if g.Len() > 0 {
			report.Cycle = findCycle(g, g.order)
		}
		return report
	}

	primary, reached := 0, map[string]bool(nil)
	for i, root := range roots {
		r := reachable(g, root)
		if reached == nil || len(r) > len(reached) {
			primary, reached = i, r
		}
	}
	report.Roots = append([]string{roots[primary]}, append(roots[:primary:primary], roots[primary+1:]...)...)
	report.Cycle = findCycle(g, report.Roots[:1])
	for _, id := range g.order {
		if !reached[id] {
			report.Unreachable = append(report.Unreachable, id)
		}
	}
	return report
}

// Validate checks that the graph is empty or a single acyclic rule tree in
// which every node is reachable from the root. Shared sub-expressions
// (a node feeding several parents) are allowed.
func Validate(g *Graph) error {
	_, err := Root(g)
	return err
}

// Root validates the graph and returns its root node ID. An empty graph has
// no root and is valid; the returned ID is then "".
func Root(g *Graph) (string, error) {
	report := Inspect(g)
	switch {
	case len(report.UnknownInputs) > 0:
		return "", NewValidationError(
			fmt.Sprintf("%d node input(s) reference unknown nodes", len(report.UnknownInputs)),
			report.UnknownInputs, ErrUnknownInput)
	case g.Len() == 0:
		return "", nil
	case len(report.Roots) == 0:
		return "", cycleError(report.Cycle)
	case len(report.Roots) > 1:
		nodeErrors := make([]NodeError, 0, len(report.Roots))
		for _, id := range report.Roots {
			nodeErrors = append(nodeErrors, NodeError{NodeID: id, Message: "root node"})
		}
		errs := []error{ErrMultipleRoots}
		if len(report.Unreachable) > 0 {
			errs = append(errs, ErrNotConnected)
		}
		return "", NewValidationError(
			fmt.Sprintf("More than one root node found: %s. A rule must have exactly one root node.", quoteJoin(report.Roots)),
			nodeErrors, errs...)
	case len(report.Cycle) > 0:
		return "", cycleError(report.Cycle)
	case len(report.Unreachable) > 0:
		nodeErrors := make([]NodeError, 0, len(report.Unreachable))
		for _, id := range report.Unreachable {
			nodeErrors = append(nodeErrors, NodeError{NodeID: id, Message: "not connected to the root node"})
		}
		return "", NewValidationError(
			fmt.Sprintf("Nodes not connected to root node '%s': %s", report.Roots[0], quoteJoin(report.Unreachable)),
			nodeErrors, ErrNotConnected)
	}
	return report.Roots[0], nil
}

func cycleError(cycle []string) error {
	// the last element repeats the re-entered node
	nodes := cycle
	if len(nodes) > 1 {
		nodes = nodes[:len(nodes)-1]
	}
	nodeErrors := make([]NodeError, 0, len(nodes))
	for _, id := range nodes {
		nodeErrors = append(nodeErrors, NodeError{NodeID: id, Message: "part of a cycle"})
	}
	return NewValidationError(fmt.Sprintf("Rule contains a cycle: %s", quoteJoin(cycle)), nodeErrors, ErrCycle)
}

const (
	white = iota
	gray
	black
)

type dfsFrame struct {
	id   string
	next int
}

// findCycle runs an iterative depth-first search from each start node in
// turn and returns the first cycle found, or nil. Inputs naming missing
// nodes are skipped.
func findCycle(g *Graph, starts []string) []string {
	color := make(map[string]int, g.Len())
	for _, start := range starts {
		if color[start] != white {
			continue
		}
		color[start] = gray
		stack := []dfsFrame{{id: start}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			inputs := g.nodes[top.id].Inputs
			if top.next >= len(inputs) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := inputs[top.next]
			top.next++
			if child == "" || !g.Has(child) {
				continue
			}
			switch color[child] {
			case gray:
				cycle := make([]string, 0, len(stack)+1)
				for _, f := range stack {
					cycle = append(cycle, f.id)
				}
				return append(cycle, child)
			case white:
				color[child] = gray
				stack = append(stack, dfsFrame{id: child})
			}
		}
	}
	return nil
}

// reachable returns the set of nodes reachable from root through inputs,
// root included.
func reachable(g *Graph, root string) map[string]bool {
	seen := map[string]bool{root: true}
	queue := []string{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, in := range g.nodes[id].Inputs {
			if in != "" && !seen[in] && g.Has(in) {
				seen[in] = true
				queue = append(queue, in)
			}
		}
	}
	return seen
}
