package rule

import "math"

// Auto layout spacing
const (
	LayoutColumnWidth = 250
	LayoutRowHeight   = 100
)

// Layout holds persisted node positions, rounded to whole pixels
type Layout struct {
	NodePositions map[string][2]int `json:"nodePositions" msgpack:"node_positions"`
}

// LayoutOf extracts the positions of all placed nodes.
func LayoutOf(g *Graph) Layout {
	l := Layout{NodePositions: make(map[string][2]int)}
	for _, n := range g.Nodes() {
		if n.Position != nil {
			l.NodePositions[n.ID] = [2]int{int(math.Round(n.Position.X)), int(math.Round(n.Position.Y))}
		}
	}
	return l
}

// Apply sets the position of every node listed in the layout. Unknown IDs
// are ignored.
func (l Layout) Apply(g *Graph) {
	for id, xy := range l.NodePositions {
		if n, ok := g.Node(id); ok {
			n.Position = &Position{X: float64(xy[0]), Y: float64(xy[1])}
		}
	}
}

// AutoLayout computes positions layered by depth: roots in the rightmost
// column, each input one column further left, nodes within a column stacked
// in insertion order. A node shared by several parents is placed left of
// its deepest consumer. The graph is not modified.
func AutoLayout(g *Graph) map[string]Position {
	depth := make(map[string]int, g.Len())
	edges := g.Edges()
	// longest-path relaxation, bounded so cycles terminate
	for i := 0; i < g.Len(); i++ {
		changed := false
		for _, e := range edges {
			if !g.Has(e.Source) {
				continue
			}
			if d := depth[e.Target] + 1; d > depth[e.Source] && d < g.Len() {
				depth[e.Source] = d
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	maxDepth := 0
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}

	rows := make(map[int]int)
	positions := make(map[string]Position, g.Len())
	for _, id := range g.order {
		d := depth[id]
		positions[id] = Position{
			X: float64((maxDepth - d) * LayoutColumnWidth),
			Y: float64(rows[d] * LayoutRowHeight),
		}
		rows[d]++
	}
	return positions
}
