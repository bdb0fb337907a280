package validation

import (
	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/core/rule"
)

// ValidateConnection reports whether source may feed the given input port
// of target, judged only by the two operator types. Sources of unknown type
// may connect anywhere.
func ValidateConnection(source, target *rule.Node, targetPort int) bool {
	switch source.PluginType {
	case operator.PluginTypePathInput:
		switch target.PluginType {
		case operator.PluginTypeComparison:
			return (source.PluginID == operator.SourcePathInputID && targetPort == 0) ||
				(source.PluginID == operator.TargetPathInputID && targetPort == 1)
		case operator.PluginTypeTransform:
			return true
		default:
			return false
		}
	case operator.PluginTypeTransform:
		return target.PluginType == operator.PluginTypeComparison || target.PluginType == operator.PluginTypeTransform
	case operator.PluginTypeComparison:
		return target.PluginType == operator.PluginTypeAggregation
	case operator.PluginTypeAggregation:
		return target.PluginType == operator.PluginTypeAggregation
	default:
		return true
	}
}

// ValidateConnectionInGraph applies ValidateConnection and additionally
// rejects connections that would mix source and target values in one value
// chain. The two ports of a comparison start separate chains. A connection
// into an occupied port is judged as if it replaced the current occupant.
func ValidateConnectionInGraph(g *rule.Graph, sourceID, targetID string, targetPort int) bool {
	source, ok := g.Node(sourceID)
	if !ok {
		return false
	}
	target, ok := g.Node(targetID)
	if !ok {
		return false
	}
	if !ValidateConnection(source, target, targetPort) {
		return false
	}

	// value chains end at a comparison port; aggregations combine scores
	switch target.PluginType {
	case operator.PluginTypeTransform, operator.PluginTypeComparison:
	default:
		return true
	}
	sides := upstreamSides(g, sourceID) | downstreamSides(g, target, targetPort)
	if target.PluginType == operator.PluginTypeTransform {
		for port, in := range target.Inputs {
			if port != targetPort && in != "" {
				sides |= upstreamSides(g, in)
			}
		}
	}
	return sides != sideSource|sideTarget
}

// side records which entity a value chain reads from
type side uint8

const (
	sideSource side = 1 << iota
	sideTarget
)

func pathSide(n *rule.Node) side {
	switch {
	case n.IsSourcePath():
		return sideSource
	case n.IsTargetPath():
		return sideTarget
	default:
		return 0
	}
}

func portSide(port int) side {
	switch port {
	case 0:
		return sideSource
	case 1:
		return sideTarget
	default:
		return 0
	}
}

// upstreamSides collects the sides of all path inputs feeding id.
func upstreamSides(g *rule.Graph, id string) side {
	var sides side
	visited := map[string]bool{}
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		n, ok := g.Node(cur)
		if !ok {
			continue
		}
		sides |= pathSide(n)
		stack = append(stack, n.ConnectedInputs()...)
	}
	return sides
}

// downstreamSides returns the comparison ports that values entering target
// at targetPort end up in.
func downstreamSides(g *rule.Graph, target *rule.Node, targetPort int) side {
	if target.PluginType == operator.PluginTypeComparison {
		return portSide(targetPort)
	}
	var sides side
	visited := map[string]bool{target.ID: true}
	stack := g.Parents(target.ID)
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		parent, ok := g.Node(e.Target)
		if !ok {
			continue
		}
		if parent.PluginType == operator.PluginTypeComparison {
			sides |= portSide(e.TargetPort)
			continue
		}
		if visited[parent.ID] {
			continue
		}
		visited[parent.ID] = true
		stack = append(stack, g.Parents(parent.ID)...)
	}
	return sides
}
