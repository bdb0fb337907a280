package validation

import (
	"fmt"

	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/core/rule"
)

// GraphValidationOptions controls optional validation checks.
type GraphValidationOptions struct {
	// CheckConnections re-checks every edge against the connection rules.
	CheckConnections bool
	// CheckParameters validates parameter values against the catalog.
	CheckParameters bool
	// Catalog is required for CheckParameters.
	Catalog *operator.Catalog
}

// ValidateRuleGraph performs the pre-save validation of a rule graph: node
// and edge identifiers, port bounds, the single root tree structure and,
// optionally, connections and parameter values. Structural failures are
// returned as *rule.ValidationError.
func ValidateRuleGraph(g *rule.Graph, opts ...GraphValidationOptions) error {
	if g == nil {
		return fmt.Errorf("rule graph is nil")
	}
	if err := validateModel(ModelFromGraph(g)); err != nil {
		return err
	}

	var cfg GraphValidationOptions
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var nodeErrors []rule.NodeError
	for _, n := range g.Nodes() {
		if limit := n.PortSpecification.MaxInputPorts; limit != nil && len(n.ConnectedInputs()) > *limit {
			nodeErrors = append(nodeErrors, rule.NodeError{
				NodeID:  n.ID,
				Message: fmt.Sprintf("has %d inputs, at most %d allowed", len(n.ConnectedInputs()), *limit),
			})
		}
	}
	if len(nodeErrors) > 0 {
		return rule.NewValidationError("Rule contains nodes with too many inputs", nodeErrors, ErrTooManyInputs)
	}

	if err := rule.Validate(g); err != nil {
		return err
	}

	if cfg.CheckConnections {
		for _, e := range g.Edges() {
			source, _ := g.Node(e.Source)
			target, _ := g.Node(e.Target)
			if !ValidateConnection(source, target, e.TargetPort) {
				nodeErrors = append(nodeErrors, rule.NodeError{
					NodeID:  e.Source,
					Message: fmt.Sprintf("cannot be connected to input %d of '%s'", e.TargetPort, e.Target),
				})
			}
		}
		if len(nodeErrors) > 0 {
			return rule.NewValidationError("Rule contains invalid connections", nodeErrors, ErrInvalidConnection)
		}
	}

	if cfg.CheckParameters && cfg.Catalog != nil {
		nodeErrors = ValidateNodeParameters(g, cfg.Catalog)
		if len(nodeErrors) > 0 {
			return rule.NewValidationError("Rule contains invalid parameter values", nodeErrors, ErrInvalidParameter)
		}
	}
	return nil
}

// validateModel runs the struct validation per node and edge so failures
// name the offending nodes. Edges are only reported when neither endpoint
// already failed.
func validateModel(m RuleModel) error {
	var nodeErrors []rule.NodeError
	errs := []error{ErrInvalidNode}
	reported := make(map[string]bool)
	for _, n := range m.Nodes {
		if err := ValidateWithPlayground(n); err != nil {
			nodeErrors = append(nodeErrors, rule.NodeError{NodeID: n.ID, Message: err.Error()})
			errs = append(errs, err)
			reported[n.ID] = true
		}
	}
	for _, e := range m.Edges {
		if reported[e.Source] || reported[e.Target] {
			continue
		}
		if err := ValidateWithPlayground(e); err != nil {
			nodeErrors = append(nodeErrors, rule.NodeError{NodeID: e.Target, Message: err.Error()})
			errs = append(errs, err)
		}
	}
	if len(nodeErrors) == 0 {
		return nil
	}
	return rule.NewValidationError("Rule contains invalid node definitions", nodeErrors, errs...)
}
