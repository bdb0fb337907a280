package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/core/rule"
)

// Parameter validation intents
const (
	IntentPrimary = "primary"
	IntentSuccess = "success"
	IntentWarning = "warning"
	IntentDanger  = "danger"
)

// ValidateParameterValue checks a single value against its specification.
// Empty optional values are always valid; the custom validator only runs on
// values that passed the type check.
func ValidateParameterValue(spec operator.ParameterSpecification, value string) operator.ParameterValidationResult {
	if strings.TrimSpace(value) == "" {
		if spec.Required {
			return invalid("Value is required.")
		}
		return operator.ParameterValidationResult{Valid: true}
	}

	switch spec.Type {
	case operator.ParameterTypeInt:
		if _, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err != nil {
			return invalid("Value must be an integer.")
		}
	case operator.ParameterTypeFloat:
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			return invalid("Value must be a number.")
		}
	case operator.ParameterTypeBoolean:
		if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
			return invalid("Value must be true or false.")
		}
	}

	if spec.CustomValidation != nil {
		return spec.CustomValidation(value)
	}
	return operator.ParameterValidationResult{Valid: true}
}

func invalid(message string) operator.ParameterValidationResult {
	return operator.ParameterValidationResult{Valid: false, Message: message, Intent: IntentDanger}
}

// ValidateNodeParameters validates every parameter of every node whose
// operator is in the catalog. Nodes of unknown operators are skipped.
func ValidateNodeParameters(g *rule.Graph, catalog *operator.Catalog) []rule.NodeError {
	var nodeErrors []rule.NodeError
	for _, n := range g.Nodes() {
		op, ok := catalog.Lookup(n.PluginID, n.PluginType)
		if !ok {
			continue
		}
		for _, id := range op.ParameterIDs() {
			result := ValidateParameterValue(op.ParameterSpecification[id], n.Parameter(id))
			if !result.Valid {
				nodeErrors = append(nodeErrors, rule.NodeError{
					NodeID:  n.ID,
					Message: fmt.Sprintf("parameter '%s': %s", id, result.Message),
				})
			}
		}
	}
	return nodeErrors
}
