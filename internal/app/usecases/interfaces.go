package usecases

import (
	"context"

	"github.com/flowgraph/ruleeditor/internal/app/dto"
	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/core/store"
	"github.com/flowgraph/ruleeditor/pkg/ruletree"
)

// RuleEditorService orchestrates editing sessions over a rule store
// PRINCIPLES:
// - SRP: Wires catalog, editor and store; owns no graph logic
// - DIP: Depends on store.Store, not on a concrete backend
type RuleEditorService interface {
	// Catalog returns the operators available to every session
	Catalog() *operator.Catalog

	// FetchRule loads the stored rule of a task
	FetchRule(ctx context.Context, req dto.RuleRequest) (*dto.RuleResponse, error)

	// ListRules returns stored rules, newest first
	ListRules(ctx context.Context, filter store.Filter) ([]*dto.RuleResponse, error)

	// SaveRule validates and stores a rule tree
	SaveRule(ctx context.Context, req dto.SaveRuleRequest) dto.SaveResult

	// DeleteRule removes the stored rule of a task
	DeleteRule(ctx context.Context, req dto.RuleRequest) error

	// ValidateRule checks a rule tree without storing it
	ValidateRule(ctx context.Context, r *ruletree.Rule) dto.ValidationResult

	// OpenSession starts editing the rule of a task. A task without a
	// stored rule opens with an empty rule.
	OpenSession(ctx context.Context, req dto.RuleRequest, readOnly bool) (*Session, error)
}
