package ruleeditor

import (
	"context"
	"log/slog"

	memory "github.com/flowgraph/ruleeditor/internal/adapters/repository/memory"
	"github.com/flowgraph/ruleeditor/internal/app/dto"
	"github.com/flowgraph/ruleeditor/internal/app/editor"
	"github.com/flowgraph/ruleeditor/internal/app/usecases"
	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/core/rule"
	"github.com/flowgraph/ruleeditor/pkg/ruletree"
)

// Re-export rule graph types for convenience
type Graph = rule.Graph
type Node = rule.Node
type Edge = rule.Edge
type Position = rule.Position
type ValidationError = rule.ValidationError

// Re-export rule tree and catalog types
type Rule = ruletree.Rule
type Operator = ruletree.Operator
type Catalog = operator.Catalog
type RuleOperator = operator.RuleOperator
type PluginDescriptor = operator.PluginDescriptor

// Re-export editing types
type Editor = editor.Editor
type Session = usecases.Session
type SaveResult = dto.SaveResult
type ValidationResult = dto.ValidationResult

const (
	// AnyPort lets AddEdge pick the first free input port
	AnyPort = editor.AnyPort
	// NoHandle means no edge is displaced by AddEdge
	NoHandle = editor.NoHandle
)

// NewCatalog converts plugin descriptors into an operator catalog. The path
// input operators are always present.
func NewCatalog(descriptors ...PluginDescriptor) *Catalog {
	return usecases.LoadCatalog(descriptors, nil, slog.Default())
}

// NewEditor returns an editor over an empty rule, ready for changes.
func NewEditor(catalog *Catalog) *Editor {
	e := editor.New(catalog)
	e.Load(nil)
	return e
}

// Runtime is a simple façade to edit and store rules without importing
// internal packages directly. It keeps rules in memory and is suitable for
// local usage and tests.
type Runtime struct {
	service *usecases.RuleService
	store   *memory.Store
}

// NewRuntime constructs a runtime over an in-memory store.
func NewRuntime(catalog *Catalog) *Runtime {
	st := memory.New(memory.Config{})
	return &Runtime{service: usecases.NewRuleService(st, catalog), store: st}
}

// Catalog returns the operators available to sessions.
func (rt *Runtime) Catalog() *Catalog {
	return rt.service.Catalog()
}

// NewSession starts editing the rule of a task. A task without a stored rule
// starts from an empty rule.
func (rt *Runtime) NewSession(ctx context.Context, projectID, taskID string) (*Session, error) {
	return rt.service.OpenSession(ctx, dto.RuleRequest{ProjectID: projectID, TaskID: taskID}, false)
}

// SaveRule validates and stores a rule tree.
func (rt *Runtime) SaveRule(ctx context.Context, projectID, taskID string, r *Rule) SaveResult {
	return rt.service.SaveRule(ctx, dto.SaveRuleRequest{
		RuleRequest: dto.RuleRequest{ProjectID: projectID, TaskID: taskID},
		Rule:        r,
	})
}

// FetchRule returns the stored rule of a task.
func (rt *Runtime) FetchRule(ctx context.Context, projectID, taskID string) (*Rule, error) {
	resp, err := rt.service.FetchRule(ctx, dto.RuleRequest{ProjectID: projectID, TaskID: taskID})
	if err != nil {
		return nil, err
	}
	return resp.Rule, nil
}

// ValidateRule checks a rule tree without storing it.
func (rt *Runtime) ValidateRule(ctx context.Context, r *Rule) ValidationResult {
	return rt.service.ValidateRule(ctx, r)
}

// Close releases the in-memory store.
func (rt *Runtime) Close() error {
	return rt.store.Close()
}
