// Package editor owns a rule graph for the duration of an editing session.
// Every mutation goes through an Editor, is applied as one atomic group of
// changes and is recorded in the undo/redo log. An Editor is not safe for
// concurrent use; callers serving several goroutines must serialize access.
package editor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowgraph/ruleeditor/internal/core/change"
	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/core/rule"
	"github.com/flowgraph/ruleeditor/internal/infrastructure/metrics"
	"github.com/flowgraph/ruleeditor/pkg/ruletree"
	"github.com/flowgraph/ruleeditor/pkg/validation"
	"github.com/google/uuid"
)

// Sentinel port arguments for AddEdge
const (
	// AnyPort lets AddEdge pick the first free port, growing the target if allowed
	AnyPort = -1
	// NoHandle means the new edge does not displace an existing one
	NoHandle = -1
)

// State is the editing state of a session
type State int

const (
	StateLoading State = iota
	StateReady
	StateReadOnly
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateReadOnly:
		return "read-only"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SaveFunc writes a converted rule to the backend
type SaveFunc func(ctx context.Context, r *ruletree.Rule) error

// Option configures an Editor
type Option func(*Editor)

// WithLogger sets the logger used for rejected mutations.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records mutations, rejections and history steps.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Editor) {
		e.metrics = m
	}
}

// WithIDGenerator replaces uuid.NewString as the node ID source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Editor) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithReadOnly starts the session read-only.
func WithReadOnly(readOnly bool) Option {
	return func(e *Editor) {
		e.readOnly = readOnly
	}
}

// WithStrictValidation makes Validate also check every connection and
// every parameter value against the catalog.
func WithStrictValidation() Option {
	return func(e *Editor) {
		e.strict = true
	}
}

// Editor is the single owner of a rule graph.
// PRINCIPLES:
// - SRP: Decides whether a mutation is allowed; change applies it, Log records it
// - Fail fast: A rejected request leaves graph and history untouched
type Editor struct {
	catalog *operator.Catalog
	graph   *rule.Graph
	log     *change.Log
	logger  *slog.Logger
	metrics *metrics.Metrics
	newID   func() string

	loading  bool
	readOnly bool
	strict   bool

	revision      uint64
	savedRevision uint64
}

// New creates an editor in the loading state. Mutations are rejected until
// Load or LoadRule is called. The catalog may be nil.
func New(catalog *operator.Catalog, opts ...Option) *Editor {
	e := &Editor{
		catalog: catalog,
		graph:   rule.NewGraph(),
		log:     change.NewLog(),
		logger:  slog.Default(),
		newID:   uuid.NewString,
		loading: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load replaces the graph with a copy of g, clears the history and makes the
// editor ready. A nil graph loads an empty rule.
func (e *Editor) Load(g *rule.Graph) {
	if g == nil {
		e.load(rule.NewGraph())
		return
	}
	e.load(g.Clone())
}

// LoadRule flattens an external rule tree and loads it.
func (e *Editor) LoadRule(r *ruletree.Rule) error {
	g, err := ruletree.FromExternal(r, e.catalog, ruletree.WithIDGenerator(e.newID))
	if err != nil {
		return fmt.Errorf("load rule: %w", err)
	}
	e.load(g)
	return nil
}

func (e *Editor) load(g *rule.Graph) {
	e.graph = g
	e.log.Clear()
	e.loading = false
	e.revision, e.savedRevision = 0, 0
}

// State returns the current editing state.
func (e *Editor) State() State {
	switch {
	case e.loading:
		return StateLoading
	case e.readOnly:
		return StateReadOnly
	default:
		return StateReady
	}
}

// Editable reports whether mutations are accepted.
func (e *Editor) Editable() bool {
	return e.State() == StateReady
}

// SetReadOnly switches between the ready and read-only states.
func (e *Editor) SetReadOnly(readOnly bool) {
	e.readOnly = readOnly
}

// Catalog returns the operator catalog of the session.
func (e *Editor) Catalog() *operator.Catalog {
	return e.catalog
}

// Snapshot returns a copy of the current graph.
func (e *Editor) Snapshot() *rule.Graph {
	return e.graph.Clone()
}

// Node returns a copy of a node.
func (e *Editor) Node(id string) (*rule.Node, bool) {
	n, ok := e.graph.Node(id)
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Edges returns all edges of the graph.
func (e *Editor) Edges() []rule.Edge {
	return e.graph.Edges()
}

// UnsavedChanges reports whether the graph changed since it was loaded or
// last saved.
func (e *Editor) UnsavedChanges() bool {
	return e.revision != e.savedRevision
}

// StartChangeTransaction closes the open transaction. Following mutations
// are undone as a new unit.
func (e *Editor) StartChangeTransaction() {
	e.log.StartTransaction()
}

// CanUndo reports whether there is a transaction to undo.
func (e *Editor) CanUndo() bool {
	return e.log.CanUndo()
}

// CanRedo reports whether there is a transaction to redo.
func (e *Editor) CanRedo() bool {
	return e.log.CanRedo()
}

// Undo reverts the last transaction. It returns false when there is
// nothing to undo.
func (e *Editor) Undo() (bool, error) {
	if err := e.editable("undo"); err != nil {
		return false, err
	}
	ok, err := e.log.Undo(e.graph)
	if err != nil {
		return false, e.reject("undo", err)
	}
	if ok {
		e.revision++
		e.metrics.Undo()
	}
	return ok, nil
}

// Redo re-applies the last undone transaction. It returns false when there
// is nothing to redo.
func (e *Editor) Redo() (bool, error) {
	if err := e.editable("redo"); err != nil {
		return false, err
	}
	ok, err := e.log.Redo(e.graph)
	if err != nil {
		return false, e.reject("redo", err)
	}
	if ok {
		e.revision++
		e.metrics.Redo()
	}
	return ok, nil
}

// Validate runs the pre-save validation of the current graph.
func (e *Editor) Validate() error {
	opts := validation.GraphValidationOptions{}
	if e.strict {
		opts = validation.GraphValidationOptions{
			CheckConnections: true,
			CheckParameters:  e.catalog != nil,
			Catalog:          e.catalog,
		}
	}
	err := validation.ValidateRuleGraph(e.graph, opts)
	e.metrics.Validation(err)
	return err
}

// ToExternal validates the graph and converts it into a rule tree.
func (e *Editor) ToExternal() (*ruletree.Rule, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return ruletree.ToExternal(e.graph)
}

// PrepareSave closes the open transaction and converts the graph into the
// rule tree to be stored, together with the revision it represents. Pass the
// revision to MarkSaved once the rule is stored; changes made in between stay
// unsaved.
func (e *Editor) PrepareSave() (*ruletree.Rule, uint64, error) {
	if e.loading {
		return nil, 0, ErrNotEditable
	}
	e.log.StartTransaction()
	r, err := e.ToExternal()
	if err != nil {
		return nil, 0, err
	}
	return r, e.revision, nil
}

// MarkSaved records that the state at revision has been stored.
func (e *Editor) MarkSaved(revision uint64) {
	if revision <= e.revision {
		e.savedRevision = revision
	}
}

// Save prepares the rule, hands it to save and marks it saved on success.
// Validation errors are returned before save is called.
func (e *Editor) Save(ctx context.Context, save SaveFunc) error {
	r, revision, err := e.PrepareSave()
	if err != nil {
		return err
	}

	err = save(ctx, r)
	e.metrics.Save(err)
	if err != nil {
		e.logger.Warn("rule save failed", slog.String("error", err.Error()))
		return fmt.Errorf("save rule: %w", err)
	}
	e.MarkSaved(revision)
	return nil
}

func (e *Editor) editable(op string) error {
	if e.Editable() {
		return nil
	}
	return e.reject(op, fmt.Errorf("%w: editor is %s", ErrNotEditable, e.State()))
}

func (e *Editor) reject(op string, err error) error {
	e.logger.Debug("rule mutation rejected", slog.String("operation", op), slog.String("error", err.Error()))
	e.metrics.Rejection(op, reason(err))
	return err
}

// commit applies changes as one unit and appends them to the open
// transaction. On failure nothing is applied or recorded.
func (e *Editor) commit(op string, changes ...change.Change) error {
	if len(changes) == 0 {
		return nil
	}
	if err := (change.Transaction{Changes: changes}).Apply(e.graph); err != nil {
		return e.reject(op, err)
	}
	for _, c := range changes {
		e.log.Record(c)
		e.metrics.Mutation(string(c.Kind()))
	}
	e.revision++
	return nil
}

func (e *Editor) node(id string) (*rule.Node, error) {
	n, ok := e.graph.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}
