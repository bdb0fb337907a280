package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowgraph/ruleeditor/internal/app/dto"
	"github.com/flowgraph/ruleeditor/internal/app/editor"
	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/core/store"
	"github.com/flowgraph/ruleeditor/internal/infrastructure/metrics"
	"github.com/flowgraph/ruleeditor/pkg/ruletree"
	"github.com/google/uuid"
)

// ServiceOption configures a RuleService
type ServiceOption func(*RuleService)

// WithLogger sets the service logger, which sessions inherit.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *RuleService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records saves, validations and session counts.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *RuleService) {
		s.metrics = m
	}
}

// WithEditorOptions adds options to every editor the service creates.
func WithEditorOptions(opts ...editor.Option) ServiceOption {
	return func(s *RuleService) {
		s.editorOpts = append(s.editorOpts, opts...)
	}
}

// RuleService implements RuleEditorService
type RuleService struct {
	ruleStore  store.Store
	catalog    *operator.Catalog
	logger     *slog.Logger
	metrics    *metrics.Metrics
	editorOpts []editor.Option
}

// NewRuleService creates a service over st. A nil catalog is replaced by
// one holding only the path input operators.
func NewRuleService(st store.Store, catalog *operator.Catalog, opts ...ServiceOption) *RuleService {
	if catalog == nil {
		catalog = operator.NewCatalog()
	}
	s := &RuleService{ruleStore: st, catalog: catalog, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the operator catalog.
func (s *RuleService) Catalog() *operator.Catalog {
	return s.catalog
}

func (s *RuleService) newEditor(opts ...editor.Option) *editor.Editor {
	all := append([]editor.Option{editor.WithLogger(s.logger), editor.WithMetrics(s.metrics)}, s.editorOpts...)
	return editor.New(s.catalog, append(all, opts...)...)
}

// FetchRule loads the stored rule of a task.
func (s *RuleService) FetchRule(ctx context.Context, req dto.RuleRequest) (*dto.RuleResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	rec, err := s.ruleStore.Load(ctx, req.ProjectID, req.TaskID)
	if err != nil {
		return nil, err
	}
	return response(rec), nil
}

// ListRules returns stored rules matching filter.
func (s *RuleService) ListRules(ctx context.Context, filter store.Filter) ([]*dto.RuleResponse, error) {
	records, err := s.ruleStore.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.RuleResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, response(rec))
	}
	return out, nil
}

// DeleteRule removes the stored rule of a task.
func (s *RuleService) DeleteRule(ctx context.Context, req dto.RuleRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return s.ruleStore.Delete(ctx, req.ProjectID, req.TaskID)
}

// SaveRule loads the rule tree into a fresh editor, validates it and stores
// the normalized result. Validation failures name the offending nodes.
func (s *RuleService) SaveRule(ctx context.Context, req dto.SaveRuleRequest) dto.SaveResult {
	if err := req.Validate(); err != nil {
		return dto.SaveFailure(err)
	}
	ed := s.newEditor()
	if err := ed.LoadRule(req.Rule); err != nil {
		return dto.SaveFailure(err)
	}
	version, err := s.save(ctx, ed, req.RuleRequest)
	if err != nil {
		return dto.SaveFailure(err)
	}
	return dto.SaveResult{Success: true, Version: version}
}

// save prepares the editor's rule and stores it. The caller keeps the
// editor exclusive for the call.
func (s *RuleService) save(ctx context.Context, ed *editor.Editor, req dto.RuleRequest) (int64, error) {
	r, revision, err := ed.PrepareSave()
	if err != nil {
		return 0, err
	}
	version, err := s.write(ctx, req, r)
	if err != nil {
		return 0, err
	}
	ed.MarkSaved(revision)
	return version, nil
}

// write stores a prepared rule and returns the stored version.
func (s *RuleService) write(ctx context.Context, req dto.RuleRequest, r *ruletree.Rule) (int64, error) {
	rec := &store.RuleRecord{ProjectID: req.ProjectID, TaskID: req.TaskID, Rule: r}
	err := s.ruleStore.Save(ctx, rec)
	s.metrics.Save(err)
	if err != nil {
		s.logger.Warn("rule not saved",
			slog.String("project", req.ProjectID),
			slog.String("task", req.TaskID),
			slog.String("error", err.Error()))
		return 0, fmt.Errorf("%w: %w", dto.ErrSaveFailed, err)
	}
	s.logger.Info("rule saved",
		slog.String("project", req.ProjectID),
		slog.String("task", req.TaskID),
		slog.Int64("version", rec.Version))
	return rec.Version, nil
}

// ValidateRule checks a rule tree the way SaveRule does, without storing it.
func (s *RuleService) ValidateRule(_ context.Context, r *ruletree.Rule) dto.ValidationResult {
	if r == nil {
		return dto.ValidationFailure(dto.ErrMissingRule)
	}
	ed := s.newEditor()
	if err := ed.LoadRule(r); err != nil {
		return dto.ValidationFailure(err)
	}
	if err := ed.Validate(); err != nil {
		return dto.ValidationFailure(err)
	}
	return dto.ValidationResult{Valid: true}
}

// OpenSession starts editing the rule of a task.
func (s *RuleService) OpenSession(ctx context.Context, req dto.RuleRequest, readOnly bool) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	ed := s.newEditor(editor.WithReadOnly(readOnly))

	rec, err := s.ruleStore.Load(ctx, req.ProjectID, req.TaskID)
	switch {
	case errors.Is(err, store.ErrRuleNotFound):
		ed.Load(nil)
	case err != nil:
		return nil, fmt.Errorf("failed to fetch rule: %w", err)
	default:
		if err := ed.LoadRule(rec.Rule); err != nil {
			return nil, err
		}
	}

	s.metrics.SessionOpened()
	return &Session{id: uuid.NewString(), request: req, editor: ed, service: s}, nil
}

func response(rec *store.RuleRecord) *dto.RuleResponse {
	return &dto.RuleResponse{
		ProjectID: rec.ProjectID,
		TaskID:    rec.TaskID,
		Rule:      rec.Rule,
		Version:   rec.Version,
		UpdatedAt: rec.UpdatedAt,
	}
}
