package dto

import (
	"errors"
	"time"

	"github.com/flowgraph/ruleeditor/internal/core/rule"
	"github.com/flowgraph/ruleeditor/pkg/ruletree"
)

// RuleRequest addresses the rule of a linking task
type RuleRequest struct {
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId"`
}

// Validate checks that both IDs are present.
func (r RuleRequest) Validate() error {
	if r.ProjectID == "" {
		return ErrMissingProjectID
	}
	if r.TaskID == "" {
		return ErrMissingTaskID
	}
	return nil
}

// SaveRuleRequest carries a rule tree to be stored
type SaveRuleRequest struct {
	RuleRequest
	Rule *ruletree.Rule `json:"rule"`
}

// Validate checks the address and that a rule is present.
func (r SaveRuleRequest) Validate() error {
	if err := r.RuleRequest.Validate(); err != nil {
		return err
	}
	if r.Rule == nil {
		return ErrMissingRule
	}
	return nil
}

// RuleResponse is a stored rule
type RuleResponse struct {
	ProjectID string         `json:"projectId"`
	TaskID    string         `json:"taskId"`
	Rule      *ruletree.Rule `json:"rule"`
	Version   int64          `json:"version"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// SaveResult reports the outcome of a save. NodeErrors name the nodes the
// caller should highlight.
type SaveResult struct {
	Success      bool             `json:"success"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	NodeErrors   []rule.NodeError `json:"nodeErrors,omitempty"`
	Version      int64            `json:"version,omitempty"`
}

// SaveFailure builds the result for a failed save. Validation errors keep
// their offending node IDs.
func SaveFailure(err error) SaveResult {
	res := SaveResult{ErrorMessage: err.Error()}
	var verr *rule.ValidationError
	if errors.As(err, &verr) {
		res.ErrorMessage = verr.Message
		res.NodeErrors = verr.NodeErrors
	}
	return res
}

// ValidationResult is the outcome of validating a rule without saving it
type ValidationResult struct {
	Valid      bool             `json:"valid"`
	Message    string           `json:"message,omitempty"`
	NodeErrors []rule.NodeError `json:"nodeErrors,omitempty"`
}

// ValidationFailure builds the result for a rule that failed validation.
func ValidationFailure(err error) ValidationResult {
	res := SaveFailure(err)
	return ValidationResult{Message: res.ErrorMessage, NodeErrors: res.NodeErrors}
}
