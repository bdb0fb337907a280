package dto

import (
	"errors"
	"fmt"
	"testing"

	"github.com/flowgraph/ruleeditor/internal/core/rule"
	"github.com/flowgraph/ruleeditor/pkg/ruletree"
	"github.com/stretchr/testify/assert"
)

func TestSaveRuleRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  SaveRuleRequest
		err  error
	}{
		{name: "valid", req: SaveRuleRequest{RuleRequest: RuleRequest{ProjectID: "p", TaskID: "t"}, Rule: &ruletree.Rule{}}},
		{name: "missing project", req: SaveRuleRequest{RuleRequest: RuleRequest{TaskID: "t"}, Rule: &ruletree.Rule{}}, err: ErrMissingProjectID},
		{name: "missing task", req: SaveRuleRequest{RuleRequest: RuleRequest{ProjectID: "p"}, Rule: &ruletree.Rule{}}, err: ErrMissingTaskID},
		{name: "missing rule", req: SaveRuleRequest{RuleRequest: RuleRequest{ProjectID: "p", TaskID: "t"}}, err: ErrMissingRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSaveFailure(t *testing.T) {
	verr := rule.NewValidationError("Rule has multiple roots", []rule.NodeError{{NodeID: "a"}, {NodeID: "b"}}, rule.ErrMultipleRoots)

	res := SaveFailure(fmt.Errorf("save: %w", verr))
	assert.False(t, res.Success)
	assert.Equal(t, "Rule has multiple roots", res.ErrorMessage)
	assert.Equal(t, []rule.NodeError{{NodeID: "a"}, {NodeID: "b"}}, res.NodeErrors)

	res = SaveFailure(errors.New("connection refused"))
	assert.Equal(t, "connection refused", res.ErrorMessage)
	assert.Empty(t, res.NodeErrors)

	v := ValidationFailure(verr)
	assert.False(t, v.Valid)
	assert.Len(t, v.NodeErrors, 2)
}
