package usecases

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flowgraph/ruleeditor/internal/adapters/repository/memory"
	"github.com/flowgraph/ruleeditor/internal/app/dto"
	"github.com/flowgraph/ruleeditor/internal/app/editor"
	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/core/rule"
	"github.com/flowgraph/ruleeditor/internal/core/store"
	"github.com/flowgraph/ruleeditor/pkg/ruletree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const descriptorsYAML = `
- pluginId: equality
  pluginType: ComparisonOperator
  title: Equality
  properties:
    threshold:
      title: Threshold
      parameterType: double
      value: "0.0"
  required: [threshold]
- pluginId: lowerCase
  pluginType: TransformOperator
  title: Lower case
  categories: [Normalize]
  properties: {}
- pluginId: min
  pluginType: AggregationOperator
  title: Minimum
  properties: {}
`

func testCatalog(t *testing.T) *operator.Catalog {
	t.Helper()
	descriptors, err := ReadDescriptors(strings.NewReader(descriptorsYAML))
	require.NoError(t, err)
	require.Len(t, descriptors, 3)
	return LoadCatalog(descriptors, nil, nil)
}

func newService(t *testing.T) (*RuleService, *memory.Store) {
	t.Helper()
	st := memory.New(memory.Config{})
	t.Cleanup(func() { _ = st.Close() })
	return NewRuleService(st, testCatalog(t)), st
}

func linkageRule() *ruletree.Rule {
	return &ruletree.Rule{Operator: &ruletree.Operator{
		Type: ruletree.TypeAggregation, ID: "agg", Aggregator: "min",
		Inputs: []*ruletree.Operator{{
			Type: ruletree.TypeComparison, ID: "c1", Metric: "equality",
			Parameters: map[string]string{"threshold": "0.5"},
			Inputs: []*ruletree.Operator{
				{Type: ruletree.TypeTransformInput, ID: "lc", Function: "lowerCase", Inputs: []*ruletree.Operator{
					{Type: ruletree.TypePathInput, ID: "sp1", Path: "/name"},
				}},
				{Type: ruletree.TypePathInput, ID: "tp1", Path: "/label"},
			},
		}},
	}}
}

func request() dto.RuleRequest {
	return dto.RuleRequest{ProjectID: "movies", TaskID: "linking"}
}

func TestLoadCatalog(t *testing.T) {
	c := testCatalog(t)
	assert.Equal(t, 5, c.Len())

	eq, ok := c.Lookup("equality", operator.PluginTypeComparison)
	require.True(t, ok)
	assert.Equal(t, "Equality", eq.Label)
	assert.True(t, eq.ParameterSpecification["threshold"].Required)
	assert.Equal(t, "0.0", eq.ParameterSpecification["threshold"].DefaultValue)

	_, ok = c.LookupID(operator.SourcePathInputID)
	assert.True(t, ok)
}

func TestLoadCatalog_IncompleteDescriptor(t *testing.T) {
	c := LoadCatalog([]operator.PluginDescriptor{{PluginID: "untitled", PluginType: "TransformOperator"}}, nil, nil)
	op, ok := c.LookupID("untitled")
	require.True(t, ok)
	assert.Equal(t, operator.PluginTypeTransform, op.PluginType)
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operators.yaml")
	require.NoError(t, os.WriteFile(path, []byte(descriptorsYAML), 0o644))

	c, err := LoadCatalogFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())

	c, err = LoadCatalogFile("", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	descriptors, err := ReadDescriptors(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, descriptors)
}

func TestReadDescriptors_AutoCompletion(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name: "json",
			input: `[{"pluginId":"lookup","pluginType":"TransformOperator","title":"Lookup",
  "properties":{"field":{"title":"Field","parameterType":"string",
    "autoCompletion":{"autoCompleteValueWithLabels":true,"allowOnlyAutoCompletedValues":true,
      "autoCompletionDependsOnParameters":["dataset"]}}}}]`,
		},
		{
			name: "yaml",
			input: `
- pluginId: lookup
  pluginType: TransformOperator
  title: Lookup
  properties:
    field:
      title: Field
      parameterType: string
      autoCompletion:
        autoCompleteValueWithLabels: true
        allowOnlyAutoCompletedValues: true
        autoCompletionDependsOnParameters: [dataset]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			descriptors, err := ReadDescriptors(strings.NewReader(tt.input))
			require.NoError(t, err)
			require.Len(t, descriptors, 1)

			c := LoadCatalog(descriptors, nil, nil)
			op, ok := c.LookupID("lookup")
			require.True(t, ok)
			ac := op.ParameterSpecification["field"].AutoCompletion
			require.NotNil(t, ac)
			assert.True(t, ac.AutoCompleteValueWithLabels)
			assert.True(t, ac.AllowOnlyAutoCompletedValues)
			assert.Equal(t, []string{"dataset"}, ac.AutoCompletionDependsOnParameters)
		})
	}
}

func TestRuleService_SaveAndFetch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	res := svc.SaveRule(ctx, dto.SaveRuleRequest{RuleRequest: request(), Rule: linkageRule()})
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, int64(1), res.Version)

	got, err := svc.FetchRule(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "agg", got.Rule.Operator.ID)
	c1 := got.Rule.Operator.Inputs[0]
	assert.Equal(t, "0.5", c1.Parameters["threshold"])
	assert.Equal(t, "lc", c1.Inputs[0].ID)

	res = svc.SaveRule(ctx, dto.SaveRuleRequest{RuleRequest: request(), Rule: linkageRule()})
	require.True(t, res.Success)
	assert.Equal(t, int64(2), res.Version)

	list, err := svc.ListRules(ctx, store.Filter{ProjectID: "movies"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "linking", list[0].TaskID)

	require.NoError(t, svc.DeleteRule(ctx, request()))
	_, err = svc.FetchRule(ctx, request())
	assert.ErrorIs(t, err, store.ErrRuleNotFound)
}

func TestRuleService_SaveRuleFailures(t *testing.T) {
	cyclic := &ruletree.Rule{Operator: &ruletree.Operator{Type: "loop"}}
	disconnected := linkageRule()
	disconnected.Operator.Inputs[0].Inputs[1] = nil

	tests := []struct {
		name    string
		req     dto.SaveRuleRequest
		message string
	}{
		{name: "missing task", req: dto.SaveRuleRequest{RuleRequest: dto.RuleRequest{ProjectID: "p"}, Rule: linkageRule()}, message: dto.ErrMissingTaskID.Error()},
		{name: "missing rule", req: dto.SaveRuleRequest{RuleRequest: request()}, message: dto.ErrMissingRule.Error()},
		{name: "malformed tree", req: dto.SaveRuleRequest{RuleRequest: request(), Rule: cyclic}, message: "unknown operator type"},
	}

	svc, st := newService(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.SaveRule(context.Background(), tt.req)
			assert.False(t, res.Success)
			assert.Contains(t, res.ErrorMessage, tt.message)
			assert.Equal(t, 0, st.Len())
		})
	}

	res := svc.SaveRule(context.Background(), dto.SaveRuleRequest{RuleRequest: request(), Rule: disconnected})
	assert.True(t, res.Success, "an empty comparison port is structurally valid")
}

func TestRuleService_ValidateRule(t *testing.T) {
	svc, _ := newService(t)

	assert.True(t, svc.ValidateRule(context.Background(), linkageRule()).Valid)
	assert.True(t, svc.ValidateRule(context.Background(), &ruletree.Rule{}).Valid)

	res := svc.ValidateRule(context.Background(), nil)
	assert.False(t, res.Valid)
	assert.Equal(t, dto.ErrMissingRule.Error(), res.Message)
}

type failingStore struct {
	store.Store
}

func (failingStore) Save(context.Context, *store.RuleRecord) error {
	return errors.New("disk full")
}

func (failingStore) Load(context.Context, string, string) (*store.RuleRecord, error) {
	return nil, errors.New("connection reset")
}

func TestRuleService_StoreFailure(t *testing.T) {
	svc := NewRuleService(failingStore{}, nil)

	res := svc.SaveRule(context.Background(), dto.SaveRuleRequest{RuleRequest: request(), Rule: &ruletree.Rule{}})
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "disk full")

	_, err := svc.OpenSession(context.Background(), request(), false)
	assert.ErrorContains(t, err, "connection reset")
}

func TestSession_EditAndSave(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sess, err := svc.OpenSession(ctx, request(), false)
	require.NoError(t, err)
	defer sess.Close()
	assert.NotEmpty(t, sess.ID())
	assert.Equal(t, request(), sess.Request())

	err = sess.Do(func(e *editor.Editor) error {
		assert.Equal(t, 0, e.Snapshot().Len())
		sp, err := e.AddOperator(operator.SourcePathInputID, nil)
		if err != nil {
			return err
		}
		if err := e.ChangeNodeParameter(sp, "path", "/name", true); err != nil {
			return err
		}
		tp, err := e.AddOperator(operator.TargetPathInputID, nil)
		if err != nil {
			return err
		}
		if err := e.ChangeNodeParameter(tp, "path", "/label", true); err != nil {
			return err
		}
		c, err := e.AddOperator("equality", nil)
		if err != nil {
			return err
		}
		if _, err := e.AddEdge(sp, c, editor.AnyPort, editor.NoHandle); err != nil {
			return err
		}
		_, err = e.AddEdge(tp, c, editor.AnyPort, editor.NoHandle)
		return err
	})
	require.NoError(t, err)

	res := sess.Save(ctx)
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, int64(1), res.Version)

	got, err := svc.FetchRule(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, ruletree.TypeComparison, got.Rule.Operator.Type)
	assert.Equal(t, "/label", got.Rule.Operator.Inputs[1].Path)

	reopened, err := svc.OpenSession(ctx, request(), true)
	require.NoError(t, err)
	defer reopened.Close()
	err = reopened.Do(func(e *editor.Editor) error {
		assert.Equal(t, editor.StateReadOnly, e.State())
		assert.Equal(t, 3, e.Snapshot().Len())
		_, err := e.AddOperator("min", nil)
		return err
	})
	assert.ErrorIs(t, err, editor.ErrNotEditable)
}

// blockingStore holds every Save until release is closed.
type blockingStore struct {
	*memory.Store
	started chan struct{}
	release chan struct{}
}

func (s *blockingStore) Save(ctx context.Context, rec *store.RuleRecord) error {
	close(s.started)
	<-s.release
	return s.Store.Save(ctx, rec)
}

func TestSession_EditDuringSave(t *testing.T) {
	st := &blockingStore{Store: memory.New(memory.Config{}), started: make(chan struct{}), release: make(chan struct{})}
	t.Cleanup(func() { _ = st.Close() })
	svc := NewRuleService(st, testCatalog(t))
	ctx := context.Background()

	sess, err := svc.OpenSession(ctx, request(), false)
	require.NoError(t, err)
	defer sess.Close()
	require.NoError(t, sess.Do(func(e *editor.Editor) error {
		sp, err := e.AddOperator(operator.SourcePathInputID, nil)
		if err != nil {
			return err
		}
		tp, err := e.AddOperator(operator.TargetPathInputID, nil)
		if err != nil {
			return err
		}
		c, err := e.AddOperator("equality", nil)
		if err != nil {
			return err
		}
		if _, err := e.AddEdge(sp, c, 0, editor.NoHandle); err != nil {
			return err
		}
		_, err = e.AddEdge(tp, c, 1, editor.NoHandle)
		return err
	}))

	saved := make(chan dto.SaveResult, 1)
	go func() { saved <- sess.Save(ctx) }()
	<-st.started

	edited := make(chan error, 1)
	go func() {
		edited <- sess.Do(func(e *editor.Editor) error {
			_, err := e.AddOperator("min", nil)
			return err
		})
	}()
	select {
	case err := <-edited:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("edit did not complete while the save was in flight")
	}

	close(st.release)
	res := <-saved
	require.True(t, res.Success, res.ErrorMessage)

	require.NoError(t, sess.Do(func(e *editor.Editor) error {
		assert.True(t, e.UnsavedChanges())
		assert.Equal(t, 4, e.Snapshot().Len())
		return nil
	}))
	got, err := svc.FetchRule(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, ruletree.TypeComparison, got.Rule.Operator.Type)
}

func TestSession_SaveClearsUnsavedChanges(t *testing.T) {
	svc, _ := newService(t)
	sess, err := svc.OpenSession(context.Background(), request(), false)
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.Do(func(e *editor.Editor) error {
		_, err := e.AddOperator(operator.SourcePathInputID, nil)
		return err
	}))
	require.True(t, sess.Save(context.Background()).Success)
	require.NoError(t, sess.Do(func(e *editor.Editor) error {
		assert.False(t, e.UnsavedChanges())
		return nil
	}))
}

func TestSession_SaveValidationError(t *testing.T) {
	svc, st := newService(t)
	sess, err := svc.OpenSession(context.Background(), request(), false)
	require.NoError(t, err)
	defer sess.Close()

	var ids []string
	require.NoError(t, sess.Do(func(e *editor.Editor) error {
		for i := 0; i < 2; i++ {
			id, err := e.AddOperator(operator.SourcePathInputID, nil)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	}))

	res := sess.Save(context.Background())
	assert.False(t, res.Success)
	var nodeIDs []string
	for _, ne := range res.NodeErrors {
		nodeIDs = append(nodeIDs, ne.NodeID)
	}
	assert.ElementsMatch(t, ids, nodeIDs)
	assert.Equal(t, 0, st.Len())
}

func TestSession_Close(t *testing.T) {
	svc, _ := newService(t)
	sess, err := svc.OpenSession(context.Background(), request(), false)
	require.NoError(t, err)

	sess.Close()
	sess.Close()
	assert.ErrorIs(t, sess.Do(func(*editor.Editor) error { return nil }), ErrSessionClosed)
	assert.False(t, sess.Save(context.Background()).Success)
}

func TestSession_ConcurrentAccess(t *testing.T) {
	svc, _ := newService(t)
	sess, err := svc.OpenSession(context.Background(), request(), false)
	require.NoError(t, err)
	defer sess.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.Do(func(e *editor.Editor) error {
				e.StartChangeTransaction()
				_, err := e.AddOperator("lowerCase", &rule.Position{})
				return err
			})
		}()
	}
	wg.Wait()

	require.NoError(t, sess.Do(func(e *editor.Editor) error {
		assert.Equal(t, 10, e.Snapshot().Len())
		steps := 0
		for e.CanUndo() {
			if _, err := e.Undo(); err != nil {
				return err
			}
			steps++
		}
		assert.Equal(t, 10, steps)
		return nil
	}))
}
