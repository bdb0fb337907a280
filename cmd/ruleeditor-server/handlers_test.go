package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flowgraph/ruleeditor/internal/adapters/repository/memory"
	"github.com/flowgraph/ruleeditor/internal/app/dto"
	"github.com/flowgraph/ruleeditor/internal/app/usecases"
	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/infrastructure/metrics"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRule = `{"operator":{"type":"comparison","id":"cmp","metric":"equality",
  "inputs":[{"type":"pathInput","id":"src","path":"name"},{"type":"pathInput","id":"tgt","path":"label"}]},
 "layout":{"nodePositions":{"cmp":[250,0]}}}`

func newTestApp(t *testing.T, readOnly bool) *fiber.App {
	t.Helper()
	catalog := operator.FromDescriptors([]operator.PluginDescriptor{
		{PluginID: "equality", PluginType: "ComparisonOperator", Title: "Equality", Description: "Exact string equality"},
		{PluginID: "lowerCase", PluginType: "TransformOperator", Title: "Lower case"},
	}, nil)
	st := memory.New(memory.Config{})
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(nil)
	service := usecases.NewRuleService(st, catalog, usecases.WithLogger(logger), usecases.WithMetrics(m))
	return newApp(service, m, readOnly, logger)
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t, false)
	status, body := do(t, app, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(body))
}

func TestRuleLifecycle(t *testing.T) {
	app := newTestApp(t, false)
	const path = "/projects/movies/tasks/linking/rule"

	status, _ := do(t, app, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body := do(t, app, http.MethodPut, path, validRule)
	require.Equal(t, http.StatusOK, status, string(body))
	var saved dto.SaveResult
	require.NoError(t, json.Unmarshal(body, &saved))
	assert.True(t, saved.Success)
	assert.Equal(t, int64(1), saved.Version)

	status, body = do(t, app, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, status)
	var fetched dto.RuleResponse
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, "movies", fetched.ProjectID)
	assert.Equal(t, "equality", fetched.Rule.Operator.Metric)
	assert.Equal(t, [2]int{250, 0}, fetched.Rule.Layout.NodePositions["cmp"])

	status, body = do(t, app, http.MethodGet, "/rules?project=movies", "")
	require.Equal(t, http.StatusOK, status)
	var listed []dto.RuleResponse
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed, 1)

	status, _ = do(t, app, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, app, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSaveRuleErrors(t *testing.T) {
	const path = "/projects/movies/tasks/linking/rule"

	tests := []struct {
		name     string
		readOnly bool
		body     string
		want     int
	}{
		{name: "malformed body", body: `{"operator":`, want: http.StatusBadRequest},
		{name: "unknown operator type", body: `{"operator":{"type":"mystery","id":"x"}}`, want: http.StatusUnprocessableEntity},
		{name: "read-only server", readOnly: true, body: validRule, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, tt.readOnly)
			status, _ := do(t, app, http.MethodPut, path, tt.body)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestValidateRuleEndpoint(t *testing.T) {
	app := newTestApp(t, false)

	status, body := do(t, app, http.MethodPost, "/rules/validate", validRule)
	require.Equal(t, http.StatusOK, status)
	var res dto.ValidationResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Valid)

	status, body = do(t, app, http.MethodPost, "/rules/validate", `{"operator":{"type":"mystery","id":"x"}}`)
	require.Equal(t, http.StatusOK, status)
	res = dto.ValidationResult{}
	require.NoError(t, json.Unmarshal(body, &res))
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Message)
}

func TestListOperators(t *testing.T) {
	app := newTestApp(t, false)

	tests := []struct {
		name   string
		target string
		status int
		ids    []string
	}{
		{name: "all", target: "/operators", status: http.StatusOK, ids: []string{"equality", "lowerCase", "sourcePathInput", "targetPathInput"}},
		{name: "transform tab", target: "/operators?tab=transform", status: http.StatusOK, ids: []string{"lowerCase"}},
		{name: "aggregation tab is empty", target: "/operators?tab=aggregation", status: http.StatusOK, ids: []string{}},
		{name: "unknown tab", target: "/operators?tab=nope", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, http.MethodGet, tt.target, "")
			require.Equal(t, tt.status, status)
			if tt.ids == nil {
				return
			}
			var ops []operator.RuleOperator
			require.NoError(t, json.Unmarshal(body, &ops))
			ids := make([]string, 0, len(ops))
			for _, op := range ops {
				ids = append(ids, op.PluginID)
			}
			assert.ElementsMatch(t, tt.ids, ids)
		})
	}

	t.Run("search", func(t *testing.T) {
		status, body := do(t, app, http.MethodGet, "/operators?q=exact", "")
		require.Equal(t, http.StatusOK, status)
		var results []struct {
			Operator operator.RuleOperator
			Snippet  string
		}
		require.NoError(t, json.Unmarshal(body, &results))
		require.Len(t, results, 1)
		assert.Equal(t, "equality", results[0].Operator.PluginID)
		assert.Equal(t, "Exact string equality", results[0].Snippet)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, false)
	do(t, app, http.MethodPut, "/projects/movies/tasks/linking/rule", validRule)

	status, body := do(t, app, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "ruleeditor_saves_total")
}
