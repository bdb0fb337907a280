package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/flowgraph/ruleeditor/internal/core/store"
	"github.com/flowgraph/ruleeditor/pkg/ruletree"
	"github.com/flowgraph/ruleeditor/pkg/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	dsn := os.Getenv("RULEEDITOR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Integration test requires PostgreSQL database (set RULEEDITOR_TEST_POSTGRES_DSN)")
	}

	ctx := context.Background()
	s, err := Connect(ctx, dsn, serialization.Default())
	require.NoError(t, err)
	defer s.Close()

	r := &store.RuleRecord{
		ProjectID: "movies",
		TaskID:    "pg-test",
		Rule:      &ruletree.Rule{Operator: &ruletree.Operator{Type: ruletree.TypePathInput, ID: "sp1", Path: "/name"}},
	}
	_ = s.Delete(ctx, r.ProjectID, r.TaskID)

	require.NoError(t, s.Save(ctx, r))
	require.NoError(t, s.Save(ctx, r))
	assert.Equal(t, int64(2), r.Version)

	loaded, err := s.Load(ctx, r.ProjectID, r.TaskID)
	require.NoError(t, err)
	assert.Equal(t, r.Rule, loaded.Rule)

	records, err := s.List(ctx, store.Filter{ProjectID: "movies", Limit: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, records)

	require.NoError(t, s.Delete(ctx, r.ProjectID, r.TaskID))
	_, err = s.Load(ctx, r.ProjectID, r.TaskID)
	assert.ErrorIs(t, err, store.ErrRuleNotFound)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := New(nil, serialization.Default())

	assert.ErrorIs(t, s.Save(ctx, nil), store.ErrNilRecord)
	_, err := s.Load(ctx, "p", "")
	assert.ErrorIs(t, err, store.ErrInvalidTaskID)
	assert.ErrorIs(t, s.Delete(ctx, "", "t"), store.ErrInvalidProjectID)
}

func TestBuildListQuery(t *testing.T) {
	s := New(nil, nil).WithTableName("linkage_rules")
	query, args := s.buildListQuery(store.Filter{ProjectID: "movies", Limit: 5, Offset: 10})

	assert.Equal(t, "SELECT project_id, task_id, rule, version, updated_at FROM linkage_rules WHERE 1=1"+
		" AND project_id = $1 ORDER BY updated_at DESC, project_id, task_id LIMIT $2 OFFSET $3", query)
	assert.Equal(t, []any{"movies", 5, 10}, args)

	s.WithTableName(`bad"name`)
	assert.Equal(t, "linkage_rules", s.tableName)
}
