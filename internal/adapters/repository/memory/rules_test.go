package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flowgraph/ruleeditor/internal/core/store"
	"github.com/flowgraph/ruleeditor/pkg/ruletree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(project, task, path string) *store.RuleRecord {
	return &store.RuleRecord{
		ProjectID: project,
		TaskID:    task,
		Rule: &ruletree.Rule{Operator: &ruletree.Operator{
			Type: ruletree.TypePathInput, ID: "sp1", Path: path,
		}},
	}
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := New(Config{})
	defer s.Close()

	r := record("movies", "linking", "/name")
	require.NoError(t, s.Save(ctx, r))
	assert.Equal(t, int64(1), r.Version)
	assert.False(t, r.UpdatedAt.IsZero())

	loaded, err := s.Load(ctx, "movies", "linking")
	require.NoError(t, err)
	assert.Equal(t, "/name", loaded.Rule.Operator.Path)
	assert.Equal(t, int64(1), loaded.Version)
	assert.True(t, r.UpdatedAt.Equal(loaded.UpdatedAt))

	// stored copies are independent of the caller's record
	r.Rule.Operator.Path = "/changed"
	loaded, err = s.Load(ctx, "movies", "linking")
	require.NoError(t, err)
	assert.Equal(t, "/name", loaded.Rule.Operator.Path)

	require.NoError(t, s.Save(ctx, record("movies", "linking", "/title")))
	loaded, err = s.Load(ctx, "movies", "linking")
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Version)
	assert.Equal(t, "/title", loaded.Rule.Operator.Path)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := New(Config{})
	defer s.Close()

	tests := []struct {
		name string
		run  func() error
		err  error
	}{
		{name: "save nil", run: func() error { return s.Save(ctx, nil) }, err: store.ErrNilRecord},
		{name: "save without rule", run: func() error { return s.Save(ctx, &store.RuleRecord{ProjectID: "p", TaskID: "t"}) }, err: store.ErrNilRule},
		{name: "load missing", run: func() error { _, err := s.Load(ctx, "p", "t"); return err }, err: store.ErrRuleNotFound},
		{name: "load empty project", run: func() error { _, err := s.Load(ctx, "", "t"); return err }, err: store.ErrInvalidProjectID},
		{name: "delete missing", run: func() error { return s.Delete(ctx, "p", "t") }, err: store.ErrRuleNotFound},
		{name: "delete empty task", run: func() error { return s.Delete(ctx, "p", "") }, err: store.ErrInvalidTaskID},
		{name: "list invalid filter", run: func() error { _, err := s.List(ctx, store.Filter{Limit: -1}); return err }, err: store.ErrInvalidLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.err)
		})
	}
}

func TestStore_ListDelete(t *testing.T) {
	ctx := context.Background()
	s := New(Config{})
	defer s.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	require.NoError(t, s.Save(ctx, record("movies", "a", "/a")))
	require.NoError(t, s.Save(ctx, record("movies", "b", "/b")))
	require.NoError(t, s.Save(ctx, record("music", "c", "/c")))

	all, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].TaskID)

	movies, err := s.List(ctx, store.Filter{ProjectID: "movies"})
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "b", movies[0].TaskID)

	paged, err := s.List(ctx, store.Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "b", paged[0].TaskID)

	require.NoError(t, s.Delete(ctx, "movies", "a"))
	assert.Equal(t, 2, s.Len())
	_, err = s.Load(ctx, "movies", "a")
	assert.ErrorIs(t, err, store.ErrRuleNotFound)
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := New(Config{TTL: time.Hour, CleanupInterval: time.Hour})
	defer s.Close()

	now := time.Now()
	s.now = func() time.Time { return now }
	require.NoError(t, s.Save(ctx, record("p", "t", "/x")))

	_, err := s.Load(ctx, "p", "t")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = s.Load(ctx, "p", "t")
	assert.ErrorIs(t, err, store.ErrRuleNotFound)

	s.removeExpired()
	assert.Equal(t, 0, s.Len())
}

func TestStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := New(Config{})
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Save(ctx, record("p", "t", "/x")))
			_, err := s.Load(ctx, "p", "t")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := s.Load(ctx, "p", "t")
	require.NoError(t, err)
	assert.Equal(t, int64(20), loaded.Version)
}
