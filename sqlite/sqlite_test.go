package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/dataflow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "flows.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreateSchema(context.Background()))
	return s
}

func TestFlowLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := dataflow.New()
	a, err := m.AddNode(dataflow.Position{X: 1.5, Y: -2})
	require.NoError(t, err)
	b, err := m.AddNode(dataflow.Position{})
	require.NoError(t, err)
	require.NoError(t, m.AddEdge(a, b, "in"))
	def, src := m.Compile()

	created, err := s.CreateFlow(ctx, &dataflow.Flow{Name: "etl", Compiled: def, Source: src})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := s.GetFlow(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "etl", got.Name)
	assert.Equal(t, def, got.Compiled)
	assert.Equal(t, src, got.Source)
	assert.False(t, got.CreatedAt.IsZero())

	loaded, err := dataflow.Load(got.Compiled, got.Source)
	require.NoError(t, err)
	require.NoError(t, loaded.DeleteNode(a))
	got.Compiled, got.Source = loaded.Compile()
	require.NoError(t, s.UpdateFlow(ctx, got))

	again, err := s.GetFlow(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, again.Compiled.Nodes, 1)
	assert.Empty(t, again.Compiled.Edges)

	flows, err := s.ListFlows(ctx)
	require.NoError(t, err)
	assert.Len(t, flows, 1)

	require.NoError(t, s.DeleteFlow(ctx, created.ID))
	missing, err := s.GetFlow(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.ErrorIs(t, s.UpdateFlow(ctx, &dataflow.Flow{ID: created.ID}), dataflow.ErrFlowNotFound)
}
