package graphrepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandermind/stategraph/internal/app/usecases"
	coregraph "github.com/wandermind/stategraph/internal/core/graph"
	"github.com/wandermind/stategraph/internal/core/state"
)

var schema = state.MustSchema("repo-test", state.StringField("out"))

func compiled(t *testing.T, name string) *coregraph.Compiled {
	t.Helper()
	g := coregraph.New(name, schema)
	require.NoError(t, g.AddNode("only", func(_ context.Context, s state.State) (state.State, error) {
		return s.Set("out", "done")
	}))
	require.NoError(t, g.SetEntryPoint("only"))
	require.NoError(t, g.SetFinishPoint("only"))
	c, err := g.Compile()
	require.NoError(t, err)
	return c
}

func TestInMemoryGraphRepository_Get_NotFound(t *testing.T) {
	repo := NewInMemoryGraphRepository()

	g, err := repo.Get(context.Background(), "does-not-exist")
	assert.Nil(t, g)
	assert.ErrorIs(t, err, usecases.ErrGraphNotFound)
}

func TestInMemoryGraphRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryGraphRepository()
	c := compiled(t, "g1")

	require.NoError(t, repo.Save(ctx, c))

	loaded, err := repo.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Same(t, c, loaded)
}

func TestInMemoryGraphRepository_SaveRejects(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryGraphRepository()

	assert.ErrorIs(t, repo.Save(ctx, nil), usecases.ErrNilGraph)

	require.NoError(t, repo.Save(ctx, compiled(t, "g1")))
	assert.ErrorIs(t, repo.Save(ctx, compiled(t, "g1")), usecases.ErrGraphExists)
}

func TestInMemoryGraphRepository_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryGraphRepository()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, repo.Save(ctx, compiled(t, name)))
	}

	list, err := repo.List(ctx)
	require.NoError(t, err)
	names := make([]string, len(list))
	for i, g := range list {
		names[i] = g.Name()
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)

	require.NoError(t, repo.Delete(ctx, "mid"))
	assert.ErrorIs(t, repo.Delete(ctx, "mid"), usecases.ErrGraphNotFound)
	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
