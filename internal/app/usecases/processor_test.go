package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandermind/stategraph/internal/core/graph"
	"github.com/wandermind/stategraph/internal/core/state"
)

func TestDefaultNodeProcessor(t *testing.T) {
	processor := NewDefaultNodeProcessor()
	ctx := context.Background()
	input := testSchema.Zero()

	t.Run("returns node output", func(t *testing.T) {
		node := graph.Node{ID: "a", Fn: appendNode("a")}
		out, err := processor.Process(ctx, node, input)
		require.NoError(t, err)
		assert.Equal(t, []state.Message{state.AIMessage("a")}, out.Messages("messages"))
	})

	t.Run("passes node error through", func(t *testing.T) {
		boom := errors.New("boom")
		node := graph.Node{ID: "a", Fn: func(context.Context, state.State) (state.State, error) {
			return state.State{}, boom
		}}
		_, err := processor.Process(ctx, node, input)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("recovers panic", func(t *testing.T) {
		node := graph.Node{ID: "a", Fn: func(context.Context, state.State) (state.State, error) {
			panic("kaboom")
		}}
		out, err := processor.Process(ctx, node, input)

		var pe *PanicError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "kaboom", pe.Value)
		assert.NotEmpty(t, pe.Stack)
		assert.True(t, out.IsZero())
	})

	t.Run("rejects zero output", func(t *testing.T) {
		node := graph.Node{ID: "a", Fn: func(context.Context, state.State) (state.State, error) {
			return state.State{}, nil
		}}
		_, err := processor.Process(ctx, node, input)
		assert.ErrorIs(t, err, state.ErrInvalidState)
	})

	t.Run("rejects truncated message log", func(t *testing.T) {
		seeded, err := input.Append("messages", state.HumanMessage("hi"))
		require.NoError(t, err)
		node := graph.Node{ID: "a", Fn: func(context.Context, state.State) (state.State, error) {
			return testSchema.Zero(), nil
		}}
		_, err = processor.Process(ctx, node, seeded)
		assert.ErrorIs(t, err, state.ErrAppendOnly)
	})
}
