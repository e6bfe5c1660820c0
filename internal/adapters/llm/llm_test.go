package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceError(t *testing.T) {
	cause := errors.New("rate limited")
	err := error(&ServiceError{Op: "generate", Model: "m", Err: cause})

	assert.EqualError(t, err, "llm generate (m): rate limited")
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, &ServiceError{Op: "embed", Err: cause}, "llm embed: rate limited")
}

func TestRecorder(t *testing.T) {
	r := &Recorder{Replies: []string{"first"}}
	ctx := context.Background()

	out, err := r.Generate(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	out, err = r.Generate(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "echo: p2", out)
	assert.Equal(t, []string{"p1", "p2"}, r.Prompts)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.Generate(cancelled, "p3")
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeneratorFunc(t *testing.T) {
	var g TextGenerator = GeneratorFunc(func(_ context.Context, p string) (string, error) { return p + "!", nil })
	out, err := g.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi!", out)
}
