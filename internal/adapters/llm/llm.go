// Package llm defines the text generation and embedding collaborators used by
// graph nodes. Node code depends on these interfaces only.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when the service answered without content
var ErrEmptyResponse = errors.New("empty response")

// TextGenerator turns a prompt into text
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns texts into vectors, one per input, in order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ServiceError reports a failed call to a model service
type ServiceError struct {
	Op    string
	Model string
	Err   error
}

func (e *ServiceError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("llm %s (%s): %v", e.Op, e.Model, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// GeneratorFunc adapts a function to TextGenerator
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// EmbedderFunc adapts a function to Embedder
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// Recorder is a TextGenerator that records prompts and answers from a script.
// Once the script is exhausted it echoes the prompt.
type Recorder struct {
	Replies []string
	Prompts []string
}

func (r *Recorder) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ServiceError{Op: "generate", Err: err}
	}
	r.Prompts = append(r.Prompts, prompt)
	if i := len(r.Prompts) - 1; i < len(r.Replies) {
		return r.Replies[i], nil
	}
	return "echo: " + prompt, nil
}
