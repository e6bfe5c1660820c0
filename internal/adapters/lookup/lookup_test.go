package lookup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	docs, err := Noop{}.Search(context.Background(), "tokyo", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemory_Search(t *testing.T) {
	store := NewMemory(
		"Tokyo weather in spring is mild",
		"Kyoto temples open early",
		"Tokyo ramen festival on day three",
		"",
	)

	tests := []struct {
		name  string
		query string
		limit int
		want  []string
	}{
		{"best match first", "tokyo ramen", 5, []string{"Tokyo ramen festival on day three", "Tokyo weather in spring is mild"}},
		{"limit", "tokyo", 1, []string{"Tokyo weather in spring is mild"}},
		{"no match", "paris", 3, []string{}},
		{"short words ignored", "in on", 3, nil},
		{"zero limit", "tokyo", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Search(context.Background(), tt.query, tt.limit)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory("x").Search(ctx, "x", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
