// Package historytest holds behaviour tests every history.Saver must pass
package historytest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandermind/stategraph/internal/core/history"
	"github.com/wandermind/stategraph/internal/core/trace"
)

// Base is the start time of every sample run
var Base = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

// SampleRun builds a completed two-step run started offset after Base
func SampleRun(id, graph string, status history.Status, offset time.Duration) *history.Run {
	started := Base.Add(offset)
	run := &history.Run{
		ID:        id,
		GraphName: graph,
		Status:    status,
		Input:     map[string]any{"city": "Tokyo"},
		Final:     map[string]any{"city": "Tokyo", "itinerary": "Day 1: Asakusa"},
		Steps: []history.Step{
			{Number: 1, NodeID: "memory", StartedAt: started, Duration: time.Millisecond},
			{
				Number:    2,
				NodeID:    "logistics",
				Changes:   []trace.Change{{Field: "itinerary", Op: trace.OpSet, Value: "Day 1: Asakusa"}},
				StartedAt: started.Add(time.Millisecond),
				Duration:  2 * time.Millisecond,
			},
		},
		Tags:      []string{"test"},
		StartedAt: started,
		EndedAt:   started.Add(3 * time.Millisecond),
	}
	if status != history.StatusCompleted {
		run.Error = "node \"logistics\" failed at step 2: boom"
		run.ErrorKind = "node_execution"
		run.FailedAt = "logistics"
	}
	return run
}

// Run exercises save, load, list, filter, delete and concurrent saves.
// newSaver must return an empty saver.
func Run(t *testing.T, newSaver func(t *testing.T) history.Saver) {
	ctx := context.Background()

	t.Run("save and load", func(t *testing.T) {
		saver := newSaver(t)
		in := SampleRun("run-1", "travel", history.StatusFailed, 0)
		require.NoError(t, saver.Save(ctx, in))

		out, err := saver.Load(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, in.ID, out.ID)
		assert.Equal(t, in.GraphName, out.GraphName)
		assert.Equal(t, in.Status, out.Status)
		assert.Equal(t, in.Error, out.Error)
		assert.Equal(t, in.ErrorKind, out.ErrorKind)
		assert.Equal(t, in.FailedAt, out.FailedAt)
		assert.Equal(t, in.Tags, out.Tags)
		assert.Equal(t, "Day 1: Asakusa", out.Final["itinerary"])
		assert.Equal(t, []string{"memory", "logistics"}, out.NodeIDs())
		assert.Equal(t, 2*time.Millisecond, out.Steps[1].Duration)
		require.Len(t, out.Steps[1].Changes, 1)
		assert.Equal(t, "itinerary", out.Steps[1].Changes[0].Field)
		assert.True(t, in.StartedAt.Equal(out.StartedAt), "started_at %v != %v", in.StartedAt, out.StartedAt)
		assert.True(t, in.EndedAt.Equal(out.EndedAt))
	})

	t.Run("save replaces", func(t *testing.T) {
		saver := newSaver(t)
		require.NoError(t, saver.Save(ctx, SampleRun("run-1", "travel", history.StatusFailed, 0)))
		require.NoError(t, saver.Save(ctx, SampleRun("run-1", "travel", history.StatusCompleted, 0)))

		out, err := saver.Load(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, history.StatusCompleted, out.Status)

		runs, err := saver.List(ctx, history.Filter{})
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})

	t.Run("invalid run rejected", func(t *testing.T) {
		saver := newSaver(t)
		err := saver.Save(ctx, &history.Run{GraphName: "travel", Status: history.StatusCompleted})
		assert.ErrorIs(t, err, history.ErrInvalidRunID)
	})

	t.Run("missing run", func(t *testing.T) {
		saver := newSaver(t)
		_, err := saver.Load(ctx, "nope")
		assert.ErrorIs(t, err, history.ErrRunNotFound)
		assert.ErrorIs(t, saver.Delete(ctx, "nope"), history.ErrRunNotFound)
	})

	t.Run("list filters and pages", func(t *testing.T) {
		saver := newSaver(t)
		require.NoError(t, saver.Save(ctx, SampleRun("a", "travel", history.StatusCompleted, 0)))
		require.NoError(t, saver.Save(ctx, SampleRun("b", "travel", history.StatusFailed, time.Minute)))
		require.NoError(t, saver.Save(ctx, SampleRun("c", "other", history.StatusCompleted, 2*time.Minute)))
		require.NoError(t, saver.Save(ctx, SampleRun("d", "travel", history.StatusCancelled, 3*time.Minute)))

		since := Base.Add(time.Minute)
		before := Base.Add(3 * time.Minute)
		tests := []struct {
			name   string
			filter history.Filter
			want   []string
		}{
			{"all", history.Filter{}, []string{"d", "c", "b", "a"}},
			{"graph", history.Filter{GraphName: "travel"}, []string{"d", "b", "a"}},
			{"status", history.Filter{Status: history.StatusCompleted}, []string{"c", "a"}},
			{"window", history.Filter{Since: &since, Before: &before}, []string{"c", "b"}},
			{"limit offset", history.Filter{Limit: 2, Offset: 1}, []string{"c", "b"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				runs, err := saver.List(ctx, tt.filter)
				require.NoError(t, err)
				ids := make([]string, len(runs))
				for i, r := range runs {
					ids[i] = r.ID
				}
				assert.Equal(t, tt.want, ids)
			})
		}

		_, err := saver.List(ctx, history.Filter{Limit: -1})
		assert.ErrorIs(t, err, history.ErrInvalidLimit)
	})

	t.Run("delete", func(t *testing.T) {
		saver := newSaver(t)
		require.NoError(t, saver.Save(ctx, SampleRun("run-1", "travel", history.StatusCompleted, 0)))
		require.NoError(t, saver.Delete(ctx, "run-1"))
		_, err := saver.Load(ctx, "run-1")
		assert.ErrorIs(t, err, history.ErrRunNotFound)
	})

	t.Run("concurrent saves", func(t *testing.T) {
		saver := newSaver(t)
		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- saver.Save(ctx, SampleRun(fmt.Sprintf("run-%02d", i), "travel", history.StatusCompleted, time.Duration(i)*time.Second))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		runs, err := saver.List(ctx, history.Filter{GraphName: "travel"})
		require.NoError(t, err)
		assert.Len(t, runs, 20)
		assert.Equal(t, "run-19", runs[0].ID)
	})
}
