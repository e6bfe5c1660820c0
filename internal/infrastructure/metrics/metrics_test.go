package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandermind/stategraph/internal/app/usecases"
)

func TestRecorder_CountsLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	ctx := context.Background()
	events := []usecases.Event{
		{Type: usecases.EventRunStarted, GraphName: "g"},
		{Type: usecases.EventNodeStarted, GraphName: "g", NodeID: "a", Step: 1},
		{Type: usecases.EventNodeCompleted, GraphName: "g", NodeID: "a", Step: 1, Duration: time.Millisecond},
		{Type: usecases.EventNodeStarted, GraphName: "g", NodeID: "b", Step: 2},
		{Type: usecases.EventNodeFailed, GraphName: "g", NodeID: "b", Step: 2, Err: errors.New("x")},
		{Type: usecases.EventRunFailed, GraphName: "g", Err: &usecases.NodeExecutionError{NodeID: "b", Err: errors.New("x")}},
		{Type: usecases.EventRunStarted, GraphName: "g"},
		{Type: usecases.EventRunCompleted, GraphName: "g", Duration: time.Second},
	}
	for _, ev := range events {
		r.OnEvent(ctx, ev)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsStarted.WithLabelValues("g")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.runsActive.WithLabelValues("g")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsFinished.WithLabelValues("g", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsFinished.WithLabelValues("g", "node_execution")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.nodeCalls.WithLabelValues("g", "a", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.nodeCalls.WithLabelValues("g", "b", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.nodeDurations))
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustNew(reg)
	_, err := New(reg)
	assert.Error(t, err)
	assert.Panics(t, func() { MustNew(reg) })
}
