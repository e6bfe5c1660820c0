package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandermind/stategraph/internal/app/dto"
	"github.com/wandermind/stategraph/internal/core/graph"
	"github.com/wandermind/stategraph/internal/core/state"
)

var testSchema = state.MustSchema("executor-test",
	state.MessagesField("messages"),
	state.IntField("count"),
)

// appendNode appends an AI message with content to the log
func appendNode(content string) graph.NodeFunc {
	return func(_ context.Context, s state.State) (state.State, error) {
		return s.Append("messages", state.AIMessage(content))
	}
}

// countingNode wraps fn and counts invocations
type countingNode struct {
	mu    sync.Mutex
	calls map[string]int
}

func newCountingNode() *countingNode { return &countingNode{calls: map[string]int{}} }

func (c *countingNode) wrap(id string, fn graph.NodeFunc) graph.NodeFunc {
	return func(ctx context.Context, s state.State) (state.State, error) {
		c.mu.Lock()
		c.calls[id]++
		c.mu.Unlock()
		return fn(ctx, s)
	}
}

func (c *countingNode) count(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

func compileLinear(t *testing.T, counter *countingNode, fns map[string]graph.NodeFunc, ids ...string) *graph.Compiled {
	t.Helper()
	g := graph.New("linear", testSchema)
	for _, id := range ids {
		fn := fns[id]
		if fn == nil {
			fn = appendNode(id)
		}
		if counter != nil {
			fn = counter.wrap(id, fn)
		}
		require.NoError(t, g.AddNode(id, fn))
	}
	for i := 0; i < len(ids)-1; i++ {
		require.NoError(t, g.AddEdge(ids[i], ids[i+1]))
	}
	require.NoError(t, g.SetFinishPoint(ids[len(ids)-1]))
	require.NoError(t, g.SetEntryPoint(ids[0]))
	c, err := g.Compile()
	require.NoError(t, err)
	return c
}

func contents(s state.State) []string {
	var out []string
	for _, m := range s.Messages("messages") {
		out = append(out, m.Content)
	}
	return out
}

func TestExecutor_MessageScenario(t *testing.T) {
	c := compileLinear(t, nil, nil, "A", "B", "C")
	exec := NewExecutor()

	res, err := exec.Run(context.Background(), c, testSchema.Zero(), dto.RunConfig{})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, contents(res.Final))
	require.Equal(t, 3, res.Trace.Len())
	assert.Equal(t, []string{"A", "B", "C"}, res.Trace.NodeIDs())
	assert.Equal(t, 3, res.Steps)
	assert.Equal(t, "linear", res.GraphName)
	assert.NotEmpty(t, res.RunID)
	for i, rec := range res.Trace {
		assert.Equal(t, i+1, rec.Step)
		require.Len(t, rec.Changes, 1)
		assert.Equal(t, "messages", rec.Changes[0].Field)
	}
}

func TestExecutor_LinearTraceMatchesRegistrationOrder(t *testing.T) {
	for n := 1; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d nodes", n), func(t *testing.T) {
			ids := make([]string, n)
			for i := range ids {
				ids[i] = fmt.Sprintf("n%d", i)
			}
			c := compileLinear(t, nil, nil, ids...)

			res, err := NewExecutor().Run(context.Background(), c, testSchema.Zero(), dto.RunConfig{})
			require.NoError(t, err)

			assert.Equal(t, ids, res.Trace.NodeIDs())
			last, ok := res.Trace.Last()
			require.True(t, ok)
			assert.Equal(t, last.State.Values(), res.Final.Values())
			assert.Equal(t, ids[n-1], last.NodeID)
		})
	}
}

func TestExecutor_FailureAsSecondOfFour(t *testing.T) {
	boom := errors.New("simulated fault")
	counter := newCountingNode()
	c := compileLinear(t, counter, map[string]graph.NodeFunc{
		"n2": func(context.Context, state.State) (state.State, error) { return state.State{}, boom },
	}, "n1", "n2", "n3", "n4")

	initial, err := testSchema.New(map[string]any{"count": 7})
	require.NoError(t, err)

	res, err := NewExecutor().Run(context.Background(), c, initial, dto.RunConfig{})
	assert.Nil(t, res)

	var nodeErr *NodeExecutionError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "n2", nodeErr.NodeID)
	assert.Equal(t, 2, nodeErr.Step)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrNodeExecution)

	tr, ok := TraceOf(err)
	require.True(t, ok)
	assert.Equal(t, []string{"n1"}, tr.NodeIDs())

	// the state the failing node received: n1's output
	assert.Equal(t, []string{"n1"}, contents(nodeErr.LastState()))
	assert.Equal(t, 7, nodeErr.LastState().Int("count"))

	assert.Equal(t, 1, counter.count("n1"))
	assert.Equal(t, 1, counter.count("n2"))
	assert.Equal(t, 0, counter.count("n3"))
	assert.Equal(t, 0, counter.count("n4"))
	assert.Equal(t, "node_execution", ErrorKind(err))
	assert.Equal(t, "n2", FailedNodeOf(err))
}

func TestExecutor_NodePanicIsContained(t *testing.T) {
	c := compileLinear(t, nil, map[string]graph.NodeFunc{
		"b": func(context.Context, state.State) (state.State, error) { panic(errors.New("nil map")) },
	}, "a", "b")

	_, err := NewExecutor().Run(context.Background(), c, testSchema.Zero(), dto.RunConfig{})

	var nodeErr *NodeExecutionError
	require.ErrorAs(t, err, &nodeErr)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.EqualError(t, pe, "panic: nil map")
	assert.Equal(t, []string{"a"}, nodeErr.PartialTrace().NodeIDs())
}

func TestExecutor_RoutingOutsideDeclaredSet(t *testing.T) {
	counter := newCountingNode()
	g := graph.New("router", testSchema)
	require.NoError(t, g.AddNode("first", counter.wrap("first", appendNode("first"))))
	require.NoError(t, g.AddNode("decide", counter.wrap("decide", appendNode("decide"))))
	require.NoError(t, g.AddNode("yes", counter.wrap("yes", appendNode("yes"))))
	require.NoError(t, g.AddNode("no", counter.wrap("no", appendNode("no"))))
	require.NoError(t, g.AddEdge("first", "decide"))
	require.NoError(t, g.AddConditionalEdge("decide", func(state.State) string { return "maybe" }, "yes", "no"))
	require.NoError(t, g.SetFinishPoint("yes"))
	require.NoError(t, g.SetFinishPoint("no"))
	require.NoError(t, g.SetEntryPoint("first"))
	c, err := g.Compile()
	require.NoError(t, err)

	res, err := NewExecutor().Run(context.Background(), c, testSchema.Zero(), dto.RunConfig{})
	assert.Nil(t, res)

	var routeErr *RoutingError
	require.ErrorAs(t, err, &routeErr)
	assert.Equal(t, "decide", routeErr.NodeID)
	assert.Equal(t, "maybe", routeErr.Target)
	assert.Equal(t, []string{"yes", "no"}, routeErr.Targets)
	assert.ErrorIs(t, err, ErrUndeclaredTarget)
	assert.ErrorIs(t, err, ErrRouting)
	assert.NotErrorIs(t, err, ErrNodeExecution)

	// records up to the fault: the routing node completed, nothing after it ran
	assert.Equal(t, []string{"first", "decide"}, routeErr.PartialTrace().NodeIDs())
	assert.Equal(t, []string{"first", "decide"}, contents(routeErr.LastState()))
	assert.Equal(t, 0, counter.count("yes"))
	assert.Equal(t, 0, counter.count("no"))
	assert.Equal(t, "decide", FailedNodeOf(err))
	assert.Equal(t, "routing", ErrorKind(err))
}

func TestExecutor_ConditionalBranching(t *testing.T) {
	g := graph.New("branch", testSchema)
	require.NoError(t, g.AddNode("inc", func(_ context.Context, s state.State) (state.State, error) {
		return s.Set("count", s.Int("count")+1)
	}))
	require.NoError(t, g.AddNode("even", appendNode("even")))
	require.NoError(t, g.AddNode("odd", appendNode("odd")))
	require.NoError(t, g.AddConditionalEdge("inc", func(s state.State) string {
		if s.Int("count")%2 == 0 {
			return "even"
		}
		return "odd"
	}, "even", "odd"))
	require.NoError(t, g.SetFinishPoint("even"))
	require.NoError(t, g.SetFinishPoint("odd"))
	require.NoError(t, g.SetEntryPoint("inc"))
	c, err := g.Compile()
	require.NoError(t, err)

	tests := []struct {
		start int
		want  []string
	}{
		{start: 0, want: []string{"inc", "odd"}},
		{start: 1, want: []string{"inc", "even"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("start %d", tt.start), func(t *testing.T) {
			initial, err := testSchema.New(map[string]any{"count": tt.start})
			require.NoError(t, err)
			res, err := NewExecutor().Run(context.Background(), c, initial, dto.RunConfig{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Trace.NodeIDs())
			for _, id := range res.Trace.NodeIDs() {
				assert.NotEqual(t, graph.ReachNone, c.Reachability(id))
			}
		})
	}
}

func TestExecutor_VisitsOnlyReachableNodes(t *testing.T) {
	// "orphan" has an edge into the graph but nothing leads to it, so the
	// definition must be rejected before any run can visit it
	g := graph.New("orphan", testSchema)
	require.NoError(t, g.AddNode("a", appendNode("a")))
	require.NoError(t, g.AddNode("orphan", appendNode("orphan")))
	require.NoError(t, g.AddEdge("orphan", "a"))
	require.NoError(t, g.SetFinishPoint("a"))
	require.NoError(t, g.SetEntryPoint("a"))
	_, err := g.Compile()
	assert.ErrorIs(t, err, graph.ErrUnreachable)

	// every node a looping graph visits is reachable
	c := loopGraph(t, nil, 3)
	res, err := NewExecutor().Run(context.Background(), c, testSchema.Zero(), dto.RunConfig{})
	require.NoError(t, err)
	for _, id := range res.Trace.NodeIDs() {
		assert.NotEqual(t, graph.ReachNone, c.Reachability(id), id)
	}
}

// loopGraph builds work -> check -> (work | END); check exits once count reaches exitAt.
// exitAt < 0 never exits.
func loopGraph(t *testing.T, counter *countingNode, exitAt int) *graph.Compiled {
	t.Helper()
	work := func(_ context.Context, s state.State) (state.State, error) {
		return s.Set("count", s.Int("count")+1)
	}
	check := func(_ context.Context, s state.State) (state.State, error) { return s, nil }
	if counter != nil {
		work = counter.wrap("work", work)
		check = counter.wrap("check", check)
	}
	g := graph.New("loop", testSchema)
	require.NoError(t, g.AddNode("work", work))
	require.NoError(t, g.AddNode("check", check))
	require.NoError(t, g.AddEdge("work", "check"))
	require.NoError(t, g.AddConditionalEdge("check", func(s state.State) string {
		if exitAt >= 0 && s.Int("count") >= exitAt {
			return graph.END
		}
		return "work"
	}, "work", graph.END))
	require.NoError(t, g.SetEntryPoint("work"))
	c, err := g.Compile()
	require.NoError(t, err)
	return c
}

func TestExecutor_StepLimit(t *testing.T) {
	for _, k := range []int{1, 2, 5, 17} {
		t.Run(fmt.Sprintf("K=%d", k), func(t *testing.T) {
			counter := newCountingNode()
			c := loopGraph(t, counter, -1)

			res, err := NewExecutor().Run(context.Background(), c, testSchema.Zero(), dto.RunConfig{MaxSteps: k})
			assert.Nil(t, res)

			var limitErr *StepLimitExceededError
			require.ErrorAs(t, err, &limitErr)
			assert.Equal(t, k, limitErr.Limit)
			assert.Equal(t, k, limitErr.PartialTrace().Len())
			assert.Equal(t, k, counter.count("work")+counter.count("check"))
			assert.ErrorIs(t, err, ErrStepLimitExceeded)
		})
	}
}

func TestExecutor_StepLimitNotHitWhenEndReachedOnLastStep(t *testing.T) {
	c := loopGraph(t, nil, 2) // work, check, work, check -> END
	res, err := NewExecutor().Run(context.Background(), c, testSchema.Zero(), dto.RunConfig{MaxSteps: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Steps)
	assert.Equal(t, 2, res.Final.Int("count"))
}

func TestExecutor_DefaultStepLimit(t *testing.T) {
	c := loopGraph(t, nil, -1)
	_, err := NewExecutor().Run(context.Background(), c, testSchema.Zero(), dto.RunConfig{})
	var limitErr *StepLimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, dto.DefaultMaxSteps, limitErr.Limit)
}

func TestExecutor_CancelledBetweenNodes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	counter := newCountingNode()
	c := compileLinear(t, counter, map[string]graph.NodeFunc{
		"b": func(_ context.Context, s state.State) (state.State, error) {
			cancel()
			// the running node is not interrupted
			return s.Append("messages", state.AIMessage("b"))
		},
	}, "a", "b", "c")

	res, err := NewExecutor().Run(ctx, c, testSchema.Zero(), dto.RunConfig{})
	assert.Nil(t, res)

	var cancelErr *CancelledError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "c", cancelErr.NodeID)
	assert.Equal(t, 3, cancelErr.Step)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, []string{"a", "b"}, cancelErr.PartialTrace().NodeIDs())
	assert.Equal(t, []string{"a", "b"}, contents(cancelErr.LastState()))
	assert.Equal(t, 0, counter.count("c"))
}

func TestExecutor_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := compileLinear(t, nil, nil, "a")
	_, err := NewExecutor().Run(ctx, c, testSchema.Zero(), dto.RunConfig{})

	var cancelErr *CancelledError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, 0, cancelErr.PartialTrace().Len())
}

func TestExecutor_Timeout(t *testing.T) {
	c := compileLinear(t, nil, map[string]graph.NodeFunc{
		"slow": func(_ context.Context, s state.State) (state.State, error) {
			time.Sleep(30 * time.Millisecond)
			return s, nil
		},
	}, "slow", "after")

	_, err := NewExecutor().Run(context.Background(), c, testSchema.Zero(), dto.RunConfig{Timeout: 5 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "cancelled", ErrorKind(err))
}

func TestExecutor_Preconditions(t *testing.T) {
	c := compileLinear(t, nil, nil, "a")
	other := state.MustSchema("other", state.StringField("x"))
	exec := NewExecutor()

	_, err := exec.Run(context.Background(), nil, testSchema.Zero(), dto.RunConfig{})
	assert.ErrorIs(t, err, ErrNilGraph)

	_, err = exec.Run(context.Background(), c, state.State{}, dto.RunConfig{})
	assert.ErrorIs(t, err, ErrInvalidInitialState)

	_, err = exec.Run(context.Background(), c, other.Zero(), dto.RunConfig{})
	assert.ErrorIs(t, err, ErrInvalidInitialState)

	_, err = exec.Run(context.Background(), c, testSchema.Zero(), dto.RunConfig{RunID: "not-a-uuid"})
	assert.ErrorIs(t, err, dto.ErrInvalidConfig)

	_, ok := TraceOf(err)
	assert.False(t, ok)
}

func TestExecutor_HooksAndContext(t *testing.T) {
	var seen []string
	c := compileLinear(t, nil, map[string]graph.NodeFunc{
		"a": func(ctx context.Context, s state.State) (state.State, error) {
			seen = append(seen, fmt.Sprintf("%s/%s/%s/%d", RunIDFrom(ctx), GraphNameFrom(ctx), NodeIDFrom(ctx), StepFrom(ctx)))
			return s, nil
		},
	}, "a", "b")

	recorder := &EventRecorder{}
	exec := NewExecutor(
		WithHooks(recorder),
		WithRunIDGenerator(func() string { return "run-1" }),
	)

	res, err := exec.Run(context.Background(), c, testSchema.Zero(), dto.RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, []string{"run-1/linear/a/1"}, seen)

	assert.Equal(t, []EventType{
		EventRunStarted,
		EventNodeStarted, EventNodeCompleted,
		EventNodeStarted, EventNodeCompleted,
		EventRunCompleted,
	}, recorder.Types())
	for _, ev := range recorder.Events {
		assert.Equal(t, "run-1", ev.RunID)
		assert.Equal(t, "linear", ev.GraphName)
	}
}

func TestExecutor_HooksOnFailure(t *testing.T) {
	c := compileLinear(t, nil, map[string]graph.NodeFunc{
		"b": func(context.Context, state.State) (state.State, error) { return state.State{}, errors.New("x") },
	}, "a", "b")

	var types []EventType
	hook := HookFunc(func(_ context.Context, ev Event) { types = append(types, ev.Type) })

	_, err := NewExecutor(WithHooks(hook)).Run(context.Background(), c, testSchema.Zero(), dto.RunConfig{})
	require.Error(t, err)
	assert.Equal(t, []EventType{
		EventRunStarted,
		EventNodeStarted, EventNodeCompleted,
		EventNodeStarted, EventNodeFailed,
		EventRunFailed,
	}, types)
}

func TestExecutor_ConcurrentRunsShareCompiledGraph(t *testing.T) {
	c := loopGraph(t, nil, 10)
	exec := NewExecutor()

	var wg sync.WaitGroup
	results := make([]*Result, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			initial, err := testSchema.New(map[string]any{"count": i % 5})
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = exec.Run(context.Background(), c, initial, dto.RunConfig{})
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, 10, results[i].Final.Int("count"))
		assert.Equal(t, 2*(10-i%5), results[i].Steps)
	}
}
