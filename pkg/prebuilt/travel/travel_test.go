package travel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandermind/stategraph/internal/adapters/llm"
	"github.com/wandermind/stategraph/internal/adapters/lookup"
	"github.com/wandermind/stategraph/pkg/prebuilt"
	"github.com/wandermind/stategraph/pkg/stategraph"
)

func tokyo() Input {
	return Input{
		City:        " Tokyo ",
		Country:     "Japan",
		Interests:   []string{"food", " anime ", ""},
		TravelDates: "July 2025",
		Budget:      "medium",
	}
}

func runPlanner(t *testing.T, cfg Config) (*stategraph.Result, error) {
	t.Helper()
	g, err := Build(cfg)
	require.NoError(t, err)
	rt := stategraph.MustNewRuntime()
	require.NoError(t, rt.Register(context.Background(), g))

	initial, err := tokyo().State()
	require.NoError(t, err)
	return rt.Run(context.Background(), Name, initial, stategraph.RunConfig{})
}

func TestBuild_Topology(t *testing.T) {
	g, err := Build(Config{Generator: &llm.Recorder{}})
	require.NoError(t, err)

	assert.Equal(t, Name, g.Name())
	assert.Equal(t, NodeMemory, g.EntryPoint())
	assert.Equal(t, []string{
		NodeMemory, NodeLocalExpert, NodeExperienceCurator, NodeWeather, NodeLogistics, NodeBudget, NodeEvent,
	}, g.NodeIDs())
	assert.Empty(t, g.Successors(NodeEvent))
	assert.Equal(t, []string{NodeBudget}, g.Predecessors(NodeEvent))
	assert.False(t, g.Cyclic())
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(Config{})
	assert.ErrorIs(t, err, ErrNoGenerator)

	bad := DefaultPrompts()
	bad.Budget = "fit {wallet}"
	_, err = Build(Config{Generator: &llm.Recorder{}, Prompts: &bad})
	assert.ErrorIs(t, err, ErrUnknownPlaceholder)
}

func TestPlanner_WithoutLookup(t *testing.T) {
	gen := &llm.Recorder{Replies: []string{"expert notes", "curated activities", "Day 1: Asakusa", "fits medium"}}
	res, err := runPlanner(t, Config{Generator: gen})
	require.NoError(t, err)

	assert.Equal(t, []string{
		" You are a travel expert. Provide safety, culture, and must-know info for visiting Tokyo, Japan",
		"Based on interests: food, anime, plan activities in Tokyo that match",
		"Organize the activities into a logical 5-day itinerary for Tokyo in July 2025",
		"Ensure this itinerary fits within a medium budget.",
	}, gen.Prompts)

	assert.Equal(t, "Day 1: Asakusa", Itinerary(res.Final))
	assert.Equal(t, []string{
		"AI: expert notes",
		"AI: curated activities",
		"AI: Checked weather: Mostly sunny, 25°C",
		"AI: Day 1: Asakusa",
		"AI: fits medium",
		"AI: Local Event: Tokyo Ramen Festa on Day 3",
	}, ConversationLog(res.Final))

	assert.Len(t, res.Trace, 7)
	memory := res.Trace[0]
	assert.Equal(t, NodeMemory, memory.NodeID)
	assert.Empty(t, memory.Changes, "memory without a store passes state through")
}

func TestPlanner_WithLookup(t *testing.T) {
	store := lookup.NewMemory(
		"Tokyo metro runs until midnight",
		"Tokyo weather in July is hot and humid",
		"Tokyo local events in July: Sumida fireworks",
	)
	gen := &llm.Recorder{}
	res, err := runPlanner(t, Config{Generator: gen, Lookup: store})
	require.NoError(t, err)

	log := ConversationLog(res.Final)
	require.Len(t, log, 7)
	assert.Equal(t, "SYSTEM: Travel notes:\n- Tokyo metro runs until midnight\n- Tokyo weather in July is hot and humid\n- Tokyo local events in July: Sumida fireworks", log[0])
	assert.Equal(t, "AI: Checked weather: Tokyo weather in July is hot and humid", log[3])
	assert.Equal(t, "AI: Local Event: Tokyo local events in July: Sumida fireworks", log[6])
}

func TestPlanner_EmptyLookupFallsBackToCanned(t *testing.T) {
	res, err := runPlanner(t, Config{Generator: &llm.Recorder{}, Lookup: lookup.Noop{}})
	require.NoError(t, err)
	log := ConversationLog(res.Final)
	require.Len(t, log, 6)
	assert.Equal(t, "AI: "+cannedWeather, log[2])
	assert.Equal(t, "AI: "+cannedEvent, log[5])
}

func TestPlanner_GeneratorFailure(t *testing.T) {
	quota := errors.New("quota exceeded")
	calls := 0
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) {
		calls++
		if calls == 2 {
			return "", &llm.ServiceError{Op: "generate", Err: quota}
		}
		return "ok", nil
	})

	res, err := runPlanner(t, Config{Generator: gen})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, stategraph.ErrNodeExecution)
	assert.ErrorIs(t, err, quota)
	assert.Equal(t, NodeExperienceCurator, stategraph.FailedNodeOf(err))

	tr, ok := stategraph.TraceOf(err)
	require.True(t, ok)
	assert.Equal(t, []string{NodeMemory, NodeLocalExpert}, tr.NodeIDs())
}

func TestPrompts(t *testing.T) {
	t.Run("partial yaml keeps defaults", func(t *testing.T) {
		p, err := ParsePrompts([]byte("budget: \"Trim this plan to a {budget} budget\"\n"))
		require.NoError(t, err)
		assert.Equal(t, "Trim this plan to a {budget} budget", p.Budget)
		assert.Equal(t, DefaultPrompts().Logistics, p.Logistics)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := ParsePrompts([]byte("budget: [unclosed"))
		assert.ErrorContains(t, err, "failed to parse prompts")
	})

	t.Run("empty template", func(t *testing.T) {
		_, err := ParsePrompts([]byte("logistics: \"\"\n"))
		assert.ErrorContains(t, err, "prompt logistics is empty")
	})

	t.Run("load file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.yaml")
		require.NoError(t, os.WriteFile(path, []byte("local_expert: \"Tips for {city}\"\n"), 0o600))
		p, err := LoadPrompts(path)
		require.NoError(t, err)
		assert.Equal(t, "Tips for {city}", p.LocalExpert)

		def, err := LoadPrompts("")
		require.NoError(t, err)
		assert.Equal(t, DefaultPrompts(), def)

		_, err = LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestRender(t *testing.T) {
	s, err := tokyo().State()
	require.NoError(t, err)

	tests := []struct {
		tmpl string
		want string
	}{
		{"{city}, {country}", "Tokyo, Japan"},
		{"likes {interests}", "likes food, anime"},
		{"{unknown} stays", "{unknown} stays"},
		{"no placeholders", "no placeholders"},
	}
	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.tmpl, s))
		})
	}
}

func TestParseInterests(t *testing.T) {
	assert.Equal(t, []string{"food", "anime"}, ParseInterests(" food, ,anime ,"))
	assert.Nil(t, ParseInterests(""))
}

func TestNewBuilder(t *testing.T) {
	b := NewBuilder()
	assert.Equal(t, Name, b.Name())

	g, err := b.Build(context.Background(), &Config{Generator: &llm.Recorder{}})
	require.NoError(t, err)
	assert.Equal(t, Name, g.Name())

	_, err = b.Build(context.Background(), "nope")
	assert.ErrorIs(t, err, prebuilt.ErrConfigType)
}
