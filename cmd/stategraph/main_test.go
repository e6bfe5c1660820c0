// Package main tests for the stategraph CLI
package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandermind/stategraph/internal/adapters/llm"
	"github.com/wandermind/stategraph/internal/app/bootstrap"
	"github.com/wandermind/stategraph/pkg/prebuilt/travel"
)

// execute runs the CLI with args and stdin, returning stdout
func execute(t *testing.T, stdin string, args []string, opts ...bootstrap.Option) (string, error) {
	t.Helper()
	t.Setenv("STATEGRAPH_HISTORY_BACKEND", "none")
	opts = append(opts, bootstrap.WithLogOutput(&bytes.Buffer{}))

	cmd := newRootCmd(opts...)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.Execute()
	return out.String(), err
}

func scripted() bootstrap.Option {
	return bootstrap.WithGenerator(&llm.Recorder{Replies: []string{
		"Carry cash.", "Visit Tsukiji.", "Day 1: Asakusa\nDay 2: Shibuya", "Fits a low budget.",
	}})
}

func TestVersion(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		commit    string
		buildTime string
		want      string
	}{
		{"dev defaults", "dev", "unknown", "unknown", "StateGraph dev (commit: unknown, built: unknown)\n"},
		{"custom values", "v1.0.0", "abc123", "2026-01-01", "StateGraph v1.0.0 (commit: abc123, built: 2026-01-01)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
			t.Cleanup(func() { Version, Commit, BuildTime = origVersion, origCommit, origBuildTime })
			Version, Commit, BuildTime = tt.version, tt.commit, tt.buildTime

			out, err := execute(t, "", []string{"version"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestGraph(t *testing.T) {
	out, err := execute(t, "", []string{"graph"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD"))
	for _, id := range []string{travel.NodeMemory, travel.NodeLogistics, travel.NodeEvent} {
		assert.Contains(t, out, id)
	}

	out, err = execute(t, "", []string{"graph", "--format", "json"})
	require.NoError(t, err)
	var topo struct {
		Name  string `json:"name"`
		Nodes []struct {
			ID string `json:"id"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &topo))
	assert.Equal(t, travel.Name, topo.Name)
	assert.Len(t, topo.Nodes, 7)

	_, err = execute(t, "", []string{"graph", "--format", "dot"})
	assert.ErrorContains(t, err, "unknown format")
}

func TestPlan_FromFlags(t *testing.T) {
	out, err := execute(t, "", []string{
		"plan", "--city", "Tokyo", "--country", "Japan", "--interests", "food, temples",
		"--dates", "July 2025", "--budget", "low",
	}, scripted())
	require.NoError(t, err)

	assert.NotContains(t, out, "Welcome to WanderMind")
	assert.Contains(t, out, "--- Final Itinerary ---\n\nDay 1: Asakusa\nDay 2: Shibuya\n")
	assert.Contains(t, out, "--- Conversation Log ---\n\nAI: Carry cash.\nAI: Visit Tsukiji.\nAI: Checked weather: Mostly sunny, 25°C\n")
	assert.True(t, strings.HasSuffix(out, "AI: Local Event: Tokyo Ramen Festa on Day 3\n"))
}

func TestPlan_PromptsForMissingFields(t *testing.T) {
	stdin := "Kyoto\nJapan\nzen, tea\nApril 2026\nhigh\n"
	out, err := execute(t, stdin, []string{"plan"}, scripted())
	require.NoError(t, err)

	assert.Contains(t, out, "Welcome to WanderMind: Your AI Travel Planner")
	assert.Contains(t, out, "Enter your destination city:")
	assert.Contains(t, out, "Enter your budget level (low, medium, high):")
	assert.Contains(t, out, "Day 1: Asakusa")
}

func TestPlan_RejectsMissingInput(t *testing.T) {
	_, err := execute(t, "", []string{"plan", "--city", "Tokyo"}, scripted())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "country")
}

func TestPlan_JSON(t *testing.T) {
	out, err := execute(t, "", []string{
		"plan", "--city", "Tokyo", "--country", "Japan", "--interests", "food", "--dates", "July 2025", "--budget", "low", "--json",
	}, scripted())
	require.NoError(t, err)

	var final map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &final))
	assert.Equal(t, "Tokyo", final["city"])
	assert.Equal(t, "Day 1: Asakusa\nDay 2: Shibuya", final["itinerary"])
}

func TestHistory_ListAndShow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	_, err := execute(t, "", []string{
		"plan", "--db", db, "--city", "Tokyo", "--country", "Japan", "--interests", "food", "--dates", "July 2025", "--budget", "low",
	}, scripted())
	require.NoError(t, err)

	out, err := execute(t, "", []string{"history", "list", "--db", db})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	fields := strings.Fields(lines[1])
	assert.Equal(t, travel.Name, fields[1])
	assert.Equal(t, "completed", fields[2])
	assert.Equal(t, "7", fields[3])

	out, err = execute(t, "", []string{"history", "show", fields[0], "--db", db})
	require.NoError(t, err)
	assert.Contains(t, out, "Status:   completed")
	assert.Contains(t, out, travel.NodeLogistics)
	assert.Contains(t, out, "itinerary")

	out, err = execute(t, "", []string{"history", "show", fields[0], "--db", db, "--json"})
	require.NoError(t, err)
	assert.Contains(t, out, `"graph_name": "travel-planner"`)

	out, err = execute(t, "", []string{"history", "list", "--db", db, "--status", "failed"})
	require.NoError(t, err)
	assert.Equal(t, 1, len(strings.Split(strings.TrimSpace(out), "\n")))

	_, err = execute(t, "", []string{"history", "list", "--db", db, "--status", "weird"})
	assert.Error(t, err)
	_, err = execute(t, "", []string{"history", "show", "nope", "--db", db})
	assert.Error(t, err)
}
