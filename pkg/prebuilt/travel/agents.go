package travel

import (
	"context"
	"fmt"
	"strings"

	"github.com/wandermind/stategraph/pkg/stategraph"
)

// agents holds the node functions and their shared collaborators
type agents struct {
	gen     stategraph.TextGenerator
	lookup  stategraph.LookupStore
	prompts Prompts
	limit   int
}

// memory adds recalled notes as a system message; without a store or hits
// the state passes through untouched
func (a *agents) memory(ctx context.Context, s stategraph.State) (stategraph.State, error) {
	if a.lookup == nil {
		return s, nil
	}
	notes, err := a.lookup.Search(ctx, Render(a.prompts.MemoryQuery, s), a.limit)
	if err != nil {
		return stategraph.State{}, fmt.Errorf("memory lookup: %w", err)
	}
	if len(notes) == 0 {
		return s, nil
	}
	return s.Append(FieldMessages, stategraph.SystemMessage("Travel notes:\n- "+strings.Join(notes, "\n- ")))
}

func (a *agents) localExpert(ctx context.Context, s stategraph.State) (stategraph.State, error) {
	return a.ask(ctx, s, a.prompts.LocalExpert, "")
}

func (a *agents) experienceCurator(ctx context.Context, s stategraph.State) (stategraph.State, error) {
	return a.ask(ctx, s, a.prompts.ExperienceCurator, "")
}

func (a *agents) logistics(ctx context.Context, s stategraph.State) (stategraph.State, error) {
	return a.ask(ctx, s, a.prompts.Logistics, FieldItinerary)
}

func (a *agents) budget(ctx context.Context, s stategraph.State) (stategraph.State, error) {
	return a.ask(ctx, s, a.prompts.Budget, "")
}

func (a *agents) weather(ctx context.Context, s stategraph.State) (stategraph.State, error) {
	return a.note(ctx, s, a.prompts.WeatherQuery, "Checked weather: ", cannedWeather)
}

func (a *agents) event(ctx context.Context, s stategraph.State) (stategraph.State, error) {
	return a.note(ctx, s, a.prompts.EventQuery, "Local Event: ", cannedEvent)
}

// ask sends the rendered prompt and appends the reply; a non-empty field also
// receives the reply
func (a *agents) ask(ctx context.Context, s stategraph.State, tmpl, field string) (stategraph.State, error) {
	reply, err := a.gen.Generate(ctx, Render(tmpl, s))
	if err != nil {
		return stategraph.State{}, err
	}
	if field != "" {
		if s, err = s.Set(field, reply); err != nil {
			return stategraph.State{}, err
		}
	}
	return s.Append(FieldMessages, stategraph.AIMessage(reply))
}

// note appends the best lookup hit, or canned when there is no store or hit
func (a *agents) note(ctx context.Context, s stategraph.State, query, prefix, canned string) (stategraph.State, error) {
	msg := canned
	if a.lookup != nil {
		hits, err := a.lookup.Search(ctx, Render(query, s), 1)
		if err != nil {
			return stategraph.State{}, fmt.Errorf("lookup: %w", err)
		}
		if len(hits) > 0 {
			msg = prefix + hits[0]
		}
	}
	return s.Append(FieldMessages, stategraph.AIMessage(msg))
}
