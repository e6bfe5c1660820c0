// Package travel is the multi-agent travel planner: seven nodes in a line that
// gather local knowledge, curate activities, check the weather, plan a
// five-day itinerary, fit it to a budget, and add local events.
package travel

import (
	"context"
	"errors"
	"strings"

	"github.com/wandermind/stategraph/pkg/prebuilt"
	"github.com/wandermind/stategraph/pkg/stategraph"
)

// Name is the graph and prebuilt name
const Name = "travel-planner"

// Node ids in run order
const (
	NodeMemory            = "Memory"
	NodeLocalExpert       = "LocalExpert"
	NodeExperienceCurator = "ExperienceCurator"
	NodeWeather           = "Weather"
	NodeLogistics         = "Logistics"
	NodeBudget            = "Budget"
	NodeEvent             = "Event"
)

// State field names
const (
	FieldMessages    = "messages"
	FieldCity        = "city"
	FieldCountry     = "country"
	FieldInterests   = "interests"
	FieldTravelDates = "travel_dates"
	FieldBudget      = "budget"
	FieldItinerary   = "itinerary"
)

const (
	DefaultLookupLimit = 3

	cannedWeather = "Checked weather: Mostly sunny, 25°C"
	cannedEvent   = "Local Event: Tokyo Ramen Festa on Day 3"
)

var ErrNoGenerator = errors.New("travel planner needs a text generator")

// Schema is the planner state
var Schema = stategraph.MustSchema("planner",
	stategraph.MessagesField(FieldMessages),
	stategraph.StringField(FieldCity),
	stategraph.StringField(FieldCountry),
	stategraph.StringsField(FieldInterests),
	stategraph.StringField(FieldTravelDates),
	stategraph.StringField(FieldBudget),
	stategraph.StringField(FieldItinerary),
)

// Config wires the planner's collaborators
type Config struct {
	Generator stategraph.TextGenerator
	// Lookup backs Memory, Weather and Event; nil means none
	Lookup      stategraph.LookupStore
	Prompts     *Prompts
	LookupLimit int
}

// Input is what a traveller provides
type Input struct {
	City        string   `json:"city" validate:"required"`
	Country     string   `json:"country" validate:"required"`
	Interests   []string `json:"interests"`
	TravelDates string   `json:"travel_dates" validate:"required"`
	Budget      string   `json:"budget" validate:"required"`
}

// ParseInterests splits a comma-separated list, trimming blanks
func ParseInterests(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// State builds the initial planner state with an empty log and itinerary
func (in Input) State() (stategraph.State, error) {
	interests := make([]string, 0, len(in.Interests))
	for _, i := range in.Interests {
		if i = strings.TrimSpace(i); i != "" {
			interests = append(interests, i)
		}
	}
	return Schema.New(map[string]any{
		FieldCity:        strings.TrimSpace(in.City),
		FieldCountry:     strings.TrimSpace(in.Country),
		FieldInterests:   interests,
		FieldTravelDates: strings.TrimSpace(in.TravelDates),
		FieldBudget:      strings.TrimSpace(in.Budget),
	})
}

// Build compiles the planner graph
func Build(cfg Config) (*stategraph.Compiled, error) {
	if cfg.Generator == nil {
		return nil, ErrNoGenerator
	}
	prompts := DefaultPrompts()
	if cfg.Prompts != nil {
		prompts = *cfg.Prompts
	}
	if err := prompts.Validate(); err != nil {
		return nil, err
	}
	if cfg.LookupLimit <= 0 {
		cfg.LookupLimit = DefaultLookupLimit
	}

	a := &agents{gen: cfg.Generator, lookup: cfg.Lookup, prompts: prompts, limit: cfg.LookupLimit}
	nodes := []struct {
		id   string
		desc string
		fn   stategraph.NodeFunc
	}{
		{NodeMemory, "recall travel notes", a.memory},
		{NodeLocalExpert, "safety, culture and must-know info", a.localExpert},
		{NodeExperienceCurator, "activities matching interests", a.experienceCurator},
		{NodeWeather, "weather check", a.weather},
		{NodeLogistics, "five-day itinerary", a.logistics},
		{NodeBudget, "budget fit", a.budget},
		{NodeEvent, "local events", a.event},
	}

	g := stategraph.NewGraph(Name, Schema)
	for i, n := range nodes {
		if err := g.AddNode(n.id, n.fn, stategraph.WithDescription(n.desc)); err != nil {
			return nil, err
		}
		next := stategraph.END
		if i+1 < len(nodes) {
			next = nodes[i+1].id
		}
		if err := g.AddEdge(n.id, next); err != nil {
			return nil, err
		}
	}
	if err := g.SetEntryPoint(NodeMemory); err != nil {
		return nil, err
	}
	return g.Compile()
}

// NewBuilder exposes Build as a prebuilt; cfg must be a Config or *Config
func NewBuilder() prebuilt.Builder {
	return prebuilt.Typed(Name, func(_ context.Context, cfg Config) (*stategraph.Compiled, error) {
		return Build(cfg)
	})
}

// Itinerary returns the planned itinerary of a final state
func Itinerary(s stategraph.State) string {
	return s.String(FieldItinerary)
}

// ConversationLog renders the message log one "ROLE: content" line per message
func ConversationLog(s stategraph.State) []string {
	msgs := s.Messages(FieldMessages)
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.String()
	}
	return out
}
