package travel

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wandermind/stategraph/pkg/stategraph"
)

var ErrUnknownPlaceholder = errors.New("prompt references an unknown state field")

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Prompts holds the templates used by the planner nodes. Placeholders such as
// {city} are replaced with the matching state field; list fields render
// comma-separated.
type Prompts struct {
	LocalExpert       string `yaml:"local_expert"`
	ExperienceCurator string `yaml:"experience_curator"`
	Logistics         string `yaml:"logistics"`
	Budget            string `yaml:"budget"`

	// Lookup queries
	MemoryQuery  string `yaml:"memory_query"`
	WeatherQuery string `yaml:"weather_query"`
	EventQuery   string `yaml:"event_query"`
}

// DefaultPrompts returns the stock planner wording
func DefaultPrompts() Prompts {
	return Prompts{
		LocalExpert:       " You are a travel expert. Provide safety, culture, and must-know info for visiting {city}, {country}",
		ExperienceCurator: "Based on interests: {interests}, plan activities in {city} that match",
		Logistics:         "Organize the activities into a logical 5-day itinerary for {city} in {travel_dates}",
		Budget:            "Ensure this itinerary fits within a {budget} budget.",
		MemoryQuery:       "{city} {country} {interests}",
		WeatherQuery:      "weather in {city} during {travel_dates}",
		EventQuery:        "local events in {city} during {travel_dates}",
	}
}

// ParsePrompts reads YAML over the defaults; keys left out keep the stock wording
func ParsePrompts(data []byte) (Prompts, error) {
	p := DefaultPrompts()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Prompts{}, fmt.Errorf("failed to parse prompts: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Prompts{}, err
	}
	return p, nil
}

// LoadPrompts reads a YAML prompts file; an empty path yields the defaults
func LoadPrompts(path string) (Prompts, error) {
	if path == "" {
		return DefaultPrompts(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("failed to read prompts file: %w", err)
	}
	return ParsePrompts(data)
}

// Validate checks that every placeholder names a planner field
func (p Prompts) Validate() error {
	var errs []error
	for name, tmpl := range p.templates() {
		if strings.TrimSpace(tmpl) == "" {
			errs = append(errs, fmt.Errorf("prompt %s is empty", name))
			continue
		}
		for _, m := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
			if _, ok := Schema.Field(m[1]); !ok {
				errs = append(errs, fmt.Errorf("%w: %s uses {%s}", ErrUnknownPlaceholder, name, m[1]))
			}
		}
	}
	return errors.Join(errs...)
}

func (p Prompts) templates() map[string]string {
	return map[string]string{
		"local_expert":       p.LocalExpert,
		"experience_curator": p.ExperienceCurator,
		"logistics":          p.Logistics,
		"budget":             p.Budget,
		"memory_query":       p.MemoryQuery,
		"weather_query":      p.WeatherQuery,
		"event_query":        p.EventQuery,
	}
}

// Render fills tmpl from s
func Render(tmpl string, s stategraph.State) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(ph string) string {
		name := ph[1 : len(ph)-1]
		f, ok := s.Schema().Field(name)
		if !ok {
			return ph
		}
		if f.Kind == stategraph.KindStrings {
			return strings.Join(s.Strings(name), ", ")
		}
		v, _ := s.Get(name)
		return fmt.Sprint(v)
	})
}
