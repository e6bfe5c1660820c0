package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wandermind/stategraph/internal/app/bootstrap"
	"github.com/wandermind/stategraph/pkg/prebuilt/travel"
	"github.com/wandermind/stategraph/pkg/stategraph"
	"github.com/wandermind/stategraph/pkg/validation"
)

type planFlags struct {
	city, country, interests, dates, budget string
	maxSteps                                int
	retries                                 int
	asJSON                                  bool
}

func newPlanCmd(opts []bootstrap.Option) *cobra.Command {
	var f planFlags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan a trip with the travel planner",
		Long: `Runs the seven-agent travel planner and prints the itinerary followed by the
conversation log. Fields not given as flags are asked for on stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, f, opts)
		},
	}
	cmd.Flags().StringVar(&f.city, "city", "", "Destination city")
	cmd.Flags().StringVar(&f.country, "country", "", "Destination country")
	cmd.Flags().StringVar(&f.interests, "interests", "", "Comma-separated interests")
	cmd.Flags().StringVar(&f.dates, "dates", "", "Travel dates, e.g. July 2025")
	cmd.Flags().StringVar(&f.budget, "budget", "", "Budget level: low, medium or high")
	cmd.Flags().IntVar(&f.maxSteps, "max-steps", 0, "Step limit (default from STATEGRAPH_MAX_STEPS)")
	cmd.Flags().IntVar(&f.retries, "retries", 2, "Extra attempts when a model call fails")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the final state as JSON")
	return cmd
}

func runPlan(cmd *cobra.Command, f planFlags, opts []bootstrap.Option) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	input, err := collectInput(cmd.InOrStdin(), out, f)
	if err != nil {
		return err
	}
	if err := validation.Struct(input); err != nil {
		return err
	}
	initial, err := input.State()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := bootstrap.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	maxSteps := f.maxSteps
	if maxSteps <= 0 {
		maxSteps = cfg.App.MaxSteps
	}
	policy := stategraph.DefaultRetryPolicy()
	policy.MaxAttempts = f.retries + 1

	res, err := stategraph.RetryRun(ctx, policy, func(ctx context.Context, attempt int) (*stategraph.Result, error) {
		if attempt > 1 {
			app.Logger.Warn("retrying plan", "attempt", attempt)
		}
		return app.Runtime.Run(ctx, travel.Name, initial, stategraph.RunConfig{
			MaxSteps: maxSteps,
			Timeout:  cfg.App.RequestTimeout,
			Tags:     []string{"cli"},
		})
	})
	if err != nil {
		return fmt.Errorf("plan failed: %w", err)
	}

	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Final)
	}
	fmt.Fprint(out, "\n--- Final Itinerary ---\n\n")
	fmt.Fprintln(out, travel.Itinerary(res.Final))
	fmt.Fprint(out, "\n--- Conversation Log ---\n\n")
	for _, line := range travel.ConversationLog(res.Final) {
		fmt.Fprintln(out, line)
	}
	return nil
}

// collectInput fills fields missing from flags by asking on in
func collectInput(in io.Reader, out io.Writer, f planFlags) (travel.Input, error) {
	fields := []struct {
		value  *string
		prompt string
	}{
		{&f.city, "Enter your destination city:"},
		{&f.country, "Enter the country:"},
		{&f.interests, "List your interests (comma-separated):"},
		{&f.dates, "Enter your travel dates (e.g., July 2025):"},
		{&f.budget, "Enter your budget level (low, medium, high):"},
	}

	reader := bufio.NewReader(in)
	greeted := false
	for _, field := range fields {
		if *field.value != "" {
			continue
		}
		if !greeted {
			fmt.Fprintln(out, "Welcome to WanderMind: Your AI Travel Planner")
			greeted = true
		}
		fmt.Fprint(out, field.prompt)
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return travel.Input{}, fmt.Errorf("read input: %w", err)
		}
		*field.value = strings.TrimSpace(line)
	}

	return travel.Input{
		City:        f.city,
		Country:     f.country,
		Interests:   travel.ParseInterests(f.interests),
		TravelDates: f.dates,
		Budget:      f.budget,
	}, nil
}
