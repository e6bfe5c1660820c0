package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wandermind/stategraph/internal/adapters/llm"
	"github.com/wandermind/stategraph/pkg/prebuilt/travel"
)

func newGraphCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the travel planner graph",
		Long:  `Outputs a Mermaid diagram (graph TD) of the travel planner, or its topology as JSON.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// the graph is only inspected, never run
			offline := llm.GeneratorFunc(func(context.Context, string) (string, error) {
				return "", errors.New("offline")
			})
			g, err := travel.Build(travel.Config{Generator: offline})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "mermaid":
				fmt.Fprint(out, g.Mermaid(nil))
				return nil
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(g.Topology())
			default:
				return fmt.Errorf("unknown format %q: use mermaid or json", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "mermaid", "Output format: mermaid or json")
	return cmd
}
