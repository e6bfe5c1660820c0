package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wandermind/stategraph/internal/adapters/repository/sqlite"
	"github.com/wandermind/stategraph/internal/core/history"
	"github.com/wandermind/stategraph/pkg/serialization"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect runs recorded in the SQLite history file",
	}
	cmd.AddCommand(newHistoryListCmd(), newHistoryShowCmd())
	return cmd
}

// openHistory opens the SQLite file named by --db or STATEGRAPH_HISTORY_SQLITE_PATH
func openHistory(cmd *cobra.Command) (*sqlite.HistorySaver, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	compression, err := serialization.ParseCompression(cfg.History.Compression)
	if err != nil {
		return nil, err
	}
	ser, err := serialization.New(serialization.Config{Compression: compression, EncryptKey: cfg.History.EncryptionKey})
	if err != nil {
		return nil, err
	}
	return sqlite.Open(cmd.Context(), cfg.History.SQLitePath, ser)
}

func newHistoryListCmd() *cobra.Command {
	var (
		filter history.Filter
		status string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := history.ParseStatus(status)
			if err != nil {
				return err
			}
			filter.Status = st

			saver, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer saver.Close()

			runs, err := saver.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tGRAPH\tSTATUS\tSTEPS\tSTARTED\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.GraphName, r.Status, len(r.Steps),
					r.StartedAt.Local().Format(time.DateTime), r.Duration().Round(time.Millisecond))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.GraphName, "graph", "", "Only runs of this graph")
	cmd.Flags().StringVar(&status, "status", "", "Only runs with this status: completed, failed or cancelled")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum number of runs")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Runs to skip")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			saver, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer saver.Close()

			run, err := saver.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}

			fmt.Fprintf(out, "Run:      %s\n", run.ID)
			fmt.Fprintf(out, "Graph:    %s\n", run.GraphName)
			fmt.Fprintf(out, "Status:   %s\n", run.Status)
			fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "Duration: %s\n", run.Duration().Round(time.Millisecond))
			if run.Error != "" {
				fmt.Fprintf(out, "Error:    %s (%s at %s)\n", run.Error, run.ErrorKind, run.FailedAt)
			}
			fmt.Fprintln(out, "\nSteps:")
			for _, s := range run.Steps {
				fields := make([]string, 0, len(s.Changes))
				for _, c := range s.Changes {
					fields = append(fields, c.Field)
				}
				fmt.Fprintf(out, "  %2d  %-18s %8s  changed %v\n", s.Number, s.NodeID, s.Duration.Round(time.Millisecond), fields)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run as JSON")
	return cmd
}
