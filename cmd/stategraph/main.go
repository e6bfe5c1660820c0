// Package main provides the stategraph CLI: plan a trip with the travel
// planner, render its graph, and inspect recorded runs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wandermind/stategraph/internal/app/bootstrap"
	"github.com/wandermind/stategraph/internal/infrastructure/config"
)

// Version information set during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree; opts override collaborators in tests
func newRootCmd(opts ...bootstrap.Option) *cobra.Command {
	root := &cobra.Command{
		Use:           "stategraph",
		Short:         "StateGraph runs multi-agent state graphs such as the WanderMind travel planner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("env-file", ".env", "Optional .env file with STATEGRAPH_* settings")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	root.PersistentFlags().String("db", "", "SQLite file for run history (overrides STATEGRAPH_HISTORY_*)")

	root.AddCommand(
		newVersionCmd(),
		newPlanCmd(opts),
		newGraphCmd(),
		newHistoryCmd(),
	)
	return root
}

// loadConfig reads the environment and applies persistent flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.App.LogLevel = level
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.History.Backend = config.BackendSQLite
		cfg.History.SQLitePath = db
	}
	return cfg, nil
}
