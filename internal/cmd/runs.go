package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rand/cascade/internal/engine/tracestore"
)

func init() {
	runsCmd.Flags().IntP("limit", "n", 10, "Number of runs to list")
	runsShowCmd.Flags().Bool("events", false, "Show raw trace events instead of the tree")

	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List persisted resolution runs",
	Long: `List runs recorded in the trace database. Requires a trace
database path in the configuration (trace.path or CASCADE_TRACE_DB).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.RecentRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, run := range runs {
			fmt.Printf("%s  %-7s  %s  %s\n",
				run.ID[:8],
				run.Status,
				run.CreatedAt.Format(time.DateTime),
				truncate(run.Question, 60))
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run's answer and recursion tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showEvents, _ := cmd.Flags().GetBool("events")

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		runID, err := resolveRunID(cmd, store, args[0])
		if err != nil {
			return err
		}

		run, err := store.GetRun(cmd.Context(), runID)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %s not found", args[0])
		}

		fmt.Printf("Question: %s\nStatus:   %s\nWhen:     %s\n\n%s\n",
			run.Question, run.Status, run.CreatedAt.Format(time.DateTime), run.Answer)

		if showEvents {
			events, err := store.Events(cmd.Context(), runID, 0)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "\n--- Events ---")
			for _, ev := range events {
				indent := strings.Repeat("  ", ev.Depth)
				fmt.Fprintf(os.Stderr, "%s[%s] %s (%s)\n",
					indent, ev.Type, truncate(ev.Question, 60), ev.Duration.Round(time.Millisecond))
			}
			return nil
		}

		tree, err := store.GetTree(cmd.Context(), runID)
		if err != nil {
			return err
		}
		if tree != nil {
			fmt.Fprintln(os.Stderr, "\n--- Recursion tree ---")
			printTree(os.Stderr, tree)
		}
		return nil
	},
}

func openStore(cmd *cobra.Command) (*tracestore.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Trace.Path == "" {
		return nil, fmt.Errorf("no trace database configured; set trace.path or CASCADE_TRACE_DB")
	}
	return tracestore.New(tracestore.Options{Path: cfg.Trace.Path})
}

// resolveRunID expands an ID prefix to the full run ID.
func resolveRunID(cmd *cobra.Command, store *tracestore.Store, prefix string) (string, error) {
	runs, err := store.RecentRuns(cmd.Context(), 1000)
	if err != nil {
		return "", err
	}
	for _, run := range runs {
		if run.ID == prefix || strings.HasPrefix(run.ID, prefix) {
			return run.ID, nil
		}
	}
	return prefix, nil
}
