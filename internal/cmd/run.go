package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rand/cascade/internal/config"
	"github.com/rand/cascade/internal/engine"
	"github.com/rand/cascade/internal/engine/tracestore"
	"github.com/rand/cascade/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [question...]",
	Short: "Resolve a question through the full pipeline",
	Long: `Resolve a question by planning, recursive reasoning, and
self-critique.

The question can be provided as arguments or piped from stdin. Complex
questions are decomposed into sub-questions and resolved depth-first up
to the configured recursion depth.`,
	Example: `
# Answer a question
cascade run "How does Go's garbage collector work?"

# Pipe content in for analysis
cat main.go | cascade run "What does this code do?"

# Show the recursion tree
cascade run --trace "Compare TCP and QUIC"

# Machine-readable output
cascade run --json "Explain mutexes"

# Skip planning and critique, reason only
cascade run --bare "What is a slice?"
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		showTree, _ := cmd.Flags().GetBool("trace")
		asJSON, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")
		bare, _ := cmd.Flags().GetBool("bare")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if parallel, _ := cmd.Flags().GetBool("parallel"); parallel {
			cfg.Engine.Parallel = true
		}
		if depth, _ := cmd.Flags().GetInt("depth"); depth > 0 {
			cfg.Engine.MaxRecursionDepth = depth
		}

		task := strings.Join(args, " ")
		task, err = maybePrependStdin(task)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		if task == "" {
			return fmt.Errorf("no question provided")
		}

		completer, err := buildOracle(cfg)
		if err != nil {
			return err
		}

		var recorder engine.TraceRecorder = engine.NewMemoryTrace(0)
		var store *tracestore.Store
		if cfg.Trace.Path != "" {
			store, err = tracestore.New(tracestore.Options{Path: cfg.Trace.Path})
			if err != nil {
				return fmt.Errorf("open trace store: %w", err)
			}
			defer store.Close()
			recorder = store
		}

		resolver := engine.NewResolver(completer, engineConfig(cfg),
			engine.WithTrace(recorder))

		stages := []pipeline.Stage{
			pipeline.NewPlanner(completer, cfg.Pipeline.PlannerTemperature, cfg.Engine.MaxTokens),
			pipeline.NewRetriever(nil),
			pipeline.NewReasoner(resolver),
			pipeline.NewCritic(completer, cfg.Pipeline.CriticTemperature, cfg.Engine.MaxTokens),
		}
		if bare {
			stages = []pipeline.Stage{pipeline.NewReasoner(resolver)}
		}
		controller := pipeline.NewController(nil, stages...)

		if cfg.Oracle.Timeout > 0 {
			// The timeout covers the whole run, not one completion.
			budget := cfg.Oracle.Timeout.Std() * time.Duration(maxOracleCalls(cfg))
			var cancelBudget context.CancelFunc
			ctx, cancelBudget = context.WithTimeout(ctx, budget)
			defer cancelBudget()
		}

		var runID string
		if store != nil {
			if runID, err = store.BeginRun(ctx, task); err != nil {
				return err
			}
		}

		if !quiet && !asJSON {
			fmt.Fprintln(os.Stderr, "Resolving...")
		}

		start := time.Now()
		state, runErr := controller.Run(ctx, task)

		if store != nil {
			if err := store.FinishRun(ctx, runID, state.Solution, state.Tree, runErr); err != nil {
				fmt.Fprintf(os.Stderr, "warning: persist run: %v\n", err)
			}
		}
		if runErr != nil {
			return runErr
		}

		if asJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(state)
		}

		fmt.Println(state.Solution)

		if state.Critique != nil && !quiet {
			fmt.Fprintf(os.Stderr, "\nConfidence: %d/100\n", state.Critique.Score)
			for _, gap := range state.Critique.Gaps {
				fmt.Fprintf(os.Stderr, "  gap: %s\n", gap)
			}
		}

		if showTree {
			fmt.Fprintf(os.Stderr, "\n--- Recursion tree ---\n")
			printTree(os.Stderr, state.Tree)
			fmt.Fprintf(os.Stderr, "\nNodes: %d, Max depth: %d, Duration: %s\n",
				state.Tree.CountNodes(), state.Tree.MaxDepth(), time.Since(start).Round(time.Millisecond))
		}

		return nil
	},
}

func init() {
	runCmd.Flags().BoolP("trace", "t", false, "Show the recursion tree")
	runCmd.Flags().Bool("json", false, "Output full state as JSON")
	runCmd.Flags().BoolP("quiet", "q", false, "Suppress progress and critique output")
	runCmd.Flags().Bool("bare", false, "Skip planning and critique stages")
	runCmd.Flags().BoolP("parallel", "p", false, "Resolve sibling sub-questions concurrently")
	runCmd.Flags().IntP("depth", "d", 0, "Override max recursion depth")

	rootCmd.AddCommand(runCmd)
}

// maxOracleCalls is the worst-case completion count for one run: every
// node costs at most three calls (classify, decompose, answer or
// compose) and the tree fans out five ways per level, plus the planner
// and critic stages.
func maxOracleCalls(cfg config.Config) int {
	nodes := 1
	levelWidth := 1
	for d := 0; d < cfg.Engine.MaxRecursionDepth; d++ {
		levelWidth *= engine.MaxSubQuestions
		nodes += levelWidth
	}
	return nodes*3 + 2
}

func printTree(w *os.File, node *engine.Node) {
	if node == nil {
		return
	}
	node.Walk(func(n *engine.Node) bool {
		indent := strings.Repeat("  ", n.Depth)
		marker := string(n.Complexity)
		if marker == "" {
			marker = "?"
		}
		fmt.Fprintf(w, "%s[%s] %s\n", indent, marker, truncate(n.Question, 80))
		return true
	})
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
