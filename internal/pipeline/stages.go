package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rand/cascade/internal/engine"
	"github.com/rand/cascade/internal/oracle"
)

// Stage is one step of the pipeline. Execute mutates state in place.
type Stage interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// ErrNoSolution is returned by the critic when it runs before the
// reasoner has produced anything to evaluate.
var ErrNoSolution = errors.New("pipeline: no solution to critique")

const (
	defaultPlannerTemperature = 0.5
	defaultCriticTemperature  = 0.3
	defaultStageMaxTokens     = 2048
)

// Planner turns the raw task into a structured plan.
type Planner struct {
	oracle      oracle.Completer
	temperature float64
	maxTokens   int
}

// NewPlanner builds a planner stage. Zero temperature and maxTokens
// select the defaults.
func NewPlanner(completer oracle.Completer, temperature float64, maxTokens int) *Planner {
	if temperature <= 0 {
		temperature = defaultPlannerTemperature
	}
	if maxTokens <= 0 {
		maxTokens = defaultStageMaxTokens
	}
	return &Planner{oracle: completer, temperature: temperature, maxTokens: maxTokens}
}

func (p *Planner) Name() string { return "planner" }

func (p *Planner) Execute(ctx context.Context, state *State) error {
	messages := []oracle.Message{
		oracle.System(plannerSystemPrompt),
		oracle.User(plannerUserPrompt(state.Task)),
	}
	plan, err := p.oracle.Complete(ctx, messages, p.temperature, p.maxTokens)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	state.Plan = plan
	return nil
}

// Source supplies background context for a plan. Implementations may
// query a document store, a search index, or anything else.
type Source interface {
	Retrieve(ctx context.Context, task, plan string) ([]string, error)
}

// StaticSource returns a fixed context slice, the default when no
// retrieval backend is wired in.
type StaticSource []string

func (s StaticSource) Retrieve(context.Context, string, string) ([]string, error) {
	return s, nil
}

// Retriever fills State.Context from a Source.
type Retriever struct {
	source Source
}

// NewRetriever builds a retriever stage. A nil source yields empty
// context.
func NewRetriever(source Source) *Retriever {
	if source == nil {
		source = StaticSource(nil)
	}
	return &Retriever{source: source}
}

func (r *Retriever) Name() string { return "retriever" }

func (r *Retriever) Execute(ctx context.Context, state *State) error {
	retrieved, err := r.source.Retrieve(ctx, state.Task, state.Plan)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}
	state.Context = retrieved
	return nil
}

// Reasoner answers the task through the recursive resolver and records
// both the solution and its recursion tree.
type Reasoner struct {
	resolver *engine.Resolver
}

// NewReasoner wraps a resolver as a pipeline stage.
func NewReasoner(resolver *engine.Resolver) *Reasoner {
	return &Reasoner{resolver: resolver}
}

func (r *Reasoner) Name() string { return "reasoner" }

func (r *Reasoner) Execute(ctx context.Context, state *State) error {
	answer, tree, err := r.resolver.Resolve(ctx, state.Task, state.Context, 0)
	if err != nil {
		return fmt.Errorf("reason: %w", err)
	}
	state.Solution = answer
	state.Tree = tree
	return nil
}

// Critic scores the solution and extracts gaps and uncertainties.
type Critic struct {
	oracle      oracle.Completer
	temperature float64
	maxTokens   int
}

// NewCritic builds a critic stage. Zero temperature and maxTokens
// select the defaults.
func NewCritic(completer oracle.Completer, temperature float64, maxTokens int) *Critic {
	if temperature <= 0 {
		temperature = defaultCriticTemperature
	}
	if maxTokens <= 0 {
		maxTokens = defaultStageMaxTokens
	}
	return &Critic{oracle: completer, temperature: temperature, maxTokens: maxTokens}
}

func (c *Critic) Name() string { return "critic" }

func (c *Critic) Execute(ctx context.Context, state *State) error {
	if state.Solution == "" {
		return ErrNoSolution
	}
	messages := []oracle.Message{
		oracle.System(criticSystemPrompt),
		oracle.User(criticUserPrompt(state.Task, state.Solution, state.Plan)),
	}
	text, err := c.oracle.Complete(ctx, messages, c.temperature, c.maxTokens)
	if err != nil {
		return fmt.Errorf("critique: %w", err)
	}
	state.Critique = parseCritique(text)
	return nil
}

var (
	scorePattern         = regexp.MustCompile(`CONFIDENCE_SCORE:\s*(\d+)`)
	gapsPattern          = regexp.MustCompile(`(?s)GAPS:(.*?)(?:UNCERTAINTIES:|REASONING:|$)`)
	uncertaintiesPattern = regexp.MustCompile(`(?s)UNCERTAINTIES:(.*?)(?:REASONING:|$)`)
	reasoningPattern     = regexp.MustCompile(`(?s)REASONING:(.*)$`)
)

// parseCritique extracts the structured critique from raw model
// output. A missing score defaults to 50 and out-of-range scores are
// clamped. Sections reading "None" yield empty lists.
func parseCritique(text string) *Critique {
	critique := &Critique{Score: 50}

	if m := scorePattern.FindStringSubmatch(text); m != nil {
		if score, err := strconv.Atoi(m[1]); err == nil {
			critique.Score = clamp(score, 0, 100)
		}
	}
	if m := gapsPattern.FindStringSubmatch(text); m != nil {
		critique.Gaps = parseBullets(m[1])
	}
	if m := uncertaintiesPattern.FindStringSubmatch(text); m != nil {
		critique.Uncertainties = parseBullets(m[1])
	}
	if m := reasoningPattern.FindStringSubmatch(text); m != nil {
		critique.Reasoning = strings.TrimSpace(m[1])
	}
	return critique
}

func parseBullets(section string) []string {
	if strings.Contains(section, "None") {
		return nil
	}
	var items []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
