package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rand/cascade/internal/engine"
	"github.com/rand/cascade/internal/oracle"
)

// fakeOracle routes by system prompt so one fake serves every stage.
type fakeOracle struct {
	planner func(user string) (string, error)
	critic  func(user string) (string, error)
	engine  func(system, user string) (string, error)
}

func (f *fakeOracle) Complete(ctx context.Context, messages []oracle.Message, temperature float64, maxTokens int) (string, error) {
	system := messages[0].Content
	user := messages[len(messages)-1].Content
	switch {
	case strings.Contains(system, "task planning specialist"):
		if f.planner != nil {
			return f.planner(user)
		}
		return "TASK DECOMPOSITION:\n1. do it", nil
	case strings.Contains(system, "solution evaluator"):
		if f.critic != nil {
			return f.critic(user)
		}
		return "CONFIDENCE_SCORE: 80\n\nGAPS:\nNone identified\n\nUNCERTAINTIES:\nNone identified\n\nREASONING:\nSolid.", nil
	default:
		if f.engine != nil {
			return f.engine(system, user)
		}
		if strings.Contains(system, "assesses question complexity") {
			return "SIMPLE", nil
		}
		return "an answer", nil
	}
}

// =============================================================================
// Critique Parsing Tests
// =============================================================================

func TestParseCritique_FullOutput(t *testing.T) {
	text := `CONFIDENCE_SCORE: 72

GAPS:
- Missing error handling
- No benchmarks

UNCERTAINTIES:
- Version compatibility unclear

REASONING:
Adequate but incomplete.`

	critique := parseCritique(text)
	assert.Equal(t, 72, critique.Score)
	assert.Equal(t, []string{"Missing error handling", "No benchmarks"}, critique.Gaps)
	assert.Equal(t, []string{"Version compatibility unclear"}, critique.Uncertainties)
	assert.Equal(t, "Adequate but incomplete.", critique.Reasoning)
}

func TestParseCritique_Defaults(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"missing score", "no structure at all", 50},
		{"clamped high", "CONFIDENCE_SCORE: 150", 100},
		{"zero", "CONFIDENCE_SCORE: 0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCritique(tt.text).Score)
		})
	}
}

func TestParseCritique_NoneIdentified(t *testing.T) {
	text := `CONFIDENCE_SCORE: 90

GAPS:
None identified

UNCERTAINTIES:
None identified

REASONING:
Clean.`

	critique := parseCritique(text)
	assert.Equal(t, 90, critique.Score)
	assert.Empty(t, critique.Gaps)
	assert.Empty(t, critique.Uncertainties)
}

func TestCritique_Confident(t *testing.T) {
	assert.True(t, (&Critique{Score: 85}).Confident(85))
	assert.False(t, (&Critique{Score: 84}).Confident(85))
	var nilCritique *Critique
	assert.False(t, nilCritique.Confident(1))
}

// =============================================================================
// Stage Tests
// =============================================================================

func TestPlanner_WritesPlan(t *testing.T) {
	fake := &fakeOracle{
		planner: func(user string) (string, error) {
			assert.Contains(t, user, "build a cache")
			return "TASK DECOMPOSITION:\n1. pick eviction policy", nil
		},
	}
	state := NewState("build a cache")
	require.NoError(t, NewPlanner(fake, 0, 0).Execute(context.Background(), state))
	assert.Contains(t, state.Plan, "eviction policy")
}

func TestRetriever_DefaultEmptyContext(t *testing.T) {
	state := NewState("task")
	require.NoError(t, NewRetriever(nil).Execute(context.Background(), state))
	assert.Empty(t, state.Context)
}

func TestRetriever_StaticSource(t *testing.T) {
	state := NewState("task")
	source := StaticSource{"doc one", "doc two"}
	require.NoError(t, NewRetriever(source).Execute(context.Background(), state))
	assert.Equal(t, []string{"doc one", "doc two"}, state.Context)
}

func TestReasoner_FillsSolutionAndTree(t *testing.T) {
	fake := &fakeOracle{}
	resolver := engine.NewResolver(fake, engine.DefaultConfig())
	state := NewState("what is a channel?")

	require.NoError(t, NewReasoner(resolver).Execute(context.Background(), state))
	assert.Equal(t, "an answer", state.Solution)
	require.NotNil(t, state.Tree)
	assert.Equal(t, "what is a channel?", state.Tree.Question)
	assert.Equal(t, engine.ComplexitySimple, state.Tree.Complexity)
}

func TestCritic_RequiresSolution(t *testing.T) {
	state := NewState("task")
	err := NewCritic(&fakeOracle{}, 0, 0).Execute(context.Background(), state)
	assert.ErrorIs(t, err, ErrNoSolution)
}

// =============================================================================
// Controller Tests
// =============================================================================

func TestController_RunsStagesInOrder(t *testing.T) {
	fake := &fakeOracle{}
	resolver := engine.NewResolver(fake, engine.DefaultConfig())

	controller := NewController(nil,
		NewPlanner(fake, 0, 0),
		NewRetriever(StaticSource{"background"}),
		NewReasoner(resolver),
		NewCritic(fake, 0, 0),
	)

	state, err := controller.Run(context.Background(), "explain contexts")
	require.NoError(t, err)

	assert.NotEmpty(t, state.Plan)
	assert.Equal(t, []string{"background"}, state.Context)
	assert.NotEmpty(t, state.Solution)
	require.NotNil(t, state.Critique)
	assert.Equal(t, 80, state.Critique.Score)
	assert.Equal(t, "critic_complete", state.Metadata["stage"])
	assert.Contains(t, state.Metadata, "total_duration_ms")
}

func TestController_StageFailureAborts(t *testing.T) {
	failure := errors.New("planner offline")
	fake := &fakeOracle{
		planner: func(string) (string, error) { return "", failure },
	}
	resolver := engine.NewResolver(fake, engine.DefaultConfig())

	controller := NewController(nil,
		NewPlanner(fake, 0, 0),
		NewReasoner(resolver),
	)

	state, err := controller.Run(context.Background(), "task")
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.Contains(t, err.Error(), "stage planner")
	assert.Empty(t, state.Solution)
}

func TestController_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	controller := NewController(nil, NewRetriever(nil))
	_, err := controller.Run(ctx, "task")
	assert.ErrorIs(t, err, context.Canceled)
}
