// Package pipeline runs a task through a fixed sequence of stages:
// planning, context retrieval, recursive reasoning, and self-critique.
// Stages communicate through a shared State.
package pipeline

import (
	"time"

	"github.com/rand/cascade/internal/engine"
)

// State carries a task through the pipeline. Each stage reads the
// fields earlier stages wrote and fills in its own.
type State struct {
	// Task is the user's original request.
	Task string `json:"task"`

	// Plan is the planner's structured decomposition of the task.
	Plan string `json:"plan,omitempty"`

	// Context holds retrieved background passed into reasoning.
	Context []string `json:"context,omitempty"`

	// Solution is the reasoner's final answer.
	Solution string `json:"solution,omitempty"`

	// Tree is the recursion tree behind Solution.
	Tree *engine.Node `json:"tree,omitempty"`

	// Critique is the critic's assessment of Solution.
	Critique *Critique `json:"critique,omitempty"`

	// Metadata records per-stage bookkeeping such as timings.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewState creates a State for the given task.
func NewState(task string) *State {
	return &State{
		Task:     task,
		Metadata: make(map[string]any),
	}
}

// Critique is the critic's structured evaluation of a solution.
type Critique struct {
	// Score is a confidence value from 0 to 100.
	Score int `json:"score"`

	// Gaps lists missing pieces the critic identified.
	Gaps []string `json:"gaps,omitempty"`

	// Uncertainties lists areas the critic could not verify.
	Uncertainties []string `json:"uncertainties,omitempty"`

	// Reasoning explains the score.
	Reasoning string `json:"reasoning,omitempty"`
}

// Confident reports whether the critique clears the given threshold.
func (c *Critique) Confident(threshold int) bool {
	return c != nil && c.Score >= threshold
}

func (s *State) markStage(name string, elapsed time.Duration) {
	s.Metadata["stage"] = name + "_complete"
	s.Metadata[name+"_duration_ms"] = elapsed.Milliseconds()
}
