package engine

import (
	"context"
	"fmt"

	"github.com/rand/cascade/internal/oracle"
)

// Answerer produces a direct answer for a question without decomposition.
type Answerer struct {
	oracle      oracle.Completer
	temperature float64
	maxTokens   int
}

// NewAnswerer creates a direct answerer.
func NewAnswerer(completer oracle.Completer, temperature float64, maxTokens int) *Answerer {
	return &Answerer{oracle: completer, temperature: temperature, maxTokens: maxTokens}
}

// Answer returns the oracle's raw text for the question. No parsing: the
// text becomes a leaf answer, consumed either as the final solution or as
// composition input.
func (a *Answerer) Answer(ctx context.Context, question string, background []string) (string, error) {
	conversation := []oracle.Message{
		oracle.System(answerSystemPrompt),
		oracle.User(answerUserPrompt(question, background)),
	}

	response, err := a.oracle.Complete(ctx, conversation, a.temperature, a.maxTokens)
	if err != nil {
		return "", fmt.Errorf("direct answer: %w", err)
	}
	return response, nil
}
