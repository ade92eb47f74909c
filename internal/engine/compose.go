package engine

import (
	"context"
	"fmt"

	"github.com/rand/cascade/internal/oracle"
)

// AnswerPair is one resolved (sub-question, sub-answer) pair, in
// decomposition order.
type AnswerPair struct {
	Question string
	Answer   string
}

// Composer synthesizes sub-answers into one answer for the parent question.
type Composer struct {
	oracle      oracle.Completer
	temperature float64
	maxTokens   int
}

// NewComposer creates a composer.
func NewComposer(completer oracle.Completer, temperature float64, maxTokens int) *Composer {
	return &Composer{oracle: completer, temperature: temperature, maxTokens: maxTokens}
}

// Compose makes a single oracle call over the full ordered pair list. One
// call, never pairwise folding: redundancy across sub-answers can only be
// removed when the model sees all of them at once.
func (c *Composer) Compose(ctx context.Context, question string, pairs []AnswerPair) (string, error) {
	conversation := []oracle.Message{
		oracle.System(composeSystemPrompt),
		oracle.User(composeUserPrompt(question, pairs)),
	}

	response, err := c.oracle.Complete(ctx, conversation, c.temperature, c.maxTokens)
	if err != nil {
		return "", fmt.Errorf("compose: %w", err)
	}
	return response, nil
}
