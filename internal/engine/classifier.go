package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rand/cascade/internal/oracle"
)

// Classification temperature is fixed low for consistent verdicts and the
// token budget is tiny: the answer is a single word.
const (
	classifyTemperature = 0.3
	classifyMaxTokens   = 10
)

// Classifier decides whether a question is SIMPLE or COMPLEX.
type Classifier struct {
	oracle oracle.Completer
}

// NewClassifier creates a complexity classifier.
func NewClassifier(completer oracle.Completer) *Classifier {
	return &Classifier{oracle: completer}
}

// Classify assesses one question. Any output that does not contain the
// token "COMPLEX" after normalization counts as SIMPLE: an ambiguous
// verdict must never cause unbounded decomposition. Oracle failures
// propagate unchanged.
func (c *Classifier) Classify(ctx context.Context, question string) (Complexity, error) {
	conversation := []oracle.Message{
		oracle.System(classifySystemPrompt),
		oracle.User(classifyUserPrompt(question)),
	}

	response, err := c.oracle.Complete(ctx, conversation, classifyTemperature, classifyMaxTokens)
	if err != nil {
		return ComplexityUnset, fmt.Errorf("classify: %w", err)
	}

	if strings.Contains(strings.ToUpper(strings.TrimSpace(response)), "COMPLEX") {
		return ComplexityComplex, nil
	}
	return ComplexitySimple, nil
}
