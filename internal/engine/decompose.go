package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rand/cascade/internal/oracle"
)

// MaxSubQuestions caps how many sub-questions one decomposition may yield.
const MaxSubQuestions = 5

var (
	labeledPattern  = regexp.MustCompile(`(?i)SUB-QUESTION\s+\d+:\s*(.+)`)
	numberedPattern = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)`)
)

// Decomposer breaks a complex question into ordered sub-questions.
type Decomposer struct {
	oracle      oracle.Completer
	temperature float64
	maxTokens   int
}

// NewDecomposer creates a decomposer. Lower temperatures give more
// consistent decompositions.
func NewDecomposer(completer oracle.Completer, temperature float64, maxTokens int) *Decomposer {
	return &Decomposer{oracle: completer, temperature: temperature, maxTokens: maxTokens}
}

// Decompose asks the oracle for 2-5 sub-questions and parses them out of
// the response in order of appearance. If no labeled lines match, a generic
// numbered-list parse is tried; if that also yields nothing, the original
// question is returned as the single sub-question so the recursion always
// makes progress (termination is then guaranteed by the depth bound).
// Oracle failures propagate unchanged.
func (d *Decomposer) Decompose(ctx context.Context, question string, background []string) ([]string, error) {
	conversation := []oracle.Message{
		oracle.System(decomposeSystemPrompt),
		oracle.User(decomposeUserPrompt(question, background)),
	}

	response, err := d.oracle.Complete(ctx, conversation, d.temperature, d.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}

	subs := parseSubQuestions(response)
	if len(subs) == 0 {
		subs = []string{question}
	}
	if len(subs) > MaxSubQuestions {
		subs = subs[:MaxSubQuestions]
	}
	return subs, nil
}

// parseSubQuestions extracts sub-questions from free-form oracle output.
func parseSubQuestions(response string) []string {
	var subs []string

	for _, line := range strings.Split(response, "\n") {
		if m := labeledPattern.FindStringSubmatch(line); m != nil {
			if text := strings.TrimSpace(m[1]); text != "" {
				subs = append(subs, text)
			}
		}
	}
	if len(subs) > 0 {
		return subs
	}

	for _, line := range strings.Split(response, "\n") {
		if m := numberedPattern.FindStringSubmatch(line); m != nil {
			if text := strings.TrimSpace(m[1]); text != "" {
				subs = append(subs, text)
			}
		}
	}
	return subs
}
