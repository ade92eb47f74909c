// Package oracle provides the inference client used by the reasoning engine.
//
// The engine only ever sees the Completer interface: an ordered conversation
// in, generated text out. Connection handling, retries, and fail-fast
// behavior all live on this side of the boundary.
package oracle

import (
	"context"
	"errors"
)

// Role tags a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System builds a system turn.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user turn.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Completer is the inference oracle consumed by the engine.
type Completer interface {
	// Complete sends the conversation and returns the generated text.
	Complete(ctx context.Context, conversation []Message, temperature float64, maxTokens int) (string, error)
}

// Errors returned by oracle implementations.
var (
	// ErrMalformed indicates the backend answered but the response carried
	// no usable text. Not retryable.
	ErrMalformed = errors.New("oracle: malformed response")

	// ErrUnavailable indicates a connectivity or timeout failure reaching
	// the backend. Retryable.
	ErrUnavailable = errors.New("oracle: backend unavailable")
)
