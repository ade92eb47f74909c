package oracle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openrouter"
)

// Client implements Completer on top of a Fantasy provider.
type Client struct {
	provider fantasy.Provider
	model    string
}

// ClientConfig configures the Fantasy-backed client.
type ClientConfig struct {
	// Provider is the Fantasy provider to use.
	Provider fantasy.Provider

	// Model is the model identifier passed to the provider.
	Model string
}

// NewClient creates a client from an existing provider.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &Client{provider: cfg.Provider, model: cfg.Model}, nil
}

// NewOpenAICompatible creates a client for any OpenAI-compatible endpoint,
// such as a local Ollama server.
func NewOpenAICompatible(baseURL, apiKey, model string) (*Client, error) {
	opts := []openai.Option{openai.WithBaseURL(baseURL)}
	if apiKey == "" {
		// Local endpoints ignore the key but the SDK requires one.
		apiKey = "unused"
	}
	opts = append(opts, openai.WithAPIKey(apiKey))

	provider, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create OpenAI-compatible provider: %w", err)
	}
	return NewClient(ClientConfig{Provider: provider, Model: model})
}

// NewOpenRouter creates a client routed through OpenRouter.
func NewOpenRouter(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenRouter API key not provided (set OPENROUTER_API_KEY)")
	}

	provider, err := openrouter.New(openrouter.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create OpenRouter provider: %w", err)
	}
	return NewClient(ClientConfig{Provider: provider, Model: model})
}

// Complete implements Completer.
func (c *Client) Complete(ctx context.Context, conversation []Message, temperature float64, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	lm, err := c.provider.LanguageModel(ctx, c.model)
	if err != nil {
		return "", fmt.Errorf("get language model: %w", err)
	}

	prompt := make(fantasy.Prompt, 0, len(conversation))
	for _, m := range conversation {
		switch m.Role {
		case RoleSystem:
			prompt = append(prompt, fantasy.NewSystemMessage(m.Content))
		case RoleAssistant:
			prompt = append(prompt, fantasy.Message{
				Role:    fantasy.MessageRoleAssistant,
				Content: []fantasy.MessagePart{fantasy.TextPart{Text: m.Content}},
			})
		default:
			prompt = append(prompt, fantasy.NewUserMessage(m.Content))
		}
	}

	maxTokens64 := int64(maxTokens)
	call := fantasy.Call{
		Prompt:          prompt,
		MaxOutputTokens: &maxTokens64,
		Temperature:     &temperature,
	}

	resp, err := lm.Generate(ctx, call)
	if err != nil {
		return "", classifyTransportError(err)
	}

	text := resp.Content.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty generation", ErrMalformed)
	}
	return text, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// classifyTransportError folds network-level failures into ErrUnavailable so
// the retry wrapper can tell them apart from protocol errors.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("generate: %w", err)
}
