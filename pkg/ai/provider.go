// Package ai wraps the completion providers behind a single interface.
package ai

import (
	"context"
	"fmt"
)

// Message is one conversation turn replayed to the completion model.
type Message struct {
	Role    string // "user" or "model"
	Content string
}

// Request contains the parameters for a completion call.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
}

// Provider is an interface for completion API providers.
type Provider interface {
	// Complete generates a reply for the ordered history in the request.
	Complete(ctx context.Context, request Request) (string, error)

	// Name returns the provider name.
	Name() string
}

// New creates a provider by name.
func New(provider, apiKey string) (Provider, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
