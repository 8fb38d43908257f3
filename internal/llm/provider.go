package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers with no text
var ErrEmptyResponse = errors.New("empty response")

// Params are the sampling settings sent with every generation request
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// DefaultParams are tuned for short factual answers about a card or document
var DefaultParams = Params{
	MaxTokens:   500,
	Temperature: 0.3,
	TopP:        0.9,
}

// Provider generates a completion for a prompt
type Provider interface {
	// Name identifies the provider and model in logs and replies
	Name() string
	// Generate returns the completion text, without the prompt
	Generate(ctx context.Context, prompt string, params Params) (string, error)
}
