package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChain adapts any langchaingo model to Provider
type LangChain struct {
	name string
	llm  llms.Model
}

// NewOpenAI creates a provider for the OpenAI API or any compatible server
func NewOpenAI(token, model, baseURL string) (*LangChain, error) {
	if token == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	opts := []openai.Option{
		openai.WithModel(model),
		openai.WithToken(token),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return &LangChain{name: "openai/" + model, llm: client}, nil
}

// NewAnthropic creates a provider for Claude models
func NewAnthropic(token, model string) (*LangChain, error) {
	if token == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}

	client, err := anthropic.New(
		anthropic.WithModel(model),
		anthropic.WithToken(token),
	)
	if err != nil {
		return nil, fmt.Errorf("creating anthropic client: %w", err)
	}
	return &LangChain{name: "anthropic/" + model, llm: client}, nil
}

func (l *LangChain) Name() string { return l.name }

func (l *LangChain) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	var opts []llms.CallOption
	if params.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(params.MaxTokens))
	}
	opts = append(opts, llms.WithTemperature(params.Temperature))
	if params.TopP > 0 {
		opts = append(opts, llms.WithTopP(params.TopP))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, l.llm, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
