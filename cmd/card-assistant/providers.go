package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zombor/card-assistant/internal/llm"
)

type providerConfig struct {
	names   []string
	offline bool

	hfURL    string
	hfToken  string
	hfModels []string

	ollamaURL    string
	ollamaModels []string

	geminiKey   string
	geminiModel string

	openaiKey   string
	openaiModel string
	openaiURL   string

	anthropicKey   string
	anthropicModel string
}

// buildProviders turns the configured names into the chain's providers, in
// order. Keyed providers without a key are skipped with a warning. With
// nothing left, or in offline mode, the keyword responder answers alone.
// The returned closers must run even when err is non-nil.
func buildProviders(ctx context.Context, cfg providerConfig) ([]llm.Provider, []func(), error) {
	if cfg.offline {
		slog.Info("Offline mode, using the keyword responder")
		return []llm.Provider{llm.NewOffline()}, nil, nil
	}

	var (
		providers []llm.Provider
		closers   []func()
	)
	for _, name := range cfg.names {
		switch name {
		case "huggingface":
			if cfg.hfToken == "" {
				slog.Warn("No Hugging Face token, requests will be rate limited")
			}
			for _, model := range cfg.hfModels {
				providers = append(providers, llm.NewHuggingFace(cfg.hfURL, cfg.hfToken, model))
			}
		case "ollama":
			for _, model := range cfg.ollamaModels {
				providers = append(providers, llm.NewOllama(cfg.ollamaURL, model))
			}
		case "gemini":
			if cfg.geminiKey == "" {
				slog.Warn("Skipping Gemini, no API key")
				continue
			}
			g, err := llm.NewGemini(ctx, cfg.geminiKey, cfg.geminiModel)
			if err != nil {
				return nil, closers, fmt.Errorf("initializing gemini: %w", err)
			}
			closers = append(closers, func() { g.Close() })
			providers = append(providers, g)
		case "openai":
			if cfg.openaiKey == "" {
				slog.Warn("Skipping OpenAI, no API key")
				continue
			}
			p, err := llm.NewOpenAI(cfg.openaiKey, cfg.openaiModel, cfg.openaiURL)
			if err != nil {
				return nil, closers, fmt.Errorf("initializing openai: %w", err)
			}
			providers = append(providers, p)
		case "anthropic":
			if cfg.anthropicKey == "" {
				slog.Warn("Skipping Anthropic, no API key")
				continue
			}
			p, err := llm.NewAnthropic(cfg.anthropicKey, cfg.anthropicModel)
			if err != nil {
				return nil, closers, fmt.Errorf("initializing anthropic: %w", err)
			}
			providers = append(providers, p)
		default:
			return nil, closers, fmt.Errorf("unknown provider %q", name)
		}
	}

	if len(providers) == 0 {
		slog.Warn("No LLM providers configured, using the keyword responder")
		return []llm.Provider{llm.NewOffline()}, closers, nil
	}
	return providers, closers, nil
}
