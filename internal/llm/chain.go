package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultTimeout bounds a single provider attempt
const DefaultTimeout = 30 * time.Second

// FailureMessage is the reply text when every provider has failed
const FailureMessage = "죄송합니다. 현재 AI 모델들을 사용할 수 없습니다. 잠시 후 다시 시도해주세요."

// ErrAllProvidersFailed is returned by Generate when no provider produced text
var ErrAllProvidersFailed = errors.New("all providers failed")

// Attempt records one failed provider call
type Attempt struct {
	Provider string        `json:"provider"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

// Reply is the outcome of a chain call
type Reply struct {
	Text     string    `json:"text"`
	Provider string    `json:"provider,omitempty"`
	Attempts []Attempt `json:"attempts,omitempty"`
	OK       bool      `json:"ok"`
}

// Chain tries providers in order and returns the first usable answer.
// Nothing is carried between calls: a provider that failed last time is
// tried again next time.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	params    Params
}

// NewChain creates a chain over the given providers
func NewChain(timeout time.Duration, params Params, providers ...Provider) *Chain {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Chain{providers: providers, timeout: timeout, params: params}
}

// Providers returns the provider names in the order they are tried
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Respond never fails. When no provider answers, the reply carries
// FailureMessage and OK is false.
func (c *Chain) Respond(ctx context.Context, prompt string) Reply {
	var reply Reply
	for _, p := range c.providers {
		if ctx.Err() != nil {
			reply.Attempts = append(reply.Attempts, Attempt{Provider: p.Name(), Error: ctx.Err().Error()})
			break
		}

		start := time.Now()
		text, err := c.attempt(ctx, p, prompt)
		if err != nil {
			slog.Warn("Provider failed", "provider", p.Name(), "error", err)
			reply.Attempts = append(reply.Attempts, Attempt{
				Provider: p.Name(),
				Error:    err.Error(),
				Duration: time.Since(start),
			})
			continue
		}

		slog.Info("Provider answered", "provider", p.Name(), "attempts", len(reply.Attempts)+1)
		reply.Text = text
		reply.Provider = p.Name()
		reply.OK = true
		return reply
	}

	slog.Error("All providers failed", "attempts", len(reply.Attempts))
	reply.Text = FailureMessage
	return reply
}

// Generate is Respond for callers that need to branch on failure
func (c *Chain) Generate(ctx context.Context, prompt string) (string, error) {
	reply := c.Respond(ctx, prompt)
	if !reply.OK {
		return "", fmt.Errorf("%w after %d attempts", ErrAllProvidersFailed, len(reply.Attempts))
	}
	return reply.Text, nil
}

func (c *Chain) attempt(ctx context.Context, p Provider, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := p.Generate(ctx, prompt, c.params)
	if err != nil {
		return "", err
	}

	// Some hosted models echo the prompt before the answer
	text = strings.TrimSpace(strings.TrimPrefix(text, prompt))
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
