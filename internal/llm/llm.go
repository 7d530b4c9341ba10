// Package llm sends grounding-constrained prompts to a remote completion
// service.
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/gfhssssrdg-sys/ai-note-system/internal/apperr"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/config"
)

// Gateway is the completion contract. Stateless: one remote call per
// invocation, plus bounded retries for transient failures.
type Gateway interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewModel builds a langchaingo model for the configured provider.
func NewModel(cfg *config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	default:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key(), "Bearer ")),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	}
}

// ServiceGateway drives a langchaingo model with the configured generation
// parameters and retry policy. It passes through exactly what the remote
// service returns.
type ServiceGateway struct {
	model       llms.Model
	maxTokens   int
	temperature float64
	maxRetries  int
	timeout     time.Duration
	backoffBase time.Duration
}

// NewServiceGateway wires a model with the configured policy.
func NewServiceGateway(model llms.Model, cfg *config.LLMConfig) *ServiceGateway {
	return &ServiceGateway{
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
		backoffBase: 500 * time.Millisecond,
	}
}

func (g *ServiceGateway) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			delay := g.backoffBase << (attempt - 1)
			log.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("retrying completion")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", apperr.NewLLMService("completion cancelled", false, ctx.Err())
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if g.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		}
		resp, err := g.model.GenerateContent(callCtx, messages,
			llms.WithMaxTokens(g.maxTokens),
			llms.WithTemperature(g.temperature),
		)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", apperr.NewLLMService("completion cancelled", false, ctx.Err())
			}
			continue
		}
		if len(resp.Choices) == 0 {
			return "", apperr.NewLLMService("completion service returned no choices", false, nil)
		}
		return resp.Choices[0].Content, nil
	}
	return "", apperr.NewLLMService("completion service unavailable after retries", false, lastErr)
}
