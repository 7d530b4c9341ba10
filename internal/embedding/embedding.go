// Package embedding converts text into fixed-dimension vectors via a
// remote embedding service.
package embedding

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/gfhssssrdg-sys/ai-note-system/internal/apperr"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/config"
)

// Gateway turns an ordered batch of texts into an ordered batch of vectors.
// Length- and order-preserving.
type Gateway interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Client is the remote embedder surface the gateway drives. Satisfied by
// langchaingo's EmbedderImpl and by test stubs.
type Client interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// NewClient builds a langchaingo embedder for the configured provider.
func NewClient(cfg *config.EmbeddingConfig) (Client, error) {
	switch cfg.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, err
		}
		return embeddings.NewEmbedder(llm)
	default:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key(), "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, err
		}
		return embeddings.NewEmbedder(llm)
	}
}

// ServiceGateway batches, retries, and validates calls to a remote
// embedding client.
type ServiceGateway struct {
	client        Client
	dimension     int
	batchSize     int
	maxRetries    int
	timeout       time.Duration
	maxInputChars int
	backoffBase   time.Duration
}

// NewServiceGateway wires a client with the configured batching and retry
// policy.
func NewServiceGateway(client Client, cfg *config.EmbeddingConfig) *ServiceGateway {
	return &ServiceGateway{
		client:        client,
		dimension:     cfg.Dimension,
		batchSize:     cfg.BatchSize,
		maxRetries:    cfg.MaxRetries,
		timeout:       time.Duration(cfg.TimeoutSecs) * time.Second,
		maxInputChars: cfg.MaxInputChars,
		backoffBase:   500 * time.Millisecond,
	}
}

// Embed returns one vector per input text, in input order. Inputs over the
// service limit fail up front with an input error; transient service
// failures are retried with exponential backoff before surfacing a typed,
// non-retryable service error.
func (g *ServiceGateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if g.maxInputChars > 0 && len(t) > g.maxInputChars {
			return nil, apperr.NewEmbeddingInput(i, len(t), g.maxInputChars)
		}
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := g.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (g *ServiceGateway) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			delay := g.backoffBase << (attempt - 1)
			log.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("retrying embedding batch")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, apperr.NewEmbeddingService("embedding cancelled", false, ctx.Err())
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if g.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		}
		vectors, err := g.client.EmbedDocuments(callCtx, batch)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, apperr.NewEmbeddingService("embedding cancelled", false, ctx.Err())
			}
			continue
		}
		if err := validateBatch(batch, vectors, g.dimension); err != nil {
			// Malformed output is not worth retrying.
			return nil, err
		}
		return vectors, nil
	}
	return nil, apperr.NewEmbeddingService("embedding service unavailable after retries", false, lastErr)
}

func validateBatch(batch []string, vectors [][]float32, dimension int) error {
	if len(vectors) != len(batch) {
		return apperr.NewEmbeddingService("embedding service returned wrong vector count", false, nil)
	}
	for _, v := range vectors {
		if dimension > 0 && len(v) != dimension {
			return apperr.NewEmbeddingService("embedding service returned wrong vector dimension", false, nil)
		}
	}
	return nil
}
