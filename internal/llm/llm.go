// Package llm wires the embedding and answer-synthesis providers. The
// orchestrator only sees the domain interfaces; which vendor sits behind
// them is a configuration decision.
package llm

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/helpdeck/helpdeck/internal/config"
	"github.com/helpdeck/helpdeck/internal/domain"
)

// NewEmbedder builds the configured embedding provider.
func NewEmbedder(ctx context.Context, cfg *config.Config) (domain.Embedder, error) {
	var embedder domain.Embedder

	switch cfg.EmbeddingProvider {
	case "openai":
		embedder = NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	case "gemini":
		gemini, err := NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		embedder = gemini
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.EmbeddingProvider)
	}

	if cfg.EmbedRatePerSecond > 0 {
		embedder = NewRateLimitedEmbedder(embedder, cfg.EmbedRatePerSecond)
	}

	return embedder, nil
}

// NewAnswerer builds the configured answer-synthesis provider.
func NewAnswerer(ctx context.Context, cfg *config.Config) (domain.Answerer, error) {
	switch cfg.AnswerProvider {
	case "openai":
		return NewOpenAIAnswerer(cfg.OpenAIAPIKey, cfg.AnswerModel), nil
	case "gemini":
		return NewGeminiAnswerer(ctx, cfg.GeminiAPIKey, cfg.AnswerModel)
	case "anthropic":
		return NewAnthropicAnswerer(cfg.AnthropicAPIKey, cfg.AnswerModel), nil
	default:
		return nil, fmt.Errorf("unsupported answer provider %q", cfg.AnswerProvider)
	}
}

// RateLimitedEmbedder throttles embedding calls so bulk ingestion stays
// inside the provider's rate limits.
type RateLimitedEmbedder struct {
	inner   domain.Embedder
	limiter *rate.Limiter
}

func NewRateLimitedEmbedder(inner domain.Embedder, perSecond float64) *RateLimitedEmbedder {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}

	return &RateLimitedEmbedder{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (e *RateLimitedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return e.inner.Embed(ctx, texts)
}

func (e *RateLimitedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

func (e *RateLimitedEmbedder) Model() string {
	return e.inner.Model()
}

// buildUserPrompt renders the retrieved context and the visitor's question
// into the single user message every provider receives.
func buildUserPrompt(req domain.AnswerRequest) string {
	var b strings.Builder

	if len(req.Context) > 0 {
		b.WriteString("Relevant documentation excerpts:\n\n")
		for i, block := range req.Context {
			fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(block))
		}
	} else {
		b.WriteString("No relevant documentation was found for this question.\n\n")
	}

	b.WriteString("Question:\n")
	b.WriteString(strings.TrimSpace(req.Query))

	return b.String()
}
