package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
	"github.com/salesmind/ragcore/internal/logger"
	"github.com/salesmind/ragcore/internal/tokens"
	"github.com/salesmind/ragcore/internal/vectormath"
)

// Default embedding batch parameters.
const (
	// DefaultBatchSize caps how many texts go to the provider per call.
	DefaultBatchSize = 100

	// DefaultInterBatchDelay paces sequential batch submissions.
	DefaultInterBatchDelay = 200 * time.Millisecond

	// DefaultThrottleRetryDelay is the longer pause before the single
	// retry after a throttling failure.
	DefaultThrottleRetryDelay = 2 * time.Second

	// DefaultTokenBudget is the per-text token cap before submission.
	DefaultTokenBudget = 8000
)

// BatchEmbedder drives an embedding provider with batching, pacing,
// token-budget truncation and strict output validation.
type BatchEmbedder struct {
	provider   driven.EmbeddingService
	batchSize  int
	limiter    *rate.Limiter
	retryDelay time.Duration
	budget     *tokens.Budget
}

// EmbedderOption configures a BatchEmbedder.
type EmbedderOption func(*BatchEmbedder)

// WithBatchSize sets the maximum batch size.
func WithBatchSize(size int) EmbedderOption {
	return func(e *BatchEmbedder) {
		if size > 0 {
			e.batchSize = size
		}
	}
}

// WithInterBatchDelay sets the pause between consecutive batches.
func WithInterBatchDelay(d time.Duration) EmbedderOption {
	return func(e *BatchEmbedder) {
		if d > 0 {
			e.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithThrottleRetryDelay sets the backoff before the throttle retry.
func WithThrottleRetryDelay(d time.Duration) EmbedderOption {
	return func(e *BatchEmbedder) {
		if d > 0 {
			e.retryDelay = d
		}
	}
}

// WithTokenBudget sets the per-text token cap.
func WithTokenBudget(b *tokens.Budget) EmbedderOption {
	return func(e *BatchEmbedder) {
		if b != nil {
			e.budget = b
		}
	}
}

// NewBatchEmbedder creates a BatchEmbedder around a provider.
func NewBatchEmbedder(provider driven.EmbeddingService, opts ...EmbedderOption) *BatchEmbedder {
	e := &BatchEmbedder{
		provider:   provider,
		batchSize:  DefaultBatchSize,
		limiter:    rate.NewLimiter(rate.Every(DefaultInterBatchDelay), 1),
		retryDelay: DefaultThrottleRetryDelay,
		budget:     tokens.NewBudget(tokens.DefaultEncoding, DefaultTokenBudget),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimensions returns the provider's embedding dimension.
func (e *BatchEmbedder) Dimensions() int {
	return e.provider.Dimensions()
}

// EmbedTexts embeds all texts and returns one vector per input, in input
// order. Texts are whitespace-normalised and truncated to the token
// budget first. Batches run sequentially with an inter-batch pause; a
// throttled batch is retried once after a longer delay, then the failure
// propagates.
func (e *BatchEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prepared := make([]string, len(texts))
	for i, t := range texts {
		prepared[i] = e.budget.Truncate(normalizeWhitespace(t))
	}

	dim := e.provider.Dimensions()
	out := make([][]float32, 0, len(prepared))

	for start := 0; start < len(prepared); start += e.batchSize {
		end := start + e.batchSize
		if end > len(prepared) {
			end = len(prepared)
		}
		batch := prepared[start:end]

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		logger.Debug("Embedding batch %d-%d of %d texts", start, end, len(prepared))

		vectors, err := e.embedBatchOnce(ctx, batch)
		if err != nil {
			return nil, err
		}

		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts",
				domain.ErrValidation, len(vectors), len(batch))
		}
		for i, v := range vectors {
			if err := vectormath.Validate(v, dim); err != nil {
				return nil, fmt.Errorf("embed text %d: %w", start+i, err)
			}
		}

		out = append(out, vectors...)
	}

	return out, nil
}

// EmbedOne embeds a single text by delegating to a batch of size 1.
func (e *BatchEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: provider returned no embedding", domain.ErrProviderUnavailable)
	}
	return vectors[0], nil
}

// EmbedChunks fills the Embedding field of every chunk in place.
func (e *BatchEmbedder) EmbedChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	vectors, err := e.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return nil
}

// embedBatchOnce submits one batch, retrying exactly once on throttling.
func (e *BatchEmbedder) embedBatchOnce(ctx context.Context, batch []string) ([][]float32, error) {
	vectors, err := e.provider.EmbedBatch(ctx, batch)
	if err == nil {
		return vectors, nil
	}
	if !errors.Is(err, domain.ErrProviderThrottled) {
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	logger.Warn("Embedding provider throttled, retrying in %s", e.retryDelay)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(e.retryDelay):
	}

	vectors, err = e.provider.EmbedBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("embed batch after retry: %w", err)
	}
	return vectors, nil
}

// normalizeWhitespace collapses runs of whitespace into single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
