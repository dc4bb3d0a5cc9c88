// Package embedding turns text into fixed-length vectors. The Embedder cleans
// and token-bounds input, batches requests in order-preserving chunks and
// paces them with a fixed delay. Backend failures are never retried here.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/creastat/retrieval"
	"go.uber.org/zap"
)

const (
	// DefaultMaxTokens is the hard token ceiling of ada-002 class models.
	DefaultMaxTokens = 8000
	// DefaultChunkSize is the number of texts sent per backend call.
	DefaultChunkSize = 20
	// DefaultChunkDelay is the pause between consecutive batch chunks.
	DefaultChunkDelay = 100 * time.Millisecond
)

// Provider turns text into vectors.
type Provider interface {
	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Backend is one embedding API call: {input, model} -> {data[].embedding}.
// Implementations return exactly one vector per input in input order.
type Backend interface {
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
	Model() string
}

// Embedder implements Provider over a Backend.
type Embedder struct {
	backend    Backend
	maxTokens  int
	chunkSize  int
	chunkDelay time.Duration
	timeout    time.Duration
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithMaxTokens sets the per-text token ceiling.
func WithMaxTokens(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithChunkSize sets how many texts go into one backend call.
func WithChunkSize(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithChunkDelay sets the fixed pause between batch chunks.
func WithChunkDelay(d time.Duration) Option {
	return func(e *Embedder) {
		if d >= 0 {
			e.chunkDelay = d
		}
	}
}

// WithTimeout bounds every backend call. Zero leaves the caller's context as is.
func WithTimeout(d time.Duration) Option {
	return func(e *Embedder) {
		e.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Embedder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Embedder over backend.
func New(backend Backend, opts ...Option) *Embedder {
	e := &Embedder{
		backend:    backend,
		maxTokens:  DefaultMaxTokens,
		chunkSize:  DefaultChunkSize,
		chunkDelay: DefaultChunkDelay,
		logger:     zap.NewNop(),
		sleep:      sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the backend model name.
func (e *Embedder) Model() string {
	return e.backend.Model()
}

// Embed implements Provider. Over-budget text is truncated, never rejected.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	prepared, err := e.prepare(text, "text")
	if err != nil {
		return nil, err
	}

	vectors, err := e.call(ctx, []string{prepared})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch implements Provider. Inputs are validated up front, then sent in
// chunks of chunkSize with chunkDelay between chunks.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	prepared := make([]string, len(texts))
	for i, text := range texts {
		p, err := e.prepare(text, fmt.Sprintf("texts[%d]", i))
		if err != nil {
			return nil, err
		}
		prepared[i] = p
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(prepared); start += e.chunkSize {
		if start > 0 && e.chunkDelay > 0 {
			if err := e.sleep(ctx, e.chunkDelay); err != nil {
				return nil, &retrieval.EmbeddingError{Cause: err}
			}
		}

		end := min(start+e.chunkSize, len(prepared))
		e.logger.Debug("embedding chunk",
			zap.Int("start", start),
			zap.Int("size", end-start),
			zap.Int("total", len(prepared)))

		vectors, err := e.call(ctx, prepared[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Embedder) prepare(text, field string) (string, error) {
	prepared := retrieval.Prepare(text)
	if prepared == "" {
		return "", retrieval.NewValidationError(field, "text is empty after cleaning")
	}
	if retrieval.EstimateTokens(prepared) > e.maxTokens {
		prepared = retrieval.Truncate(prepared, e.maxTokens)
	}
	return prepared, nil
}

func (e *Embedder) call(ctx context.Context, inputs []string) ([][]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	vectors, err := e.backend.CreateEmbeddings(ctx, inputs)
	if err != nil {
		return nil, &retrieval.EmbeddingError{Cause: err}
	}
	if len(vectors) != len(inputs) {
		return nil, &retrieval.EmbeddingError{
			Cause: fmt.Errorf("backend returned %d embeddings for %d inputs", len(vectors), len(inputs)),
		}
	}
	return vectors, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Compile-time check that Embedder implements Provider.
var _ Provider = (*Embedder)(nil)
