package thread

import (
	"context"
	"fmt"

	"github.com/creastat/retrieval"
	"github.com/creastat/retrieval/embedding"
	"github.com/creastat/retrieval/vectorstore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultChunkTopK is how many content chunks are requested per concept.
	DefaultChunkTopK = 5
	// DefaultMinChunkScore is the relevance floor for attached content.
	DefaultMinChunkScore = 0.80

	maxParallelSearches = 8
)

// Builder retrieves content for each mapped concept and assembles the thread.
type Builder struct {
	embedder embedding.Provider
	store    vectorstore.VectorStore
	strategy Strategy
	filter   vectorstore.Filter
	topK     int
	minScore float32
	logger   *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithStrategy sets the sequencing strategy.
func WithStrategy(s Strategy) BuilderOption {
	return func(b *Builder) {
		if s != nil {
			b.strategy = s
		}
	}
}

// CatalogExclusion matches every record that is not a catalog item. It is the
// default content filter, so courses, paths and concepts sharing the index are
// never attached as chunks.
func CatalogExclusion() vectorstore.Filter {
	conds := make([]vectorstore.Condition, len(retrieval.Kinds))
	for i, k := range retrieval.Kinds {
		conds[i] = vectorstore.Ne("kind", string(k))
	}
	return vectorstore.Filter{}.And(conds...)
}

// WithContentFilter restricts which index records count as content chunks. It
// replaces CatalogExclusion.
func WithContentFilter(f vectorstore.Filter) BuilderOption {
	return func(b *Builder) {
		b.filter = f
	}
}

// WithChunkTopK sets how many chunks are requested per concept.
func WithChunkTopK(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.topK = n
		}
	}
}

// WithMinChunkScore sets the score floor for attached chunks.
func WithMinChunkScore(score float32) BuilderOption {
	return func(b *Builder) {
		b.minScore = score
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a Builder.
func NewBuilder(embedder embedding.Provider, store vectorstore.VectorStore, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder: embedder,
		store:    store,
		strategy: PrerequisiteCount{},
		filter:   CatalogExclusion(),
		topK:     DefaultChunkTopK,
		minScore: DefaultMinChunkScore,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build embeds every candidate in one batch, searches content for each in
// parallel, then sequences and assembles the thread. A failed content search
// leaves that concept without chunks; a failed embedding aborts the build.
func (b *Builder) Build(ctx context.Context, goal string, candidates []ConceptCandidate) (*Thread, error) {
	a, err := Map(goal, candidates)
	if err != nil {
		return nil, err
	}
	mapped := a.Candidates()

	texts := make([]string, len(mapped))
	for i, c := range mapped {
		texts[i] = conceptText(goal, c)
	}
	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed concepts: %w", err)
	}

	found := make([][]Chunk, len(mapped))
	var g errgroup.Group
	g.SetLimit(maxParallelSearches)
	for i, c := range mapped {
		g.Go(func() error {
			found[i] = b.searchContent(ctx, c, vectors[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, c := range mapped {
		if err := a.AttachContent(c.ID, found[i]); err != nil {
			return nil, err
		}
	}
	if err := a.Sequence(b.strategy); err != nil {
		return nil, err
	}

	t, err := a.Assemble()
	if err != nil {
		return nil, err
	}
	b.logger.Info("assembled thread",
		zap.String("goal", goal),
		zap.Int("concepts", len(t.Concepts)),
		zap.Int("chunks", t.ContentSummary.TotalChunks))
	return t, nil
}

func (b *Builder) searchContent(ctx context.Context, c ConceptCandidate, vector []float32) []Chunk {
	results, err := b.store.Query(ctx, vector, b.topK, b.filter)
	if err != nil {
		b.logger.Warn("content search failed",
			zap.String("concept", c.ID),
			zap.Error(err))
		return nil
	}

	var chunks []Chunk
	for _, r := range results {
		if r.Score < b.minScore {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:       r.ID,
			Score:    r.Score,
			Text:     chunkText(r.Metadata),
			Metadata: r.Metadata,
		})
	}
	b.logger.Debug("content search",
		zap.String("concept", c.ID),
		zap.Int("matches", len(results)),
		zap.Int("kept", len(chunks)))
	return chunks
}

// conceptText is the embedding text for a concept within a goal.
func conceptText(goal string, c ConceptCandidate) string {
	text := fmt.Sprintf("%s in %s: %s", c.Name, c.Subject, c.Description)
	if c.RelevanceHypothesis != "" && goal != "" {
		text += fmt.Sprintf(". Relevance to %q: %s", goal, c.RelevanceHypothesis)
	}
	return text
}

func chunkText(metadata map[string]any) string {
	for _, key := range []string{"searchableText", "text"} {
		if s, ok := metadata[key].(string); ok {
			return s
		}
	}
	return ""
}
