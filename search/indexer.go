package search

import (
	"context"
	"fmt"
	"time"

	"github.com/creastat/retrieval"
	"github.com/creastat/retrieval/embedding"
	"github.com/creastat/retrieval/vectorstore"
	"go.uber.org/zap"
)

// Indexer embeds catalog items and writes them to the vector index.
type Indexer struct {
	embedder  embedding.Provider
	store     vectorstore.VectorStore
	extractor KeywordExtractor
	chunkSize int
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithKeywordExtractor replaces the default StopWordExtractor.
func WithKeywordExtractor(x KeywordExtractor) IndexerOption {
	return func(ix *Indexer) {
		if x != nil {
			ix.extractor = x
		}
	}
}

// WithUpsertChunkSize sets how many records go into one upsert call.
func WithUpsertChunkSize(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.chunkSize = n
		}
	}
}

// WithIndexerLogger sets the logger.
func WithIndexerLogger(logger *zap.Logger) IndexerOption {
	return func(ix *Indexer) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// WithIndexerCallTimeout bounds every vector index call.
func WithIndexerCallTimeout(d time.Duration) IndexerOption {
	return func(ix *Indexer) {
		ix.store = vectorstore.WithTimeout(ix.store, d)
	}
}

// NewIndexer creates an Indexer.
func NewIndexer(embedder embedding.Provider, store vectorstore.VectorStore, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		embedder:  embedder,
		store:     store,
		extractor: StopWordExtractor{},
		chunkSize: vectorstore.DefaultUpsertChunkSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Index embeds items in one batch and upserts them in chunks. It returns the
// number of records written. A chunk failure leaves earlier chunks committed.
func (ix *Indexer) Index(ctx context.Context, items ...retrieval.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = retrieval.Prepare(item.EmbeddingText())
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed %d items: %w", len(items), err)
	}

	records := make([]vectorstore.Record, len(items))
	for i, item := range items {
		metadata := item.Metadata()
		metadata["searchableText"] = texts[i]
		metadata["keywords"] = ix.extractor.Extract(item.KeywordText())
		records[i] = vectorstore.Record{
			ID:       item.IndexID(),
			Values:   vectors[i],
			Metadata: metadata,
		}
	}

	if err := vectorstore.BatchUpsert(ctx, ix.store, records, ix.chunkSize, ix.logger); err != nil {
		return 0, err
	}

	ix.logger.Info("indexed items",
		zap.Int("count", len(records)),
		zap.Int("chunkSize", ix.chunkSize))
	return len(records), nil
}
