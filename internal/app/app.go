// Package app wires configuration into concrete retrieval components.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/creastat/retrieval"
	"github.com/creastat/retrieval/cache"
	"github.com/creastat/retrieval/catalog"
	"github.com/creastat/retrieval/config"
	"github.com/creastat/retrieval/embedding"
	"github.com/creastat/retrieval/search"
	"github.com/creastat/retrieval/thread"
	"github.com/creastat/retrieval/vectorstore"
	"github.com/creastat/retrieval/vectorstore/memory"
	"github.com/creastat/retrieval/vectorstore/qdrant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App holds the wired components for one process.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    vectorstore.VectorStore
	Embedder embedding.Provider
	Search   *search.Service
	Indexer  *search.Indexer
	// Catalog is nil when Supabase is not configured.
	Catalog catalog.Store

	closers []func() error
}

// New builds an App from cfg.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	store, err := newVectorStore(cfg.Vector)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	backend := embedding.NewHTTPBackend(embedding.HTTPConfig{
		APIKey:  cfg.Embedding.APIKey,
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		Timeout: cfg.Embedding.Timeout,
	})
	var provider embedding.Provider = embedding.New(backend,
		embedding.WithMaxTokens(cfg.Embedding.MaxTokens),
		embedding.WithChunkSize(cfg.Embedding.BatchSize),
		embedding.WithChunkDelay(cfg.Embedding.BatchDelay),
		embedding.WithTimeout(cfg.Embedding.Timeout),
		embedding.WithLogger(logger.Named("embedding")),
	)

	cacheStore, err := newCacheStore(cfg.Cache)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if cacheStore != nil {
		a.closers = append(a.closers, cacheStore.Close)
		provider = embedding.NewCachedProvider(provider, cacheStore, backend.Model(), logger.Named("embedding.cache"))
	}
	a.Embedder = provider

	a.Search = search.NewService(provider, store,
		search.WithLogger(logger.Named("search")),
		search.WithCallTimeout(cfg.CallTimeout))
	a.Indexer = search.NewIndexer(provider, store,
		search.WithIndexerLogger(logger.Named("indexer")),
		search.WithIndexerCallTimeout(cfg.CallTimeout))

	if cfg.HasCatalog() {
		cat, err := catalog.New(catalog.Config{
			URL:      cfg.Catalog.URL,
			APIKey:   cfg.Catalog.APIKey,
			CacheTTL: cfg.Catalog.CacheTTL,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Catalog = cat
		a.closers = append(a.closers, cat.Close)
	}

	return a, nil
}

// Builder returns a thread builder over the app's embedder and index. Catalog
// records in the shared index are excluded from content search.
func (a *App) Builder(strategy thread.Strategy) *thread.Builder {
	return thread.NewBuilder(a.Embedder, vectorstore.WithTimeout(a.Store, a.Config.CallTimeout),
		thread.WithStrategy(strategy),
		thread.WithLogger(a.Logger.Named("thread")))
}

// Reindex loads the whole catalog and writes it to the vector index.
func (a *App) Reindex(ctx context.Context) (int, error) {
	if a.Catalog == nil {
		return 0, fmt.Errorf("reindex requires SUPABASE_URL and SUPABASE_API_KEY: %w", retrieval.ErrInvalidConfig)
	}

	var (
		courses  []retrieval.Course
		paths    []retrieval.Path
		concepts []retrieval.Concept
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		courses, err = a.Catalog.ListCourses(gctx)
		return err
	})
	g.Go(func() (err error) {
		paths, err = a.Catalog.ListPaths(gctx)
		return err
	})
	g.Go(func() (err error) {
		concepts, err = a.Catalog.ListConcepts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	items := make([]retrieval.Item, 0, len(courses)+len(paths)+len(concepts))
	for i := range courses {
		items = append(items, &courses[i])
	}
	for i := range paths {
		items = append(items, &paths[i])
	}
	for i := range concepts {
		items = append(items, &concepts[i])
	}

	a.Logger.Info("reindexing catalog",
		zap.Int("courses", len(courses)),
		zap.Int("paths", len(paths)),
		zap.Int("concepts", len(concepts)))
	return a.Indexer.Index(ctx, items...)
}

// Close releases every component in reverse construction order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newVectorStore(cfg config.VectorConfig) (vectorstore.VectorStore, error) {
	switch cfg.Store {
	case "memory", "":
		return memory.New(cfg.Namespace, memory.WithDimension(cfg.Dimension)), nil
	case "qdrant":
		client, err := qdrant.New(qdrant.Config{
			URL:            cfg.QdrantURL,
			CollectionName: cfg.Collection,
			APIKey:         cfg.QdrantKey,
			Namespace:      cfg.Namespace,
			Dimension:      cfg.Dimension,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("vector store %q: %w", cfg.Store, retrieval.ErrInvalidStoreType)
	}
}

// newCacheStore returns nil when caching is disabled.
func newCacheStore(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Store {
	case "none", "":
		return nil, nil
	case "memory":
		return cache.NewStore(cache.StoreTypeMemory, cache.WithTTL(cfg.TTL))
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		return cache.NewStore(cache.StoreTypeRedis,
			cache.WithRedisClient(redis.NewClient(opts)),
			cache.WithTTL(cfg.TTL),
			cache.WithKeyPrefix("retrieval:embedding:"))
	default:
		return nil, fmt.Errorf("cache store %q: %w", cfg.Store, retrieval.ErrInvalidStoreType)
	}
}
