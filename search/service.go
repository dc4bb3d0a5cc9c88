// Package search implements semantic retrieval over the shared vector index:
// kind-scoped search, related-item lookup, personalized recommendations and
// catalog indexing.
package search

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/creastat/retrieval"
	"github.com/creastat/retrieval/embedding"
	"github.com/creastat/retrieval/filter"
	"github.com/creastat/retrieval/vectorstore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSearchLimit         = 20
	DefaultRelatedLimit        = 5
	DefaultRecommendationLimit = 10
)

// Service composes an embedding provider and a vector index into ranked retrieval.
type Service struct {
	embedder embedding.Provider
	store    vectorstore.VectorStore
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	logger  *zap.Logger
	timeout time.Duration
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCallTimeout bounds every vector index call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *serviceOptions) {
		o.timeout = d
	}
}

// NewService creates a retrieval service.
func NewService(embedder embedding.Provider, store vectorstore.VectorStore, opts ...Option) *Service {
	o := serviceOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		embedder: embedder,
		store:    vectorstore.WithTimeout(store, o.timeout),
		logger:   o.logger,
	}
}

// Search embeds query and returns the nearest items of kind that satisfy spec.
func (s *Service) Search(ctx context.Context, kind retrieval.Kind, query string, spec *filter.Spec, limit int) ([]vectorstore.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	f, err := compileFor(kind, spec)
	if err != nil {
		return nil, err
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, vector, limit, f)
}

// RelatedTo returns up to limit items of kind nearest to the stored vector of
// id, never including id itself. id may be raw or already prefixed. A missing
// id yields an empty list.
func (s *Service) RelatedTo(ctx context.Context, kind retrieval.Kind, id string, limit int) ([]vectorstore.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	if id == "" {
		return nil, retrieval.NewValidationError("id", "must not be empty")
	}
	f, err := compileFor(kind, nil)
	if err != nil {
		return nil, err
	}

	indexID := kind.Resolve(id)
	record, err := s.store.Fetch(ctx, indexID)
	if err != nil {
		return nil, asIndexError("fetch", err)
	}
	if record == nil {
		return []vectorstore.SearchResult{}, nil
	}

	results, err := s.query(ctx, record.Values, limit+1, f.And(vectorstore.Ne(vectorstore.IDField, indexID)))
	if err != nil {
		return nil, err
	}

	related := make([]vectorstore.SearchResult, 0, limit)
	for _, r := range results {
		if r.ID == indexID {
			continue
		}
		related = append(related, r)
		if len(related) == limit {
			break
		}
	}
	return related, nil
}

// PersonalizedRecommendations embeds a query synthesized from profile and
// restricts results to the profile's categories and grade-appropriate difficulties.
func (s *Service) PersonalizedRecommendations(ctx context.Context, profile retrieval.StudentProfile, limit int) ([]vectorstore.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}
	f, err := filter.Compile(&filter.Spec{
		Category:   profile.CategoriesByWeight(),
		Difficulty: profile.Difficulties(),
	}, "")
	if err != nil {
		return nil, err
	}

	vector, err := s.embedder.Embed(ctx, profile.PersonalizedQuery())
	if err != nil {
		return nil, err
	}
	return s.query(ctx, vector, limit, f)
}

// SearchMany embeds every query in one batch, runs the queries in parallel
// with perQuery results each, and merges them. Duplicate ids keep their best
// score. An empty kind searches every kind.
func (s *Service) SearchMany(ctx context.Context, kind retrieval.Kind, queries []string, perQuery, limit int) ([]vectorstore.SearchResult, error) {
	if len(queries) == 0 {
		return []vectorstore.SearchResult{}, nil
	}
	if perQuery <= 0 {
		perQuery = 3
	}
	if limit <= 0 {
		limit = 10
	}
	f, err := compileFor(kind, nil)
	if err != nil {
		return nil, err
	}

	vectors, err := s.embedder.EmbedBatch(ctx, queries)
	if err != nil {
		return nil, err
	}

	perResults := make([][]vectorstore.SearchResult, len(vectors))
	g, gctx := errgroup.WithContext(ctx)
	for i, vector := range vectors {
		g.Go(func() error {
			results, err := s.query(gctx, vector, perQuery, f)
			if err != nil {
				return err
			}
			perResults[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := make(map[string]vectorstore.SearchResult)
	for _, results := range perResults {
		for _, r := range results {
			if prev, ok := best[r.ID]; !ok || r.Score > prev.Score {
				best[r.ID] = r
			}
		}
	}

	merged := make([]vectorstore.SearchResult, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	rank(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// OrEmpty degrades a failed retrieval to an empty result set, logging the
// failure. Presentation callers use it instead of surfacing raw errors.
func OrEmpty(results []vectorstore.SearchResult, err error, logger *zap.Logger) []vectorstore.SearchResult {
	if err != nil {
		if logger != nil {
			logger.Warn("retrieval degraded to empty result", zap.Error(err))
		}
		return []vectorstore.SearchResult{}
	}
	if results == nil {
		return []vectorstore.SearchResult{}
	}
	return results
}

// query runs one index query and normalizes the result list.
func (s *Service) query(ctx context.Context, vector []float32, topK int, f vectorstore.Filter) ([]vectorstore.SearchResult, error) {
	results, err := s.store.Query(ctx, vector, topK, f)
	if err != nil {
		return nil, asIndexError("query", err)
	}
	if results == nil {
		s.logger.Debug("index returned no match list", zap.Int("topK", topK))
		return []vectorstore.SearchResult{}, nil
	}

	rank(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// compileFor compiles spec scoped to kind. An empty kind is unscoped.
func compileFor(kind retrieval.Kind, spec *filter.Spec) (vectorstore.Filter, error) {
	prefix := ""
	if kind != "" {
		k, err := retrieval.ParseKind(string(kind))
		if err != nil {
			return vectorstore.Filter{}, err
		}
		prefix = k.Prefix()
	}
	return filter.Compile(spec, prefix)
}

// rank orders results by descending score, ties broken by id.
func rank(results []vectorstore.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

// asIndexError passes typed failures through and wraps anything else.
func asIndexError(op string, err error) error {
	if errors.Is(err, retrieval.ErrIndex) || errors.Is(err, retrieval.ErrInvalidInput) {
		return err
	}
	return retrieval.NewIndexError(op, err)
}
