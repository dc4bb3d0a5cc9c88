package memory

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/creastat/retrieval"
	"github.com/creastat/retrieval/vectorstore"
)

// Store implements vectorstore.VectorStore as an in-memory brute-force cosine index
// over a single namespace.
type Store struct {
	mu        sync.RWMutex
	namespace string
	dim       int
	records   map[string]entry
}

type entry struct {
	record vectorstore.Record
	mag    float64
}

// Option configures a Store.
type Option func(*Store)

// WithDimension fixes the namespace dimensionality up front. Without it the
// first upserted record decides.
func WithDimension(dim int) Option {
	return func(s *Store) {
		s.dim = dim
	}
}

// New creates a new in-memory store for the namespace.
func New(namespace string, opts ...Option) *Store {
	s := &Store{
		namespace: namespace,
		records:   make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Namespace returns the namespace this store serves.
func (s *Store) Namespace() string { return s.namespace }

// Upsert implements vectorstore.VectorStore.
// Records are copied; an existing id is replaced entirely.
func (s *Store) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if err := ctx.Err(); err != nil {
		return retrieval.NewIndexError("upsert", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records == nil {
		return retrieval.NewIndexError("upsert", fmt.Errorf("store is closed"))
	}

	dim, err := vectorstore.CheckDimensions(records, s.dim)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		s.dim = dim
	}

	for _, r := range records {
		s.records[r.ID] = entry{record: clone(r), mag: magnitude(r.Values)}
	}
	return nil
}

// Fetch implements vectorstore.VectorStore.
// Returns nil if the record is not found (not an error).
func (s *Store) Fetch(ctx context.Context, id string) (*vectorstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, retrieval.NewIndexError("fetch", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.records[id]
	if !exists {
		return nil, nil
	}
	r := clone(e.record)
	return &r, nil
}

// Query implements vectorstore.VectorStore.
func (s *Store) Query(ctx context.Context, vector []float32, topK int, filter vectorstore.Filter) ([]vectorstore.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, retrieval.NewIndexError("query", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dim > 0 && len(vector) != s.dim {
		return nil, retrieval.NewValidationError("vector",
			fmt.Sprintf("query dimension %d does not match namespace dimension %d", len(vector), s.dim))
	}

	results := make([]vectorstore.SearchResult, 0)
	qm := magnitude(vector)
	if qm == 0 || topK <= 0 {
		return results, nil
	}

	for id, e := range s.records {
		if e.mag == 0 || !filter.Matches(id, e.record.Metadata) {
			continue
		}
		score := dot(vector, e.record.Values) / (qm * e.mag)
		if math.IsNaN(score) {
			continue
		}
		results = append(results, vectorstore.SearchResult{
			ID:       id,
			Score:    float32(score),
			Metadata: maps.Clone(e.record.Metadata),
		})
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].ID < results[b].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Close implements vectorstore.VectorStore.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	return nil
}

func clone(r vectorstore.Record) vectorstore.Record {
	return vectorstore.Record{
		ID:       r.ID,
		Values:   slices.Clone(r.Values),
		Metadata: maps.Clone(r.Metadata),
	}
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Compile-time check that Store implements VectorStore.
var _ vectorstore.VectorStore = (*Store)(nil)
