package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/creastat/retrieval"
	"github.com/creastat/retrieval/filter"
	"github.com/creastat/retrieval/vectorstore"
	"github.com/creastat/retrieval/vectorstore/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder maps known texts to fixed vectors and everything else to [1 0 0].
type stubEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   []string
	err     error
}

func (s *stubEmbedder) vector(text string) []float32 {
	if v, ok := s.vectors[text]; ok {
		return v
	}
	return []float32{1, 0, 0}
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, text)
	if s.err != nil {
		return nil, &retrieval.EmbeddingError{Cause: s.err}
	}
	return s.vector(text), nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, texts...)
	if s.err != nil {
		return nil, &retrieval.EmbeddingError{Cause: s.err}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vector(t)
	}
	return out, nil
}

// nullStore returns a nil match list and ignores filters.
type nullStore struct {
	results []vectorstore.SearchResult
	record  *vectorstore.Record
	err     error
}

func (s *nullStore) Upsert(context.Context, []vectorstore.Record) error { return s.err }
func (s *nullStore) Fetch(context.Context, string) (*vectorstore.Record, error) {
	return s.record, s.err
}
func (s *nullStore) Query(context.Context, []float32, int, vectorstore.Filter) ([]vectorstore.SearchResult, error) {
	return s.results, s.err
}
func (s *nullStore) Close() error { return nil }

func seed(t *testing.T, records ...vectorstore.Record) *memory.Store {
	t.Helper()
	store := memory.New("test")
	require.NoError(t, store.Upsert(context.Background(), records))
	return store
}

func rec(id string, values []float32, metadata map[string]any) vectorstore.Record {
	return vectorstore.Record{ID: id, Values: values, Metadata: metadata}
}

func ids(results []vectorstore.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestSearch_ScopesToKind(t *testing.T) {
	store := seed(t,
		rec("course_1", []float32{1, 0, 0}, nil),
		rec("course_2", []float32{0.8, 0.2, 0}, nil),
		rec("path_1", []float32{1, 0, 0}, nil),
		rec("concept_1", []float32{1, 0, 0}, nil),
	)
	svc := NewService(&stubEmbedder{}, store)

	results, err := svc.Search(context.Background(), retrieval.KindCourse, "algebra", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"course_1", "course_2"}, ids(results))
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearch_AppliesFilter(t *testing.T) {
	store := seed(t,
		rec("course_1", []float32{1, 0, 0}, map[string]any{"category": "A", "estimatedHours": 6}),
		rec("course_2", []float32{1, 0, 0}, map[string]any{"category": "B", "estimatedHours": 6}),
		rec("course_3", []float32{1, 0, 0}, map[string]any{"category": "A", "estimatedHours": 12}),
	)
	svc := NewService(&stubEmbedder{}, store)

	spec := &filter.Spec{Category: []string{"A"}, EstimatedHours: filter.Between(5, 10)}
	results, err := svc.Search(context.Background(), retrieval.KindCourse, "q", spec, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"course_1"}, ids(results))
}

func TestSearch_ValidatesBeforeEmbedding(t *testing.T) {
	embedder := &stubEmbedder{}
	svc := NewService(embedder, memory.New("test"))
	lo := 5.0

	_, err := svc.Search(context.Background(), retrieval.KindCourse, "q",
		&filter.Spec{EstimatedHours: &filter.Range{Min: &lo}}, 10)
	var verr *retrieval.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "estimatedHours", verr.Field)

	_, err = svc.Search(context.Background(), "lesson", "q", nil, 10)
	assert.ErrorIs(t, err, retrieval.ErrInvalidInput)
	assert.Empty(t, embedder.calls)
}

func TestSearch_NullMatchesBecomeEmpty(t *testing.T) {
	svc := NewService(&stubEmbedder{}, &nullStore{})

	results, err := svc.Search(context.Background(), retrieval.KindPath, "q", nil, 5)
	require.NoError(t, err)
	require.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_PropagatesFailures(t *testing.T) {
	cause := errors.New("index down")
	svc := NewService(&stubEmbedder{}, &nullStore{err: cause})

	_, err := svc.Search(context.Background(), retrieval.KindPath, "q", nil, 5)
	assert.ErrorIs(t, err, retrieval.ErrIndex)
	assert.ErrorIs(t, err, cause)

	svc = NewService(&stubEmbedder{err: errors.New("quota")}, memory.New("test"))
	_, err = svc.Search(context.Background(), retrieval.KindPath, "q", nil, 5)
	assert.ErrorIs(t, err, retrieval.ErrEmbedding)
}

func TestSearch_CapsAndRanksBackendResults(t *testing.T) {
	svc := NewService(&stubEmbedder{}, &nullStore{results: []vectorstore.SearchResult{
		{ID: "course_b", Score: 0.5},
		{ID: "course_c", Score: 0.9},
		{ID: "course_a", Score: 0.5},
	}})

	results, err := svc.Search(context.Background(), retrieval.KindCourse, "q", nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"course_c", "course_a"}, ids(results))
}

func TestRelatedTo_ExcludesSelf(t *testing.T) {
	store := seed(t,
		rec("course_1", []float32{1, 0, 0}, nil),
		rec("course_2", []float32{0.9, 0.1, 0}, nil),
		rec("course_3", []float32{0.8, 0.2, 0}, nil),
		rec("course_4", []float32{0.7, 0.3, 0}, nil),
		rec("course_5", []float32{0.6, 0.4, 0}, nil),
		rec("course_6", []float32{0.5, 0.5, 0}, nil),
		rec("course_7", []float32{0.4, 0.6, 0}, nil),
		rec("path_1", []float32{1, 0, 0}, nil),
	)
	svc := NewService(&stubEmbedder{}, store)

	for _, id := range []string{"1", "course_4", "7"} {
		results, err := svc.RelatedTo(context.Background(), retrieval.KindCourse, id, 5)
		require.NoError(t, err)
		assert.Len(t, results, 5)
		assert.NotContains(t, ids(results), retrieval.KindCourse.Resolve(id))
		assert.NotContains(t, ids(results), "path_1")
	}
}

func TestRelatedTo_BackendIgnoringExclusion(t *testing.T) {
	self := &vectorstore.Record{ID: "course_1", Values: []float32{1, 0, 0}}
	svc := NewService(&stubEmbedder{}, &nullStore{
		record: self,
		results: []vectorstore.SearchResult{
			{ID: "course_1", Score: 1},
			{ID: "course_2", Score: 0.9},
			{ID: "course_3", Score: 0.8},
		},
	})

	results, err := svc.RelatedTo(context.Background(), retrieval.KindCourse, "1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"course_2", "course_3"}, ids(results))
}

func TestRelatedTo_MissingIsEmpty(t *testing.T) {
	embedder := &stubEmbedder{}
	svc := NewService(embedder, seed(t, rec("course_1", []float32{1, 0, 0}, nil)))

	results, err := svc.RelatedTo(context.Background(), retrieval.KindCourse, "404", 5)
	require.NoError(t, err)
	require.NotNil(t, results)
	assert.Empty(t, results)
	assert.Empty(t, embedder.calls)
}

func TestPersonalizedRecommendations(t *testing.T) {
	store := seed(t,
		rec("course_1", []float32{1, 0, 0}, map[string]any{"category": "Math", "difficulty": "Beginner"}),
		rec("course_2", []float32{1, 0, 0}, map[string]any{"category": "Math", "difficulty": "Advanced"}),
		rec("path_1", []float32{0.9, 0.1, 0}, map[string]any{"category": "Art", "difficulty": "Beginner"}),
		rec("course_3", []float32{1, 0, 0}, map[string]any{"category": "Cooking", "difficulty": "Beginner"}),
	)
	embedder := &stubEmbedder{}
	svc := NewService(embedder, store)

	profile := retrieval.StudentProfile{
		Interests:       []string{"robots", "music"},
		CategoryWeights: map[string]float64{"Math": 0.9, "Art": 0.4},
		GradeLevel:      "7",
	}
	results, err := svc.PersonalizedRecommendations(context.Background(), profile, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"course_1", "path_1"}, ids(results))
	require.Len(t, embedder.calls, 1)
	assert.Equal(t,
		"Educational content for students interested in robots, music, focusing on Math and Art development",
		embedder.calls[0])
}

func TestSearchMany_DedupesByBestScore(t *testing.T) {
	store := seed(t,
		rec("concept_a", []float32{1, 0, 0}, nil),
		rec("concept_b", []float32{0, 1, 0}, nil),
		rec("concept_c", []float32{0.7, 0.7, 0}, nil),
		rec("course_x", []float32{1, 0, 0}, nil),
	)
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"first":  {1, 0, 0},
		"second": {0, 1, 0},
	}}
	svc := NewService(embedder, store)

	results, err := svc.SearchMany(context.Background(), retrieval.KindConcept, []string{"first", "second"}, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"concept_a", "concept_b", "concept_c"}, ids(results))
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 1.0, results[1].Score, 1e-6)

	results, err = svc.SearchMany(context.Background(), retrieval.KindConcept, nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestOrEmpty(t *testing.T) {
	assert.Equal(t, []vectorstore.SearchResult{}, OrEmpty(nil, errors.New("down"), nil))
	assert.Equal(t, []vectorstore.SearchResult{}, OrEmpty(nil, nil, nil))

	results := []vectorstore.SearchResult{{ID: "x"}}
	assert.Equal(t, results, OrEmpty(results, nil, nil))
}
