package thread

import (
	"context"
	"errors"
	"testing"

	"github.com/creastat/retrieval"
	"github.com/creastat/retrieval/vectorstore"
	"github.com/creastat/retrieval/vectorstore/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEmbedder struct {
	vectors map[string][]float32
	texts   []string
	err     error
}

func (e *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *fixedEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.texts = append(e.texts, texts...)
	if e.err != nil {
		return nil, &retrieval.EmbeddingError{Cause: e.err}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

// flakyStore fails queries whose vector starts with 0.
type flakyStore struct {
	*memory.Store
}

func (s flakyStore) Query(ctx context.Context, vector []float32, topK int, f vectorstore.Filter) ([]vectorstore.SearchResult, error) {
	if vector[0] == 0 {
		return nil, errors.New("timeout")
	}
	return s.Store.Query(ctx, vector, topK, f)
}

func contentStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New("content")
	require.NoError(t, store.Upsert(context.Background(), []vectorstore.Record{
		{ID: "chunk_1", Values: []float32{1, 0, 0}, Metadata: map[string]any{"searchableText": "dice and odds"}},
		{ID: "chunk_2", Values: []float32{0.9, 0.3, 0}, Metadata: map[string]any{"text": "coin flips"}},
		{ID: "chunk_3", Values: []float32{0.2, 1, 0}, Metadata: map[string]any{"text": "far away"}},
		{ID: "course_1", Values: []float32{1, 0, 0}},
	}))
	return store
}

func TestBuilder_Build(t *testing.T) {
	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"Probability in Math: chance of events": {1, 0, 0},
	}}
	b := NewBuilder(embedder, contentStore(t),
		WithContentFilter(vectorstore.Filter{}.And(vectorstore.HasPrefix(vectorstore.IDField, "chunk_"))))

	th, err := b.Build(context.Background(), "win at board games", []ConceptCandidate{
		{ID: "stats", Name: "Statistics", Subject: "Math", Description: "summaries", RelevanceScore: 0.7, PrerequisiteIDs: []string{"prob"}},
		{ID: "prob", Name: "Probability", Subject: "Math", Description: "chance of events", RelevanceScore: 0.95},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"prob", "stats"}, th.IDs())

	prob := th.Concepts[0]
	assert.True(t, prob.HasContent)
	assert.True(t, prob.IsCore)
	require.Len(t, prob.Chunks, 2, "chunks below the score floor are dropped")
	assert.Equal(t, "chunk_1", prob.Chunks[0].ID)
	assert.Equal(t, "dice and odds", prob.Chunks[0].Text)
	assert.Equal(t, "coin flips", prob.Chunks[1].Text)
	assert.Equal(t, 0.95, prob.RelevanceScore, "relevance is not rewritten from chunk scores")

	stats := th.Concepts[1]
	assert.False(t, stats.HasContent)
	assert.Equal(t, 0.7, stats.RelevanceScore)

	assert.Equal(t, ContentSummary{TotalChunks: 2, ConceptsWithContent: 1, ConceptsWithoutContent: 1}, th.ContentSummary)
	assert.Equal(t, []Edge{{From: "prob", To: "stats"}}, th.Visualization.Edges)
	assert.Len(t, embedder.texts, 2, "concepts are embedded in one batch")
}

func TestBuilder_SkipsCatalogRecords(t *testing.T) {
	store := memory.New("content")
	require.NoError(t, store.Upsert(context.Background(), []vectorstore.Record{
		{ID: "course_1", Values: []float32{1, 0, 0}, Metadata: map[string]any{"kind": "course", "searchableText": "course"}},
		{ID: "concept_1", Values: []float32{1, 0, 0}, Metadata: map[string]any{"kind": "concept"}},
		{ID: "chunk_1", Values: []float32{1, 0.1, 0}, Metadata: map[string]any{"text": "dice and odds"}},
	}))
	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"Probability in Math: chance": {1, 0, 0},
	}}

	th, err := NewBuilder(embedder, store).Build(context.Background(), "goal", []ConceptCandidate{
		{ID: "prob", Name: "Probability", Subject: "Math", Description: "chance", RelevanceScore: 0.9},
	})
	require.NoError(t, err)
	require.Len(t, th.Concepts[0].Chunks, 1)
	assert.Equal(t, "chunk_1", th.Concepts[0].Chunks[0].ID)
}

func TestBuilder_SearchFailureLeavesConceptEmpty(t *testing.T) {
	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"Probability in Math: chance": {1, 0, 0},
	}}
	b := NewBuilder(embedder, flakyStore{contentStore(t)})

	th, err := b.Build(context.Background(), "goal", []ConceptCandidate{
		{ID: "prob", Name: "Probability", Subject: "Math", Description: "chance", RelevanceScore: 0.9},
		{ID: "geo", Name: "Geometry", Subject: "Math", Description: "shapes", RelevanceScore: 0.8},
	})
	require.NoError(t, err)
	assert.True(t, th.Concepts[0].HasContent)
	assert.False(t, th.Concepts[1].HasContent)
	assert.Empty(t, th.Concepts[1].Chunks)
}

func TestBuilder_EmbeddingFailureAborts(t *testing.T) {
	b := NewBuilder(&fixedEmbedder{err: errors.New("quota")}, contentStore(t))

	_, err := b.Build(context.Background(), "goal", []ConceptCandidate{candidate("a", 0.9)})
	assert.ErrorIs(t, err, retrieval.ErrEmbedding)
}

func TestConceptText(t *testing.T) {
	c := ConceptCandidate{Name: "Ratios", Subject: "Math", Description: "comparing amounts"}
	assert.Equal(t, "Ratios in Math: comparing amounts", conceptText("cook", c))

	c.RelevanceHypothesis = "recipes scale"
	assert.Equal(t, `Ratios in Math: comparing amounts. Relevance to "cook": recipes scale`, conceptText("cook", c))
}
