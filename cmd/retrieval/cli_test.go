package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/creastat/retrieval"
	"github.com/creastat/retrieval/thread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	cmd.ErrWriter = &out
	err := cmd.Run(context.Background(), append([]string{"retrieval"}, args...))
	return out.String(), err
}

func writeCandidates(t *testing.T, candidates []thread.ConceptCandidate) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candidates.json")
	data, err := json.Marshal(candidates)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestAssembleCommand(t *testing.T) {
	path := writeCandidates(t, []thread.ConceptCandidate{
		{ID: "stats", Name: "Statistics", RelevanceScore: 0.7, PrerequisiteIDs: []string{"prob"}},
		{ID: "prob", Name: "Probability", RelevanceScore: 0.95},
	})

	out, err := execute(t, "assemble", "--goal", "board games", "--strategy", "topological", path)
	require.NoError(t, err)

	var th thread.Thread
	require.NoError(t, json.Unmarshal([]byte(out), &th))
	assert.Equal(t, "board games", th.Goal)
	assert.Equal(t, []string{"prob", "stats"}, th.IDs())
	assert.Equal(t, 5, th.EstimatedHours)
}

func TestAssembleCommand_Errors(t *testing.T) {
	_, err := execute(t, "assemble")
	assert.Error(t, err)

	path := writeCandidates(t, []thread.ConceptCandidate{{ID: "a", Name: "A", RelevanceScore: 0.5}})
	_, err = execute(t, "assemble", "--strategy", "random", path)
	assert.ErrorIs(t, err, retrieval.ErrInvalidInput)

	path = writeCandidates(t, []thread.ConceptCandidate{
		{ID: "a", Name: "A", PrerequisiteIDs: []string{"b"}},
		{ID: "b", Name: "B", PrerequisiteIDs: []string{"a"}},
	})
	_, err = execute(t, "assemble", "--strategy", "topological", path)
	assert.ErrorIs(t, err, retrieval.ErrSequencing)
}

func embeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		type item struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		for i := range req.Input {
			resp.Data = append(resp.Data, item{Index: i, Embedding: []float64{1, 0, 0}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchCommand_EmptyIndex(t *testing.T) {
	srv := embeddingServer(t)
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("VECTOR_STORE", "memory")
	t.Setenv("VECTOR_DIMENSION", "3")
	t.Setenv("CACHE_STORE", "none")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("EMBEDDING_BASE_URL", srv.URL)
	t.Setenv("LOG_LEVEL", "error")

	out, err := execute(t, "search", "--kind", "path", "probability")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)

	_, err = execute(t, "search", "--kind", "lesson", "probability")
	assert.ErrorIs(t, err, retrieval.ErrInvalidInput)

	_, err = execute(t, "recommend", "--profile", "s1")
	assert.ErrorIs(t, err, retrieval.ErrInvalidConfig)
}
