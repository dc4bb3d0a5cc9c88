package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creastat/retrieval"
	"github.com/creastat/retrieval/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend encodes "item N" as the vector [N] so order can be checked.
type stubBackend struct {
	mu    sync.Mutex
	calls [][]string
	err   error
	short bool
	block bool
}

func (b *stubBackend) Model() string { return "stub-model" }

func (b *stubBackend) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	b.mu.Lock()
	b.calls = append(b.calls, append([]string(nil), inputs...))
	b.mu.Unlock()

	if b.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if b.err != nil {
		return nil, b.err
	}

	out := make([][]float32, 0, len(inputs))
	for _, in := range inputs {
		var n int
		if _, err := fmt.Sscanf(in, "item %d", &n); err != nil {
			n = -1
		}
		out = append(out, []float32{float32(n)})
	}
	if b.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func items(n int) []string {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("item %d", i)
	}
	return texts
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	backend := &stubBackend{}
	e := New(backend)
	var delays []time.Duration
	e.sleep = noSleep(&delays)

	vectors, err := e.EmbedBatch(context.Background(), items(45))
	require.NoError(t, err)
	require.Len(t, vectors, 45)
	for i, v := range vectors {
		assert.Equal(t, []float32{float32(i)}, v, "vector %d", i)
	}

	require.Len(t, backend.calls, 3)
	assert.Len(t, backend.calls[0], 20)
	assert.Len(t, backend.calls[1], 20)
	assert.Len(t, backend.calls[2], 5)
	assert.Equal(t, []time.Duration{DefaultChunkDelay, DefaultChunkDelay}, delays)
}

func TestEmbedBatchEmpty(t *testing.T) {
	backend := &stubBackend{}
	e := New(backend)

	vectors, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Empty(t, backend.calls)
}

func TestEmbedBatchCustomChunking(t *testing.T) {
	backend := &stubBackend{}
	e := New(backend, WithChunkSize(2), WithChunkDelay(0))
	var delays []time.Duration
	e.sleep = noSleep(&delays)

	_, err := e.EmbedBatch(context.Background(), items(5))
	require.NoError(t, err)
	assert.Len(t, backend.calls, 3)
	assert.Empty(t, delays)
}

func TestEmbedRejectsEmptyText(t *testing.T) {
	backend := &stubBackend{}
	e := New(backend)

	_, err := e.Embed(context.Background(), "  \t ")
	require.Error(t, err)
	assert.ErrorIs(t, err, retrieval.ErrInvalidInput)

	_, err = e.EmbedBatch(context.Background(), []string{"item 1", "@@@", "item 2"})
	var verr *retrieval.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "texts[1]", verr.Field)
	assert.Empty(t, backend.calls, "validation happens before any backend call")
}

func TestEmbedTruncatesLongText(t *testing.T) {
	backend := &stubBackend{}
	e := New(backend)

	_, err := e.Embed(context.Background(), strings.Repeat("word ", 40000))
	require.NoError(t, err)
	require.Len(t, backend.calls, 1)
	assert.LessOrEqual(t, retrieval.EstimateTokens(backend.calls[0][0]), DefaultMaxTokens)
}

func TestEmbedCleansText(t *testing.T) {
	backend := &stubBackend{}
	e := New(backend)

	v, err := e.Embed(context.Background(), "  item   7\n\n")
	require.NoError(t, err)
	assert.Equal(t, []float32{7}, v)
	assert.Equal(t, "item 7", backend.calls[0][0])
}

func TestEmbedBackendErrors(t *testing.T) {
	cause := errors.New("rate limited")
	backend := &stubBackend{err: cause}
	e := New(backend)
	e.sleep = noSleep(new([]time.Duration))

	_, err := e.EmbedBatch(context.Background(), items(30))
	require.Error(t, err)
	assert.ErrorIs(t, err, retrieval.ErrEmbedding)
	assert.ErrorIs(t, err, cause)
	assert.Len(t, backend.calls, 1, "failures are not retried")

	_, err = New(&stubBackend{short: true}).Embed(context.Background(), "item 1")
	assert.ErrorIs(t, err, retrieval.ErrEmbedding)
}

func TestEmbedTimeout(t *testing.T) {
	e := New(&stubBackend{block: true}, WithTimeout(10*time.Millisecond))

	_, err := e.Embed(context.Background(), "item 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, retrieval.ErrEmbedding)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmbedBatchCancelledBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&stubBackend{}).EmbedBatch(ctx, items(21))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPBackend(t *testing.T) {
	var got embeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0.5,0.25]},
			{"index":0,"embedding":[1,2]}
		],"model":"m"}`))
	}))
	defer server.Close()

	b := NewHTTPBackend(HTTPConfig{APIKey: "secret", BaseURL: server.URL + "/"})
	assert.Equal(t, defaultModel, b.Model())

	vectors, err := b.CreateEmbeddings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {0.5, 0.25}}, vectors)
	assert.Equal(t, []string{"a", "b"}, got.Input)
	assert.Equal(t, defaultModel, got.Model)
}

func TestHTTPBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer server.Close()

	e := New(NewHTTPBackend(HTTPConfig{BaseURL: server.URL}))
	_, err := e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, retrieval.ErrEmbedding)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "slow down")
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3e-7}
	got, err := DecodeVector(EncodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCachedProvider(t *testing.T) {
	ctx := context.Background()
	backend := &stubBackend{}
	store := cache.NewMemoryStore(time.Hour)
	p := NewCachedProvider(New(backend), store, backend.Model(), nil)

	v, err := p.Embed(ctx, "item 3")
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, v)

	v, err = p.Embed(ctx, "item 3")
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, v)
	assert.Len(t, backend.calls, 1, "second lookup is served from cache")

	vectors, err := p.EmbedBatch(ctx, []string{"item 1", "item 3", "item 2"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {3}, {2}}, vectors)
	require.Len(t, backend.calls, 2)
	assert.Equal(t, []string{"item 1", "item 2"}, backend.calls[1], "only misses are embedded")

	other := NewCachedProvider(New(backend), store, "other-model", nil)
	_, err = other.Embed(ctx, "item 3")
	require.NoError(t, err)
	assert.Len(t, backend.calls, 3, "keys are scoped by model")
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (failingStore) Set(context.Context, string, []byte) error   { return errors.New("down") }
func (failingStore) Delete(context.Context, string) error        { return nil }
func (failingStore) Close() error                                { return nil }

func TestCachedProviderIgnoresCacheFailures(t *testing.T) {
	backend := &stubBackend{}
	p := NewCachedProvider(New(backend), failingStore{}, "m", nil)

	v, err := p.Embed(context.Background(), "item 4")
	require.NoError(t, err)
	assert.Equal(t, []float32{4}, v)
}
