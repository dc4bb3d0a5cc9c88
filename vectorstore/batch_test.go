package vectorstore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/creastat/retrieval"
	"github.com/creastat/retrieval/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recordingStore records upsert calls and fails on a chosen call.
type recordingStore struct {
	calls  [][]vectorstore.Record
	failAt int
}

func (s *recordingStore) Upsert(_ context.Context, records []vectorstore.Record) error {
	s.calls = append(s.calls, records)
	if len(s.calls)-1 == s.failAt {
		return errors.New("backend unavailable")
	}
	return nil
}

func (s *recordingStore) Fetch(context.Context, string) (*vectorstore.Record, error) {
	return nil, nil
}

func (s *recordingStore) Query(context.Context, []float32, int, vectorstore.Filter) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (s *recordingStore) Close() error { return nil }

func makeRecords(n int) []vectorstore.Record {
	records := make([]vectorstore.Record, n)
	for i := range records {
		records[i] = vectorstore.Record{ID: fmt.Sprintf("r%d", i), Values: []float32{1, float32(i)}}
	}
	return records
}

func TestBatchUpsert_Chunks(t *testing.T) {
	store := &recordingStore{failAt: -1}

	err := vectorstore.BatchUpsert(context.Background(), store, makeRecords(250), 0, nil)
	require.NoError(t, err)

	require.Len(t, store.calls, 3)
	assert.Len(t, store.calls[0], 100)
	assert.Len(t, store.calls[1], 100)
	assert.Len(t, store.calls[2], 50)
	assert.Equal(t, "r249", store.calls[2][49].ID)
}

func TestBatchUpsert_FailFast(t *testing.T) {
	store := &recordingStore{failAt: 1}

	err := vectorstore.BatchUpsert(context.Background(), store, makeRecords(25), 10, nil)
	require.Error(t, err)

	var indexErr *retrieval.IndexError
	require.ErrorAs(t, err, &indexErr)
	assert.Equal(t, 1, indexErr.Chunk)
	assert.ErrorIs(t, err, retrieval.ErrIndex)
	assert.Len(t, store.calls, 2, "remaining chunks must not be attempted")
}

func TestBatchUpsert_LogsCommittedChunks(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	store := &recordingStore{failAt: 2}

	err := vectorstore.BatchUpsert(context.Background(), store, makeRecords(25), 10, zap.New(core))
	require.Error(t, err)

	entries := logs.FilterMessage("committed upsert chunk").All()
	require.Len(t, entries, 2, "the failed chunk is not logged as committed")
	assert.Equal(t, int64(1), entries[1].ContextMap()["chunk"])
	assert.Equal(t, int64(10), entries[1].ContextMap()["records"])
}

func TestBatchUpsert_ValidatesBeforeCalling(t *testing.T) {
	store := &recordingStore{failAt: -1}
	records := makeRecords(3)
	records[2].Values = []float32{1, 2, 3}

	err := vectorstore.BatchUpsert(context.Background(), store, records, 1, nil)
	assert.ErrorIs(t, err, retrieval.ErrInvalidInput)
	assert.Empty(t, store.calls)
}

// deadlineStore reports whether each call carried a deadline.
type deadlineStore struct {
	recordingStore
	sawDeadline bool
}

func (s *deadlineStore) Fetch(ctx context.Context, _ string) (*vectorstore.Record, error) {
	_, s.sawDeadline = ctx.Deadline()
	return nil, nil
}

func TestWithTimeout(t *testing.T) {
	inner := &deadlineStore{recordingStore: recordingStore{failAt: -1}}

	assert.Same(t, vectorstore.VectorStore(inner), vectorstore.WithTimeout(inner, 0))

	wrapped := vectorstore.WithTimeout(inner, time.Second)
	_, err := wrapped.Fetch(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, inner.sawDeadline)
}
