package vectorstore

import (
	"context"
	"time"
)

// timeoutStore bounds every call to the wrapped store.
type timeoutStore struct {
	next    VectorStore
	timeout time.Duration
}

// WithTimeout wraps store so each Upsert, Fetch and Query runs under its own
// deadline. A non-positive timeout returns store unchanged.
func WithTimeout(store VectorStore, timeout time.Duration) VectorStore {
	if timeout <= 0 {
		return store
	}
	return &timeoutStore{next: store, timeout: timeout}
}

func (s *timeoutStore) Upsert(ctx context.Context, records []Record) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Upsert(ctx, records)
}

func (s *timeoutStore) Fetch(ctx context.Context, id string) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Fetch(ctx, id)
}

func (s *timeoutStore) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Query(ctx, vector, topK, filter)
}

func (s *timeoutStore) Close() error {
	return s.next.Close()
}

var _ VectorStore = (*timeoutStore)(nil)
