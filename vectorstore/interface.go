package vectorstore

import "context"

// VectorStore is a technology-agnostic interface over one namespace of a vector index.
// Implementations can use Qdrant, Pinecone, Supabase Vector, Weaviate, etc.
type VectorStore interface {
	// Upsert writes records. Upserting an existing id replaces the prior
	// record entirely (values and metadata), never merges.
	Upsert(ctx context.Context, records []Record) error

	// Fetch retrieves a record by ID.
	// Returns nil if the record is not found (not an error).
	Fetch(ctx context.Context, id string) (*Record, error)

	// Query performs vector similarity search with filtering and returns at
	// most topK results in descending score order.
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]SearchResult, error)

	// Close releases any resources held by the vector store.
	Close() error
}

// Record is an (id, vector, metadata) triple. Metadata values are scalars
// (string, bool, integers, floats) or string lists.
type Record struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// SearchResult represents a single result from vector similarity search.
type SearchResult struct {
	// ID is the unique identifier of the result.
	ID string `json:"id"`

	// Score is the cosine similarity (-1.0 to 1.0, higher is more similar).
	Score float32 `json:"score"`

	// Metadata contains the stored key-value pairs.
	Metadata map[string]any `json:"metadata"`
}
