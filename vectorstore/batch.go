package vectorstore

import (
	"context"
	"fmt"

	"github.com/creastat/retrieval"
	"go.uber.org/zap"
)

// DefaultUpsertChunkSize bounds the payload of a single upsert call.
const DefaultUpsertChunkSize = 100

// BatchUpsert splits records into chunks and issues one Upsert per chunk.
// The first failing chunk aborts the rest; earlier chunks stay committed.
// Each committed chunk is logged at debug level. A nil logger logs nothing.
func BatchUpsert(ctx context.Context, store VectorStore, records []Record, chunkSize int, logger *zap.Logger) error {
	if chunkSize <= 0 {
		chunkSize = DefaultUpsertChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := CheckDimensions(records, 0); err != nil {
		return err
	}

	for chunk, start := 0, 0; start < len(records); chunk, start = chunk+1, start+chunkSize {
		end := min(start+chunkSize, len(records))
		if err := store.Upsert(ctx, records[start:end]); err != nil {
			return &retrieval.IndexError{Op: "batch upsert", Chunk: chunk, Cause: err}
		}
		logger.Debug("committed upsert chunk",
			zap.Int("chunk", chunk),
			zap.Int("records", end-start))
	}
	return nil
}

// CheckDimensions verifies every record has the same non-zero dimensionality,
// equal to want when want is positive. It returns the dimensionality found.
func CheckDimensions(records []Record, want int) (int, error) {
	dim := want
	for i, r := range records {
		if r.ID == "" {
			return 0, retrieval.NewValidationError(fmt.Sprintf("records[%d].id", i), "id is required")
		}
		if len(r.Values) == 0 {
			return 0, retrieval.NewValidationError(fmt.Sprintf("records[%d].values", i), "vector is empty")
		}
		if dim <= 0 {
			dim = len(r.Values)
		}
		if len(r.Values) != dim {
			return 0, retrieval.NewValidationError(fmt.Sprintf("records[%d].values", i),
				fmt.Sprintf("dimension %d does not match namespace dimension %d", len(r.Values), dim))
		}
	}
	return dim, nil
}
