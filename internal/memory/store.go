package memory

import (
	"context"

	"github.com/kokoro-ai/kokoro/internal/types"
)

// VectorStore persists memory entries and supports nearest-neighbor
// retrieval scoped to a single character. Implementations: ChromemStore
// (embedded), repository.MemoryRepo (Postgres/pgvector).
type VectorStore interface {
	// Add persists an entry. Each call is independent and additive;
	// entries are never updated in place.
	Add(ctx context.Context, entry types.MemoryEntry) error

	// Search returns at most topK entries for characterID whose cosine
	// similarity to vec is above threshold, ordered by descending
	// similarity. An empty store yields an empty result, not an error.
	Search(ctx context.Context, characterID string, vec []float32, topK int, threshold float64) ([]types.RetrievedMemory, error)
}
