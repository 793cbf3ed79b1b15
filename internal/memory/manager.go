package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kokoro-ai/kokoro/internal/types"
)

// Manager owns the memory-entry lifecycle. It wraps a VectorStore with
// embedding calls, similarity thresholding, and result ranking. No other
// component touches the store directly.
type Manager struct {
	embedder  Embedder
	store     VectorStore
	topK      int
	threshold float64
}

// NewManager creates a Manager. Non-positive topK/threshold fall back to
// the documented defaults (5 and 0.7).
func NewManager(embedder Embedder, store VectorStore, topK int, threshold float64) *Manager {
	if topK <= 0 {
		topK = 5
	}
	if threshold <= 0 {
		threshold = 0.7
	}
	return &Manager{
		embedder:  embedder,
		store:     store,
		topK:      topK,
		threshold: threshold,
	}
}

// Retrieve returns the most relevant memories of characterID for query,
// ordered by descending similarity, ties broken by more recent entries.
// Retrieval failures degrade to an empty result so the conversation can
// proceed without memory grounding.
func (m *Manager) Retrieve(ctx context.Context, characterID, query string) ([]types.RetrievedMemory, error) {
	if query == "" {
		return nil, nil
	}

	vec, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("memory retrieval degraded: query embedding failed", "character_id", characterID, "error", err.Error())
		return nil, nil
	}

	memories, err := m.store.Search(ctx, characterID, vec, m.topK, m.threshold)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("memory retrieval degraded: vector search failed", "character_id", characterID, "error", err.Error())
		return nil, nil
	}

	// Stores are trusted to filter and rank, but the ordering contract is
	// the Manager's, so enforce it here.
	sortRetrieved(memories)
	filtered := memories[:0]
	for _, mem := range memories {
		if mem.Similarity >= m.threshold {
			filtered = append(filtered, mem)
		}
	}
	if len(filtered) > m.topK {
		filtered = filtered[:m.topK]
	}
	return filtered, nil
}

// Store embeds text and persists it as a new memory entry owned by
// characterID. The entry is retrievable immediately after return. Unlike
// Retrieve, failures surface to the caller.
func (m *Manager) Store(ctx context.Context, characterID, text string, metadata map[string]string) (types.MemoryEntry, error) {
	vec, err := m.embedder.EmbedDocument(ctx, text)
	if err != nil {
		return types.MemoryEntry{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	entry := types.MemoryEntry{
		ID:          uuid.NewString(),
		CharacterID: characterID,
		Text:        text,
		Metadata:    metadata,
		Embedding:   vec,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.store.Add(ctx, entry); err != nil {
		return types.MemoryEntry{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return entry, nil
}
