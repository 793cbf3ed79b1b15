package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/kokoro-ai/kokoro/internal/types"
)

const metadataKeyPrefix = "meta."

// ChromemStore is an embedded VectorStore backed by chromem-go. Each
// character gets its own collection, which enforces the cross-character
// isolation invariant at the storage level.
type ChromemStore struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// NewChromemStore creates an in-process vector store.
func NewChromemStore() *ChromemStore {
	return &ChromemStore{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}
}

func (s *ChromemStore) getOrCreateCollection(characterID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[characterID]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := s.collections[characterID]; exists {
		return col, nil
	}

	col, err := s.db.CreateCollection(
		fmt.Sprintf("character_%s", characterID),
		nil, // no collection metadata
		nil, // embeddings are always provided by the caller
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[characterID] = col
	return col, nil
}

// Add persists entry into its character's collection.
func (s *ChromemStore) Add(ctx context.Context, entry types.MemoryEntry) error {
	col, err := s.getOrCreateCollection(entry.CharacterID)
	if err != nil {
		return err
	}

	metadata := map[string]string{
		"character_id": entry.CharacterID,
		"created_at":   entry.CreatedAt.Format(time.RFC3339Nano),
	}
	for k, v := range entry.Metadata {
		metadata[metadataKeyPrefix+k] = v
	}

	doc := chromem.Document{
		ID:        entry.ID,
		Content:   entry.Text,
		Embedding: entry.Embedding,
		Metadata:  metadata,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Search runs a nearest-neighbor query within the character's collection.
func (s *ChromemStore) Search(ctx context.Context, characterID string, vec []float32, topK int, threshold float64) ([]types.RetrievedMemory, error) {
	if len(vec) == 0 || topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	col, exists := s.collections[characterID]
	s.mu.RUnlock()
	if !exists {
		return nil, nil
	}

	// chromem rejects nResults larger than the collection size.
	n := topK
	if count := col.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	retrieved := make([]types.RetrievedMemory, 0, len(results))
	for _, result := range results {
		similarity := float64(result.Similarity)
		if similarity < threshold {
			continue
		}
		retrieved = append(retrieved, types.RetrievedMemory{
			Entry:      entryFromResult(characterID, result),
			Similarity: similarity,
		})
	}

	sortRetrieved(retrieved)
	return retrieved, nil
}

func entryFromResult(characterID string, result chromem.Result) types.MemoryEntry {
	createdAt, _ := time.Parse(time.RFC3339Nano, result.Metadata["created_at"])

	var metadata map[string]string
	for k, v := range result.Metadata {
		if !strings.HasPrefix(k, metadataKeyPrefix) {
			continue
		}
		if metadata == nil {
			metadata = make(map[string]string)
		}
		metadata[strings.TrimPrefix(k, metadataKeyPrefix)] = v
	}

	return types.MemoryEntry{
		ID:          result.ID,
		CharacterID: characterID,
		Text:        result.Content,
		Metadata:    metadata,
		Embedding:   result.Embedding,
		CreatedAt:   createdAt,
	}
}

// sortRetrieved orders by descending similarity, breaking ties in favor
// of newer entries, then by id for a total order.
func sortRetrieved(memories []types.RetrievedMemory) {
	sort.SliceStable(memories, func(i, j int) bool {
		if memories[i].Similarity != memories[j].Similarity {
			return memories[i].Similarity > memories[j].Similarity
		}
		if !memories[i].Entry.CreatedAt.Equal(memories[j].Entry.CreatedAt) {
			return memories[i].Entry.CreatedAt.After(memories[j].Entry.CreatedAt)
		}
		return memories[i].Entry.ID < memories[j].Entry.ID
	})
}
