package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/kokoro-ai/kokoro/internal/types"
)

// memoryModel maps to the memories table.
type memoryModel struct {
	ID          string `gorm:"primaryKey"`
	CharacterID string `gorm:"index"`
	Content     string
	// Metadata is stored as JSONB for retrieval filters.
	Metadata json.RawMessage `gorm:"type:jsonb"`
	// Embedding stores the vector representation for similarity search.
	Embedding *pgvector.Vector `gorm:"type:vector"`
	CreatedAt time.Time
}

func (memoryModel) TableName() string {
	return "memories"
}

// MemoryRepo accesses memory entries. It implements memory.VectorStore.
type MemoryRepo struct {
	db *gorm.DB
}

// NewMemoryRepo returns a MemoryRepo.
func NewMemoryRepo(db *gorm.DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

// Add persists a memory entry.
func (r *MemoryRepo) Add(ctx context.Context, entry types.MemoryEntry) error {
	var vector *pgvector.Vector
	if len(entry.Embedding) > 0 {
		v := pgvector.NewVector(entry.Embedding)
		vector = &v
	}
	metadata, err := marshalJSON(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode memory metadata: %w", err)
	}
	record := memoryModel{
		ID:          entry.ID,
		CharacterID: entry.CharacterID,
		Content:     entry.Text,
		Metadata:    metadata,
		Embedding:   vector,
		CreatedAt:   entry.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

// retrievedRow is the scan target for the similarity query.
type retrievedRow struct {
	ID          string
	CharacterID string
	Content     string
	Metadata    json.RawMessage
	CreatedAt   time.Time
	Similarity  float64
}

// Search runs a cosine nearest-neighbor query scoped to one character.
func (r *MemoryRepo) Search(ctx context.Context, characterID string, vec []float32, topK int, threshold float64) ([]types.RetrievedMemory, error) {
	if len(vec) == 0 || topK <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, character_id, content, metadata, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM memories
		WHERE character_id = $2
		  AND embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) >= $3
		ORDER BY similarity DESC, created_at DESC, id ASC
		LIMIT $4`

	var rows []retrievedRow
	if err := r.db.WithContext(ctx).
		Raw(query, pgvector.NewVector(vec), characterID, threshold, topK).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to search similar memories: %w", err)
	}

	results := make([]types.RetrievedMemory, 0, len(rows))
	for _, row := range rows {
		var metadata map[string]string
		_ = unmarshalJSON(row.Metadata, &metadata)
		results = append(results, types.RetrievedMemory{
			Entry: types.MemoryEntry{
				ID:          row.ID,
				CharacterID: row.CharacterID,
				Text:        row.Content,
				Metadata:    metadata,
				CreatedAt:   row.CreatedAt,
			},
			Similarity: row.Similarity,
		})
	}
	return results, nil
}

// marshalJSON encodes a value into JSONB, returning nil for empty values.
func marshalJSON(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

// unmarshalJSON decodes JSONB into the provided target.
func unmarshalJSON(data json.RawMessage, target any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}
