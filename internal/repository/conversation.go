package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kokoro-ai/kokoro/internal/conversation"
	"github.com/kokoro-ai/kokoro/internal/types"
)

// conversationModel maps to the conversations table.
type conversationModel struct {
	ID          string `gorm:"primaryKey"`
	CharacterID string `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (conversationModel) TableName() string {
	return "conversations"
}

// turnModel maps to the turns table. Turns are append-only.
type turnModel struct {
	ID             int    `gorm:"primaryKey;autoIncrement"`
	ConversationID string `gorm:"index"`
	UserText       string
	AgentText      string
	PromptTokens   int
	Truncated      bool
	CreatedAt      time.Time
}

func (turnModel) TableName() string {
	return "turns"
}

// ConversationRepo persists conversations and their turns.
type ConversationRepo struct {
	db *gorm.DB
}

// NewConversationRepo returns a ConversationRepo.
func NewConversationRepo(db *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// Create registers a new conversation.
func (r *ConversationRepo) Create(ctx context.Context, conv types.Conversation) error {
	record := conversationModel{
		ID:          conv.ID,
		CharacterID: conv.CharacterID,
		CreatedAt:   conv.CreatedAt,
		UpdatedAt:   conv.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// Get loads a conversation with its turns in append order.
func (r *ConversationRepo) Get(ctx context.Context, id string) (*types.Conversation, error) {
	var record conversationModel
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", conversation.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	var turnRecords []turnModel
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", id).
		Order("id ASC").
		Find(&turnRecords).Error; err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}

	turns := make([]types.Turn, 0, len(turnRecords))
	for _, t := range turnRecords {
		turns = append(turns, types.Turn{
			UserText:  t.UserText,
			AgentText: t.AgentText,
			Meta: types.TurnMeta{
				PromptTokens: t.PromptTokens,
				Truncated:    t.Truncated,
			},
			CreatedAt: t.CreatedAt,
		})
	}

	return &types.Conversation{
		ID:          record.ID,
		CharacterID: record.CharacterID,
		Turns:       turns,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}, nil
}

// AppendTurn adds a completed turn and bumps the conversation timestamp.
func (r *ConversationRepo) AppendTurn(ctx context.Context, id string, turn types.Turn) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := turnModel{
			ConversationID: id,
			UserText:       turn.UserText,
			AgentText:      turn.AgentText,
			PromptTokens:   turn.Meta.PromptTokens,
			Truncated:      turn.Meta.Truncated,
			CreatedAt:      turn.CreatedAt,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
		if err := tx.Model(&conversationModel{}).
			Where("id = ?", id).
			Update("updated_at", turn.CreatedAt).Error; err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
		return nil
	})
}
