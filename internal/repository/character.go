package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kokoro-ai/kokoro/internal/character"
	"github.com/kokoro-ai/kokoro/internal/types"
)

// characterModel maps to the characters table.
type characterModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string
	Description  string
	Personality  string
	SpeechStyle  string
	Scenario     string
	SystemPrompt string
	FirstMessage string `gorm:"column:first_mes"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (characterModel) TableName() string {
	return "characters"
}

// CharacterRepo accesses characters data.
type CharacterRepo struct {
	db *gorm.DB
}

// NewCharacterRepo returns a CharacterRepo.
func NewCharacterRepo(db *gorm.DB) *CharacterRepo {
	return &CharacterRepo{db: db}
}

// GetByID fetches a character profile by id.
func (r *CharacterRepo) GetByID(ctx context.Context, id string) (*types.Character, error) {
	var model characterModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", character.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get character by id: %w", err)
	}
	return characterFromModel(model), nil
}

// Upsert creates or replaces a character profile.
func (r *CharacterRepo) Upsert(ctx context.Context, ch *types.Character) error {
	model := characterModel{
		ID:           ch.ID,
		Name:         ch.Name,
		Description:  ch.Description,
		Personality:  ch.Personality,
		SpeechStyle:  ch.SpeechStyle,
		Scenario:     ch.Scenario,
		SystemPrompt: ch.SystemPrompt,
		FirstMessage: ch.FirstMessage,
	}
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to upsert character: %w", err)
	}
	return nil
}

func characterFromModel(model characterModel) *types.Character {
	return &types.Character{
		ID:           model.ID,
		Name:         model.Name,
		Description:  model.Description,
		Personality:  model.Personality,
		SpeechStyle:  model.SpeechStyle,
		Scenario:     model.Scenario,
		SystemPrompt: model.SystemPrompt,
		FirstMessage: model.FirstMessage,
		CreatedAt:    model.CreatedAt,
	}
}
