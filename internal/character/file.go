package character

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kokoro-ai/kokoro/internal/types"
)

// card is the on-disk YAML shape of a character file.
type card struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Personality  string `yaml:"personality"`
	SpeechStyle  string `yaml:"speech_style"`
	Scenario     string `yaml:"scenario"`
	SystemPrompt string `yaml:"system_prompt"`
	FirstMessage string `yaml:"first_message"`
}

// FileRepo serves characters loaded from a directory of YAML cards.
type FileRepo struct {
	characters map[string]*types.Character
}

// NewFileRepo reads every *.yaml/*.yml card under dir.
func NewFileRepo(dir string) (*FileRepo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read characters dir: %w", err)
	}

	repo := &FileRepo{characters: make(map[string]*types.Character)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		ch, err := loadCard(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		repo.characters[ch.ID] = ch
	}
	return repo, nil
}

// GetByID returns the character for id, or ErrNotFound.
func (r *FileRepo) GetByID(_ context.Context, id string) (*types.Character, error) {
	ch, ok := r.characters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ch, nil
}

// List returns every loaded character.
func (r *FileRepo) List() []*types.Character {
	result := make([]*types.Character, 0, len(r.characters))
	for _, ch := range r.characters {
		result = append(result, ch)
	}
	return result
}

func loadCard(path string) (*types.Character, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read character card %s: %w", path, err)
	}

	var c card
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to parse character card %s: %w", path, err)
	}
	if c.ID == "" {
		c.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if c.Name == "" {
		return nil, fmt.Errorf("character card %s has no name", path)
	}

	info, err := os.Stat(path)
	created := time.Now()
	if err == nil {
		created = info.ModTime()
	}

	return &types.Character{
		ID:           c.ID,
		Name:         c.Name,
		Description:  NormalizeCardText(c.Description),
		Personality:  NormalizeCardText(c.Personality),
		SpeechStyle:  NormalizeCardText(c.SpeechStyle),
		Scenario:     NormalizeCardText(c.Scenario),
		SystemPrompt: ReplaceVars(NormalizeCardText(c.SystemPrompt), c.Name, "user"),
		FirstMessage: ReplaceVars(NormalizeCardText(c.FirstMessage), c.Name, "user"),
		CreatedAt:    created,
	}, nil
}
