// Package types defines the domain entities shared across the core.
package types

import "time"

const (
	// RoleUser tags content written by the human side of a conversation.
	RoleUser = "user"
	// RoleAssistant tags content produced by the character agent.
	RoleAssistant = "assistant"
	// RoleSystem tags persona and instruction content.
	RoleSystem = "system"
)

// Character is the persona profile attached to an agent. It is owned by
// the character collaborator; the core only reads it.
type Character struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Personality  string    `json:"personality"`
	SpeechStyle  string    `json:"speech_style"`
	Scenario     string    `json:"scenario"`
	SystemPrompt string    `json:"system_prompt"`
	FirstMessage string    `json:"first_message"`
	CreatedAt    time.Time `json:"created_at"`
}

// TurnMeta carries optional generation metadata for a turn.
type TurnMeta struct {
	PromptTokens int  `json:"prompt_tokens"`
	Truncated    bool `json:"truncated"`
}

// Turn is one user message paired with the agent response to it.
// Immutable once appended to a conversation.
type Turn struct {
	UserText  string    `json:"user_text"`
	AgentText string    `json:"agent_text"`
	Meta      TurnMeta  `json:"meta"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is an append-only sequence of turns tied to one character.
// All turns in a conversation reference the same character id.
type Conversation struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"character_id"`
	Turns       []Turn    `json:"turns"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MemoryEntry is a durable, character-scoped record derived from a past
// exchange. Entries are never mutated after creation.
type MemoryEntry struct {
	ID          string            `json:"id"`
	CharacterID string            `json:"character_id"`
	Text        string            `json:"text"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Embedding   []float32         `json:"-"` // embedding vectors, not serialized
	CreatedAt   time.Time         `json:"created_at"`
}

// RetrievedMemory is a memory entry paired with its similarity to the
// query that retrieved it.
type RetrievedMemory struct {
	Entry      MemoryEntry `json:"entry"`
	Similarity float64     `json:"similarity"`
}

// AgentReply is the result of a processed conversation turn.
type AgentReply struct {
	Text            string   `json:"text"`
	ConversationID  string   `json:"conversation_id"`
	MemoryPersisted bool     `json:"memory_persisted"`
	Meta            TurnMeta `json:"meta"`
}
