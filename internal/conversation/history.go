package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kokoro-ai/kokoro/internal/types"
)

// HistoryStore persists conversations and their turns, keyed by
// conversation id. Implementations: MemoryHistoryStore (in-process),
// repository.ConversationRepo (Postgres).
type HistoryStore interface {
	// Create registers a new, empty conversation.
	Create(ctx context.Context, conv types.Conversation) error

	// Get returns the conversation with its turns in append order, or
	// ErrNotFound.
	Get(ctx context.Context, id string) (*types.Conversation, error)

	// AppendTurn adds a completed turn and bumps the conversation's
	// last-activity timestamp.
	AppendTurn(ctx context.Context, id string, turn types.Turn) error
}

// MemoryHistoryStore keeps conversations in process memory.
type MemoryHistoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*types.Conversation
}

// NewMemoryHistoryStore creates an empty in-process history store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		conversations: make(map[string]*types.Conversation),
	}
}

func (s *MemoryHistoryStore) Create(_ context.Context, conv types.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.conversations[conv.ID]; exists {
		return fmt.Errorf("conversation %s already exists", conv.ID)
	}
	stored := conv
	stored.Turns = append([]types.Turn(nil), conv.Turns...)
	s.conversations[conv.ID] = &stored
	return nil
}

func (s *MemoryHistoryStore) Get(_ context.Context, id string) (*types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	copied := *conv
	copied.Turns = append([]types.Turn(nil), conv.Turns...)
	return &copied, nil
}

func (s *MemoryHistoryStore) AppendTurn(_ context.Context, id string, turn types.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	conv.Turns = append(conv.Turns, turn)
	conv.UpdatedAt = time.Now().UTC()
	return nil
}
