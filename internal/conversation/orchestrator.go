// Package conversation coordinates memory retrieval, prompt assembly,
// generation, and write-back for multi-turn character dialogues.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kokoro-ai/kokoro/internal/character"
	"github.com/kokoro-ai/kokoro/internal/llm"
	"github.com/kokoro-ai/kokoro/internal/memory"
	"github.com/kokoro-ai/kokoro/internal/prompt"
	"github.com/kokoro-ai/kokoro/internal/types"
)

// Options configures orchestration behavior. All values are
// configuration, not contract.
type Options struct {
	// HistoryLimit caps how many recent turns feed prompt assembly.
	HistoryLimit int
	// TokenBudget bounds the assembled generation request.
	TokenBudget int
	// Temperature and MaxTokens are forwarded to the generation port.
	Temperature float64
	MaxTokens   int
}

func (o Options) withDefaults() Options {
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 10
	}
	if o.TokenBudget <= 0 {
		o.TokenBudget = 4096
	}
	return o
}

// Request is one incoming user message. An absent or unknown
// ConversationID starts a new conversation.
type Request struct {
	CharacterID    string
	ConversationID string
	UserText       string
}

// Orchestrator owns conversation state and sequences the turn pipeline:
// retrieve -> assemble -> generate -> persist. It is the single entry
// point used by transport adapters.
type Orchestrator struct {
	characters character.Repo
	memory     *memory.Manager
	assembler  *prompt.Assembler
	generator  llm.Generator
	history    HistoryStore
	summarizer *memory.Summarizer
	opts       Options

	locksMu sync.Mutex
	locks   map[string]*convLock
}

// New wires an Orchestrator from its explicit dependencies.
func New(
	characters character.Repo,
	manager *memory.Manager,
	assembler *prompt.Assembler,
	generator llm.Generator,
	history HistoryStore,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		characters: characters,
		memory:     manager,
		assembler:  assembler,
		generator:  generator,
		history:    history,
		opts:       opts.withDefaults(),
		locks:      make(map[string]*convLock),
	}
}

// WithSummarizer enables conversation summarization.
func (o *Orchestrator) WithSummarizer(s *memory.Summarizer) *Orchestrator {
	o.summarizer = s
	return o
}

// Process handles one user message synchronously and returns the full
// agent reply. An aborted turn leaves the conversation history exactly
// as it was and reports the stage that failed.
func (o *Orchestrator) Process(ctx context.Context, req Request) (types.AgentReply, error) {
	ch, conv, unlock, err := o.begin(ctx, req)
	if err != nil {
		return types.AgentReply{}, err
	}
	defer unlock()

	result, err := o.prepare(ctx, ch, conv, req.UserText)
	if err != nil {
		return types.AgentReply{}, err
	}

	text, err := o.generator.Generate(ctx, result.Request)
	if err != nil {
		return types.AgentReply{}, stageErr(StageGenerating, err)
	}

	return o.persist(ctx, conv, req.UserText, text, result)
}

// StreamEvent is one element of a streaming reply: either an incremental
// text fragment or, on the final event, the completed reply.
type StreamEvent struct {
	Fragment string
	Reply    *types.AgentReply
}

// ProcessStream handles one user message, forwarding generation
// fragments as they arrive. The sequence is finite and not restartable.
// If the consumer stops early or the context is cancelled, no turn is
// appended and no memory entry is written.
func (o *Orchestrator) ProcessStream(ctx context.Context, req Request) iter.Seq2[StreamEvent, error] {
	return func(yield func(StreamEvent, error) bool) {
		ch, conv, unlock, err := o.begin(ctx, req)
		if err != nil {
			yield(StreamEvent{}, err)
			return
		}
		defer unlock()

		result, err := o.prepare(ctx, ch, conv, req.UserText)
		if err != nil {
			yield(StreamEvent{}, err)
			return
		}

		var full strings.Builder
		for fragment, err := range o.generator.GenerateStream(ctx, result.Request) {
			if err != nil {
				yield(StreamEvent{}, stageErr(StageGenerating, err))
				return
			}
			full.WriteString(fragment)
			if !yield(StreamEvent{Fragment: fragment}, nil) {
				// Early termination counts as a generation failure for
				// persistence purposes: nothing is committed.
				return
			}
		}
		if ctx.Err() != nil {
			yield(StreamEvent{}, stageErr(StageGenerating, ctx.Err()))
			return
		}

		reply, err := o.persist(ctx, conv, req.UserText, full.String(), result)
		if err != nil {
			yield(StreamEvent{}, err)
			return
		}
		yield(StreamEvent{Reply: &reply}, nil)
	}
}

// History returns the conversation's turns in append order.
func (o *Orchestrator) History(ctx context.Context, conversationID string) ([]types.Turn, error) {
	conv, err := o.history.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return conv.Turns, nil
}

// Summarize produces a compact summary of the conversation so far.
func (o *Orchestrator) Summarize(ctx context.Context, conversationID string) (string, error) {
	if o.summarizer == nil {
		return "", fmt.Errorf("summarizer is not configured")
	}
	conv, err := o.history.Get(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if len(conv.Turns) < 2 {
		return "", ErrNotEnoughTurns
	}

	var sb strings.Builder
	for _, turn := range conv.Turns {
		fmt.Fprintf(&sb, "%s: %s\n", types.RoleUser, turn.UserText)
		fmt.Fprintf(&sb, "%s: %s\n", types.RoleAssistant, turn.AgentText)
	}
	return o.summarizer.Summarize(ctx, sb.String())
}

// begin resolves the character and conversation, then takes the
// per-conversation lock. The returned conversation snapshot is re-read
// under the lock so concurrent turns never interleave.
func (o *Orchestrator) begin(ctx context.Context, req Request) (*types.Character, *types.Conversation, func(), error) {
	if req.UserText == "" {
		return nil, nil, nil, fmt.Errorf("user text is required")
	}

	// Character lookup happens before any side effect.
	ch, err := o.characters.GetByID(ctx, req.CharacterID)
	if err != nil {
		return nil, nil, nil, err
	}

	id, err := o.resolveConversationID(ctx, req)
	if err != nil {
		return nil, nil, nil, err
	}

	unlock := o.lockConversation(id)
	conv, err := o.history.Get(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, nil, err
	}
	if conv.CharacterID != req.CharacterID {
		unlock()
		return nil, nil, nil, fmt.Errorf("conversation %s belongs to character %s", id, conv.CharacterID)
	}
	return ch, conv, unlock, nil
}

// prepare runs the retrieval stage and assembles the generation request.
func (o *Orchestrator) prepare(ctx context.Context, ch *types.Character, conv *types.Conversation, userText string) (prompt.Result, error) {
	memories, err := o.memory.Retrieve(ctx, conv.CharacterID, userText)
	if err != nil {
		return prompt.Result{}, stageErr(StageRetrieving, err)
	}

	history := conv.Turns
	if len(history) > o.opts.HistoryLimit {
		history = history[len(history)-o.opts.HistoryLimit:]
	}

	result, err := o.assembler.Assemble(prompt.Input{
		Character:   ch,
		Memories:    memories,
		History:     history,
		UserText:    userText,
		TokenBudget: o.opts.TokenBudget,
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	})
	if err != nil {
		return prompt.Result{}, stageErr(StageGenerating, err)
	}
	return result, nil
}

// persist appends the completed turn and records the exchange as a new
// memory entry. A memory write failure is non-fatal: the turn stands,
// the reply just reports that persistence of the memory failed.
func (o *Orchestrator) persist(ctx context.Context, conv *types.Conversation, userText, agentText string, result prompt.Result) (types.AgentReply, error) {
	meta := types.TurnMeta{
		PromptTokens: result.PromptTokens,
		Truncated:    result.Truncated,
	}
	turn := types.Turn{
		UserText:  userText,
		AgentText: agentText,
		Meta:      meta,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.history.AppendTurn(ctx, conv.ID, turn); err != nil {
		return types.AgentReply{}, stageErr(StagePersisting, err)
	}

	memoryPersisted := true
	exchange := fmt.Sprintf("User: %s\nAssistant: %s", userText, agentText)
	if _, err := o.memory.Store(ctx, conv.CharacterID, exchange, map[string]string{"conversation_id": conv.ID}); err != nil {
		slog.Warn("failed to persist memory entry for turn",
			"conversation_id", conv.ID,
			"character_id", conv.CharacterID,
			"error", err.Error(),
		)
		memoryPersisted = false
	}

	return types.AgentReply{
		Text:            agentText,
		ConversationID:  conv.ID,
		MemoryPersisted: memoryPersisted,
		Meta:            meta,
	}, nil
}

// resolveConversationID returns the id of the conversation to use,
// creating a fresh conversation when the request has none or names an
// unknown one.
func (o *Orchestrator) resolveConversationID(ctx context.Context, req Request) (string, error) {
	if req.ConversationID != "" {
		_, err := o.history.Get(ctx, req.ConversationID)
		if err == nil {
			return req.ConversationID, nil
		}
		if !isNotFound(err) {
			return "", err
		}
	}

	now := time.Now().UTC()
	conv := types.Conversation{
		ID:          uuid.NewString(),
		CharacterID: req.CharacterID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.history.Create(ctx, conv); err != nil {
		return "", err
	}
	return conv.ID, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// convLock is a per-conversation mutex with a holder count so the lock
// table can drop entries nobody is waiting on.
type convLock struct {
	mu   sync.Mutex
	refs int
}

// lockConversation serializes turns within one conversation while
// leaving unrelated conversations concurrent. The entry is removed once
// the last holder unlocks, keeping the lock table bounded.
func (o *Orchestrator) lockConversation(id string) func() {
	o.locksMu.Lock()
	l, ok := o.locks[id]
	if !ok {
		l = &convLock{}
		o.locks[id] = l
	}
	l.refs++
	o.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, id)
		}
		o.locksMu.Unlock()
	}
}
