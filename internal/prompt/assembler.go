// Package prompt assembles bounded generation requests from persona,
// memories, and conversation history.
package prompt

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/kokoro-ai/kokoro/internal/llm"
	"github.com/kokoro-ai/kokoro/internal/types"
)

// Input carries everything Assemble needs. Assemble is a pure function
// of its input: no I/O, no clock, no hidden state.
type Input struct {
	Character   *types.Character
	Memories    []types.RetrievedMemory
	History     []types.Turn
	UserText    string
	TokenBudget int
	Temperature float64
	MaxTokens   int
}

// Result is the assembled request plus accounting for the caller.
type Result struct {
	Request      llm.Request
	PromptTokens int
	Truncated    bool
	MemoriesUsed int
	TurnsUsed    int
}

// Assembler builds generation requests under a token budget.
type Assembler struct {
	estimator TokenEstimator
}

// NewAssembler creates an Assembler. A nil estimator falls back to the
// simple character-count heuristic.
func NewAssembler(estimator TokenEstimator) *Assembler {
	if estimator == nil {
		estimator = SimpleTokenEstimator{}
	}
	return &Assembler{estimator: estimator}
}

// Assemble produces a request ordered as: persona, memories
// (most relevant first), history (chronological), user message.
//
// When the content exceeds the budget, the lowest-relevance memories are
// dropped first, then the oldest history turns. The persona and the
// current user message are never dropped.
func (a *Assembler) Assemble(in Input) (Result, error) {
	if in.Character == nil {
		return Result{}, fmt.Errorf("character is required")
	}
	if in.UserText == "" {
		return Result{}, fmt.Errorf("user text is required")
	}

	persona, err := renderPersona(in.Character)
	if err != nil {
		return Result{}, err
	}

	memories := rankMemories(in.Memories)
	memoryLines := make([]string, len(memories))
	for i, mem := range memories {
		memoryLines[i] = fmt.Sprintf("%d. %s", i+1, mem.Entry.Text)
	}

	personaCost := a.estimator.EstimateTokens(persona) + messageOverhead
	userCost := a.estimator.EstimateTokens(in.UserText) + messageOverhead

	memoryCosts := make([]int, len(memoryLines))
	for i, line := range memoryLines {
		memoryCosts[i] = a.estimator.EstimateTokens(line)
	}
	turnCosts := make([]int, len(in.History))
	for i, turn := range in.History {
		turnCosts[i] = a.estimator.EstimateTokens(turn.UserText) +
			a.estimator.EstimateTokens(turn.AgentText) +
			2*messageOverhead
	}
	headerCost := a.estimator.EstimateTokens(memoriesHeader) + messageOverhead

	memCount := len(memoryLines)
	histStart := 0 // in.History[histStart:] is included
	truncated := false

	total := func() int {
		sum := personaCost + userCost
		if memCount > 0 {
			sum += headerCost
			for _, c := range memoryCosts[:memCount] {
				sum += c
			}
		}
		for _, c := range turnCosts[histStart:] {
			sum += c
		}
		return sum
	}

	if in.TokenBudget > 0 {
		// Persona and the user message are always kept. History keeps the
		// newest turns that fit; memories fill what is left, most relevant
		// first. Lowest-relevance memories are the first content to go,
		// oldest history turns the next.
		remaining := in.TokenBudget - personaCost - userCost
		histStart = len(in.History)
		for histStart > 0 && turnCosts[histStart-1] <= remaining {
			remaining -= turnCosts[histStart-1]
			histStart--
		}
		memCount = 0
		if len(memoryLines) > 0 {
			remaining -= headerCost
			for memCount < len(memoryLines) && memoryCosts[memCount] <= remaining {
				remaining -= memoryCosts[memCount]
				memCount++
			}
		}
		truncated = memCount < len(memoryLines) || histStart > 0
	}

	messages := make([]llm.Message, 0, 2+2*(len(in.History)-histStart)+1)
	messages = append(messages, llm.Message{Role: types.RoleSystem, Content: persona})
	if memCount > 0 {
		var sb strings.Builder
		sb.WriteString(memoriesHeader)
		for _, line := range memoryLines[:memCount] {
			sb.WriteString("\n")
			sb.WriteString(line)
		}
		messages = append(messages, llm.Message{Role: types.RoleSystem, Content: sb.String()})
	}
	for _, turn := range in.History[histStart:] {
		messages = append(messages, llm.Message{Role: types.RoleUser, Content: turn.UserText})
		messages = append(messages, llm.Message{Role: types.RoleAssistant, Content: turn.AgentText})
	}
	messages = append(messages, llm.Message{Role: types.RoleUser, Content: in.UserText})

	return Result{
		Request: llm.Request{
			Messages:    messages,
			Temperature: in.Temperature,
			MaxTokens:   in.MaxTokens,
		},
		PromptTokens: total(),
		Truncated:    truncated,
		MemoriesUsed: memCount,
		TurnsUsed:    len(in.History) - histStart,
	}, nil
}

func renderPersona(ch *types.Character) (string, error) {
	var buf bytes.Buffer
	if err := personaTemplate.Execute(&buf, ch); err != nil {
		return "", fmt.Errorf("failed to render persona: %w", err)
	}
	return buf.String(), nil
}

// rankMemories returns a copy ordered by descending similarity, newer
// entries first on ties, then id. Inputs are usually pre-ranked by the
// memory manager; re-ranking here keeps Assemble deterministic for any
// input order.
func rankMemories(memories []types.RetrievedMemory) []types.RetrievedMemory {
	ranked := make([]types.RetrievedMemory, len(memories))
	copy(ranked, memories)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		if !ranked[i].Entry.CreatedAt.Equal(ranked[j].Entry.CreatedAt) {
			return ranked[i].Entry.CreatedAt.After(ranked[j].Entry.CreatedAt)
		}
		return ranked[i].Entry.ID < ranked[j].Entry.ID
	})
	return ranked
}
