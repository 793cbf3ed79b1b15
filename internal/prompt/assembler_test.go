package prompt

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kokoro-ai/kokoro/internal/types"
)

func testCharacter() *types.Character {
	return &types.Character{
		ID:          "mio",
		Name:        "Mio",
		Personality: "calm, a little teasing",
		Scenario:    "a quiet cafe after closing time",
	}
}

func testMemories() []types.RetrievedMemory {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return []types.RetrievedMemory{
		{Entry: types.MemoryEntry{ID: "m2", Text: "the user dislikes crowded places", CreatedAt: base}, Similarity: 0.8},
		{Entry: types.MemoryEntry{ID: "m1", Text: "the user loves jazz records", CreatedAt: base}, Similarity: 0.9},
		{Entry: types.MemoryEntry{ID: "m3", Text: "the user mentioned an exam in June", CreatedAt: base}, Similarity: 0.6},
	}
}

func testHistory() []types.Turn {
	base := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	return []types.Turn{
		{UserText: "good evening", AgentText: "welcome back, took you long enough", CreatedAt: base},
		{UserText: "rough day at work", AgentText: "then sit down, I will put something slow on", CreatedAt: base.Add(time.Minute)},
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	a := NewAssembler(SimpleTokenEstimator{})
	in := Input{
		Character:   testCharacter(),
		Memories:    testMemories(),
		History:     testHistory(),
		UserText:    "can I tell you something?",
		TokenBudget: 10000,
	}

	first, err := a.Assemble(in)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	second, err := a.Assemble(in)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical results for identical inputs")
	}
}

func TestAssembleOrdering(t *testing.T) {
	a := NewAssembler(SimpleTokenEstimator{})
	history := testHistory()
	result, err := a.Assemble(Input{
		Character:   testCharacter(),
		Memories:    testMemories(),
		History:     history,
		UserText:    "can I tell you something?",
		TokenBudget: 10000,
	})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}

	msgs := result.Request.Messages
	wantRoles := []string{
		types.RoleSystem, // persona
		types.RoleSystem, // memories
		types.RoleUser, types.RoleAssistant,
		types.RoleUser, types.RoleAssistant,
		types.RoleUser, // current message
	}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(msgs))
	}
	for i, want := range wantRoles {
		if msgs[i].Role != want {
			t.Fatalf("message %d: expected role %q, got %q", i, want, msgs[i].Role)
		}
	}

	if !strings.Contains(msgs[0].Content, "Name: Mio") {
		t.Fatalf("expected persona first, got %q", msgs[0].Content)
	}
	// Memories most relevant first regardless of input order.
	if !strings.Contains(msgs[1].Content, "1. the user loves jazz records") {
		t.Fatalf("expected highest-similarity memory first, got %q", msgs[1].Content)
	}
	if !strings.Contains(msgs[1].Content, "3. the user mentioned an exam in June") {
		t.Fatalf("expected lowest-similarity memory last, got %q", msgs[1].Content)
	}
	// History in chronological order.
	if msgs[2].Content != history[0].UserText || msgs[4].Content != history[1].UserText {
		t.Fatal("expected history in chronological order")
	}
	if msgs[len(msgs)-1].Content != "can I tell you something?" {
		t.Fatal("expected the current user message last")
	}
	if result.Truncated {
		t.Fatal("expected no truncation under a large budget")
	}
}

func TestAssembleDropsLowestRelevanceMemoryFirst(t *testing.T) {
	a := NewAssembler(SimpleTokenEstimator{})
	in := Input{
		Character: testCharacter(),
		Memories:  testMemories(),
		History:   testHistory(),
		UserText:  "can I tell you something?",
	}

	full, err := a.Assemble(in)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}

	// One token short of fitting everything: exactly one memory must go,
	// and it must be the least relevant one. History stays intact.
	in.TokenBudget = full.PromptTokens - 1
	result, err := a.Assemble(in)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if !result.Truncated {
		t.Fatal("expected truncation")
	}
	if result.MemoriesUsed != len(in.Memories)-1 {
		t.Fatalf("expected %d memories, got %d", len(in.Memories)-1, result.MemoriesUsed)
	}
	if result.TurnsUsed != len(in.History) {
		t.Fatalf("expected full history, got %d turns", result.TurnsUsed)
	}
	memBlock := result.Request.Messages[1].Content
	if strings.Contains(memBlock, "exam in June") {
		t.Fatal("expected the lowest-relevance memory to be dropped")
	}
	if !strings.Contains(memBlock, "jazz records") || !strings.Contains(memBlock, "crowded places") {
		t.Fatal("expected higher-relevance memories to survive")
	}
}

func TestAssembleDropsOldestHistoryAfterMemories(t *testing.T) {
	a := NewAssembler(SimpleTokenEstimator{})
	est := SimpleTokenEstimator{}
	ch := testCharacter()
	history := testHistory()
	memories := []types.RetrievedMemory{testMemories()[1]} // single memory
	userText := "can I tell you something?"

	persona, err := renderPersona(ch)
	if err != nil {
		t.Fatalf("renderPersona returned error: %v", err)
	}

	// Budget fits persona + user text + the memory block + the most
	// recent turn, but not the oldest turn.
	budget := est.EstimateTokens(persona) + messageOverhead +
		est.EstimateTokens(userText) + messageOverhead +
		est.EstimateTokens(memoriesHeader) + messageOverhead +
		est.EstimateTokens("1. "+memories[0].Entry.Text) +
		est.EstimateTokens(history[1].UserText) +
		est.EstimateTokens(history[1].AgentText) + 2*messageOverhead

	result, err := a.Assemble(Input{
		Character:   ch,
		Memories:    memories,
		History:     history,
		UserText:    userText,
		TokenBudget: budget,
	})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if result.MemoriesUsed != 0 {
		t.Fatalf("expected memories to be sacrificed before history, got %d kept", result.MemoriesUsed)
	}
	if result.TurnsUsed != len(history) {
		t.Fatalf("expected history kept once memories were dropped, got %d turns", result.TurnsUsed)
	}
}

func TestAssembleBudgetFitsPersonaUserAndOneMemory(t *testing.T) {
	a := NewAssembler(SimpleTokenEstimator{})
	est := SimpleTokenEstimator{}
	ch := testCharacter()
	memories := testMemories()
	userText := "can I tell you something?"

	persona, err := renderPersona(ch)
	if err != nil {
		t.Fatalf("renderPersona returned error: %v", err)
	}

	// Exactly persona + user message + header + the single most relevant
	// memory. The history turns are far too large to fit the remainder.
	budget := est.EstimateTokens(persona) + messageOverhead +
		est.EstimateTokens(userText) + messageOverhead +
		est.EstimateTokens(memoriesHeader) + messageOverhead +
		est.EstimateTokens("1. the user loves jazz records")

	longLine := strings.Repeat("we talked for a long while. ", 10)
	history := []types.Turn{
		{UserText: longLine, AgentText: longLine},
		{UserText: longLine, AgentText: longLine},
	}

	result, err := a.Assemble(Input{
		Character:   ch,
		Memories:    memories,
		History:     history,
		UserText:    userText,
		TokenBudget: budget,
	})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if result.MemoriesUsed != 1 {
		t.Fatalf("expected exactly one memory, got %d", result.MemoriesUsed)
	}
	if result.TurnsUsed != 0 {
		t.Fatalf("expected no history turns, got %d", result.TurnsUsed)
	}

	msgs := result.Request.Messages
	if len(msgs) != 3 {
		t.Fatalf("expected persona + memories + user message, got %d messages", len(msgs))
	}
	if !strings.Contains(msgs[1].Content, "jazz records") {
		t.Fatalf("expected the most relevant memory, got %q", msgs[1].Content)
	}
}

func TestAssembleNeverDropsPersonaOrUserMessage(t *testing.T) {
	a := NewAssembler(SimpleTokenEstimator{})
	result, err := a.Assemble(Input{
		Character:   testCharacter(),
		Memories:    testMemories(),
		History:     testHistory(),
		UserText:    "hello",
		TokenBudget: 1,
	})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}

	msgs := result.Request.Messages
	if len(msgs) != 2 {
		t.Fatalf("expected only persona and user message, got %d", len(msgs))
	}
	if msgs[0].Role != types.RoleSystem || msgs[1].Role != types.RoleUser {
		t.Fatal("expected persona then user message")
	}
	if msgs[1].Content != "hello" {
		t.Fatalf("expected the user message to survive, got %q", msgs[1].Content)
	}
	if !result.Truncated {
		t.Fatal("expected truncation to be reported")
	}
}

func TestAssembleRequiresCharacterAndUserText(t *testing.T) {
	a := NewAssembler(nil)
	if _, err := a.Assemble(Input{UserText: "hi"}); err == nil {
		t.Fatal("expected error for missing character")
	}
	if _, err := a.Assemble(Input{Character: testCharacter()}); err == nil {
		t.Fatal("expected error for missing user text")
	}
}
