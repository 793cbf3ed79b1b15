package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/kokoro-ai/kokoro/internal/llm"
	"github.com/kokoro-ai/kokoro/internal/types"
)

// summaryInstruction makes the model compress a dialogue window while
// keeping what matters for future retrieval.
const summaryInstruction = `You are a professional dialogue memory summarizer.
Your task is to compress the conversation below into a concise summary while preserving the most important information.

Extract and retain:
1. Key events and important decisions
2. Emotional shifts and notable moments
3. User-revealed personal info (preferences, habits, important dates, etc.)
4. Promises or agreements made by either party

Output requirements:
- Use third-person narration
- Organize chronologically
- Summarize in 3-5 sentences
- Return plain text only, no headings or lists`

// Summarizer compacts conversation windows into memory-sized summaries
// using the generation backend.
type Summarizer struct {
	generator llm.Generator
}

// NewSummarizer creates a Summarizer on top of gen.
func NewSummarizer(gen llm.Generator) *Summarizer {
	return &Summarizer{generator: gen}
}

// Summarize returns a compact summary of the given conversation text.
func (s *Summarizer) Summarize(ctx context.Context, conversationText string) (string, error) {
	trimmed := strings.TrimSpace(conversationText)
	if trimmed == "" {
		return "", nil
	}

	summary, err := s.generator.Generate(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: types.RoleSystem, Content: summaryInstruction},
			{Role: types.RoleUser, Content: trimmed},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to summarize conversation: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("empty summary response")
	}
	return summary, nil
}
