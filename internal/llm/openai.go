package llm

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/kokoro-ai/kokoro/internal/types"
)

// OpenAIGenerator wraps an OpenAI-compatible chat completion client.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a Generator backed by the OpenAI chat API.
// An optional baseURL points the client at any OpenAI-compatible backend.
func NewOpenAIGenerator(apiKey, model, baseURL string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIGenerator{
		client: &client,
		model:  model,
	}, nil
}

// Generate awaits the full completion for req.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	params := g.buildParams(req)

	resp, err := g.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		slog.Error("failed to call chat completion API", "error", err.Error())
		return "", wrapErr(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion response", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream yields completion fragments as they arrive. The sequence
// is finite and cannot be restarted.
func (g *OpenAIGenerator) GenerateStream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		params := g.buildParams(req)

		stream := g.client.Chat.Completions.NewStreaming(ctx, *params)
		defer func() {
			if err := stream.Close(); err != nil {
				slog.Error("failed to close completion stream", "error", err.Error())
			}
		}()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			slog.Error("completion stream failed", "error", err.Error())
			yield("", wrapErr(err))
		}
	}
}

func (g *OpenAIGenerator) buildParams(req Request) *openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: g.model,
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case types.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case types.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	params.Messages = messages

	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return &params
}
