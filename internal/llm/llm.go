// Package llm defines the generation boundary and its adapters.
package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

var (
	// ErrUnavailable indicates the generation backend rejected or failed
	// the request.
	ErrUnavailable = errors.New("generation unavailable")
	// ErrTimeout indicates the generation call exceeded its deadline.
	ErrTimeout = errors.New("generation timeout")
)

// Message is one role-tagged chunk of prompt content.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a bounded generation request assembled by the prompt layer.
type Request struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Generator produces agent text from a prompt, either whole or as a
// finite, non-restartable stream of fragments.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	GenerateStream(ctx context.Context, req Request) iter.Seq2[string, error]
}

// wrapErr maps transport failures onto the generation error taxonomy.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
