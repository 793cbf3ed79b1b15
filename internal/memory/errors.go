package memory

import "errors"

var (
	// ErrEmbeddingUnavailable indicates the embedding backend failed.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrWriteFailed indicates a memory entry could not be persisted.
	// Non-fatal for the conversation turn that produced it.
	ErrWriteFailed = errors.New("memory write failed")
)
