package conversation

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a conversation id is unknown.
var ErrNotFound = errors.New("conversation not found")

// ErrNotEnoughTurns is returned by Summarize for conversations too short
// to summarize.
var ErrNotEnoughTurns = errors.New("conversation has too few turns to summarize")

// Stage identifies where in the turn pipeline a failure occurred.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageRetrieving Stage = "retrieving"
	StageGenerating Stage = "generating"
	StagePersisting Stage = "persisting"
)

// StageError wraps a failure with the pipeline stage it happened in, so
// callers can report which stage aborted the turn.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("conversation turn failed during %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
