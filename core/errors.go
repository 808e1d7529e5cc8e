package core

import (
	"errors"
	"fmt"
)

var (
	// ErrCapabilityNotFound is matched by every CapabilityNotFoundError.
	ErrCapabilityNotFound = errors.New("capability not found")
	// ErrIterationLimit signals that a loop hit its decision-turn ceiling.
	ErrIterationLimit = errors.New("iteration limit reached")
	// ErrMalformedResult signals a settled run whose result lacks the expected shape.
	ErrMalformedResult = errors.New("malformed result")
)

// CapabilityNotFoundError reports a requested capability with no registered handler.
type CapabilityNotFoundError struct {
	Name string
}

func (e *CapabilityNotFoundError) Error() string {
	return fmt.Sprintf("capability %q not found", e.Name)
}

// Is makes errors.Is(err, ErrCapabilityNotFound) succeed.
func (e *CapabilityNotFoundError) Is(target error) bool { return target == ErrCapabilityNotFound }

// HandlerError reports a capability handler that failed or panicked.
type HandlerError struct {
	Tool   string
	CallID string
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("capability %s failed: %v", e.Tool, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// StageFailure reports a stage whose loop did not reach DONE cleanly.
type StageFailure struct {
	Stage string
	Err   error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageFailure) Unwrap() error { return e.Err }

// NewStageFailure wraps err unless it already is a StageFailure.
func NewStageFailure(stage string, err error) error {
	if err == nil {
		return nil
	}
	var sf *StageFailure
	if errors.As(err, &sf) {
		return err
	}
	return &StageFailure{Stage: stage, Err: err}
}
